package world

import (
	"testing"

	"github.com/annel0/geocoin/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLuck(value float64) func(string) float64 {
	return func(string) float64 { return value }
}

func TestGenerator_Deterministic(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	gen := NewGenerator(DefaultSpawnProbability)

	for _, c := range grid.CellsNear(testOrigin, 4) {
		first := gen.Generate(c)
		second := gen.Generate(c)
		assert.Equal(t, first, second, "клетка %s", c.Key())
		assert.Equal(t, gen.ShouldSpawn(c), gen.ShouldSpawn(c))

		// Другой экземпляр генератора с теми же параметрами даёт тот же результат
		other := NewGenerator(DefaultSpawnProbability)
		assert.Equal(t, first, other.Generate(c))
	}
}

func TestGenerator_TokensAscending(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	gen := NewGenerator(DefaultSpawnProbability)

	for _, c := range grid.CellsNear(testOrigin, 3) {
		tokens := gen.Generate(c)
		require.Len(t, tokens, gen.ContentSize(c))
		for serial, token := range tokens {
			assert.Equal(t, Token{I: c.I, J: c.J, Serial: serial}, token)
		}
		assert.True(t, gen.ContentSize(c) >= 0 && gen.ContentSize(c) < DefaultContentScale)
	}
}

func TestGenerator_SizeFromLuck(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	gen := NewGenerator(DefaultSpawnProbability)
	gen.Luck = fixedLuck(0.42)

	assert.Equal(t, 42, gen.ContentSize(grid.Cell(3, 5)))
}

func TestGenerator_SeedStrings(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	gen := NewGenerator(0.5)

	var seeds []string
	gen.Luck = func(seed string) float64 {
		seeds = append(seeds, seed)
		return 0.25
	}

	c := grid.Cell(-2, 7)
	assert.True(t, gen.ShouldSpawn(c))
	assert.Equal(t, 25, gen.ContentSize(c))
	assert.Equal(t, []string{"-2,7", "-2,7,initialValue"}, seeds)
}

func TestGenerator_SpawnThreshold(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	c := grid.Cell(0, 0)

	gen := NewGenerator(0.1)
	gen.Luck = fixedLuck(0.0999)
	assert.True(t, gen.ShouldSpawn(c))

	gen.Luck = fixedLuck(0.1)
	assert.False(t, gen.ShouldSpawn(c), "порог строгий")
}

func TestGenerator_IndependentOfPlayerPosition(t *testing.T) {
	// Решение о появлении и размер зависят только от координат клетки
	gen := NewGenerator(DefaultSpawnProbability)
	grid := NewGrid(testOrigin, 1e-4)
	target := grid.Cell(2, -3)

	spawn := gen.ShouldSpawn(target)
	size := gen.ContentSize(target)

	for _, step := range []vec.Vec2{vec.North, vec.East, {X: 5, Y: -5}} {
		pos := testOrigin.Step(step, grid.TileDegrees())
		for _, c := range grid.CellsNear(pos, 6) {
			if c == target {
				assert.Equal(t, spawn, gen.ShouldSpawn(c))
				assert.Equal(t, size, gen.ContentSize(c))
			}
		}
	}
}

func TestGenerator_SpawnRate(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	gen := NewGenerator(DefaultSpawnProbability)

	spawned := 0
	cells := grid.CellsNear(testOrigin, 50)
	for _, c := range cells {
		if gen.ShouldSpawn(c) {
			spawned++
		}
	}
	assert.InDelta(t, DefaultSpawnProbability, float64(spawned)/float64(len(cells)), 0.03)
}
