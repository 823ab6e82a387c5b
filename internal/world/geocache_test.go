package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocache_Lifecycle(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	cache := NewGeocache(grid.Cell(1, 1))

	assert.False(t, cache.Populated())
	assert.Equal(t, 0, cache.Size())

	_, ok := cache.Take()
	assert.False(t, ok, "неинициализированный тайник пуст")
	assert.ErrorIs(t, cache.Put(Token{I: 1, J: 1}), ErrNotPopulated)

	require.NoError(t, cache.InitializeFresh(NewGenerator(DefaultSpawnProbability)))
	assert.True(t, cache.Populated())

	// Обратного перехода нет
	assert.ErrorIs(t, cache.InitializeFresh(NewGenerator(DefaultSpawnProbability)), ErrAlreadyPopulated)
	assert.ErrorIs(t, cache.RestoreFromSnapshot(EncodeSnapshot(nil)), ErrAlreadyPopulated)
}

func TestGeocache_DrainFortyTwo(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	gen := NewGenerator(DefaultSpawnProbability)
	gen.Luck = fixedLuck(0.42)

	cache := NewGeocache(grid.Cell(3, 5))
	require.NoError(t, cache.InitializeFresh(gen))
	require.Equal(t, 42, cache.Size())

	for serial := 41; serial >= 0; serial-- {
		token, ok := cache.Take()
		require.True(t, ok)
		assert.Equal(t, Token{I: 3, J: 5, Serial: serial}, token)
	}

	_, ok := cache.Take()
	assert.False(t, ok, "43-й Take должен вернуть none")
	assert.Equal(t, 0, cache.Size())
}

func TestGeocache_SnapshotRoundTrip(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)

	sequences := [][]Token{
		{},
		{{I: 0, J: 0, Serial: 0}},
		{{I: 1, J: 2, Serial: 0}, {I: 1, J: 2, Serial: 1}, {I: -4, J: 9, Serial: 17}},
	}

	for _, tokens := range sequences {
		snapshot := EncodeSnapshot(tokens)

		cache := NewGeocache(grid.Cell(1, 2))
		require.NoError(t, cache.RestoreFromSnapshot(snapshot))
		assert.Equal(t, snapshot, cache.Snapshot(), "снимок должен совпадать побайтно")

		// Закон стека: Take возвращает токены в обратном порядке вставки
		for k := len(tokens) - 1; k >= 0; k-- {
			token, ok := cache.Take()
			require.True(t, ok)
			assert.Equal(t, tokens[k], token)
		}
		_, ok := cache.Take()
		assert.False(t, ok)
	}
}

func TestGeocache_InvalidSnapshot(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)

	for _, bad := range []Snapshot{"", "null", "{}", "[1,2]", `[{"i":1,"j":2,"serial":3,"x":1}]`, "[", `"text"`} {
		cache := NewGeocache(grid.Cell(0, 0))
		err := cache.RestoreFromSnapshot(bad)
		assert.ErrorIs(t, err, ErrInvalidSnapshot, "снимок %q", bad)
		assert.False(t, cache.Populated(), "ошибочный снимок не должен менять состояние")
	}
}

func TestGeocache_PutKeepsProvenance(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	cache := NewGeocache(grid.Cell(0, 0))
	require.NoError(t, cache.RestoreFromSnapshot(EncodeSnapshot(nil)))

	foreign := Token{I: 7, J: -3, Serial: 12}
	require.NoError(t, cache.Put(foreign))
	assert.Equal(t, 1, cache.Size())

	token, ok := cache.Take()
	require.True(t, ok)
	assert.Equal(t, foreign, token, "токен сохраняет клетку происхождения")
	assert.Equal(t, "7:-3#12", token.String())
	assert.Equal(t, "7:-3", token.OriginKey())
}

func TestGeocache_Conservation(t *testing.T) {
	grid := NewGrid(testOrigin, 1e-4)
	gen := NewGenerator(DefaultSpawnProbability)
	gen.Luck = fixedLuck(0.05)

	cache := NewGeocache(grid.Cell(2, 2))
	require.NoError(t, cache.InitializeFresh(gen))
	var inventory []Token

	total := func() int { return cache.Size() + len(inventory) }
	initial := total()

	// Фиксированная последовательность операций: 1 — collect, 0 — deposit
	ops := []int{1, 1, 1, 0, 1, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 0, 1}
	for _, op := range ops {
		if op == 1 {
			if token, ok := cache.Take(); ok {
				inventory = append(inventory, token)
			}
		} else if n := len(inventory); n > 0 {
			token := inventory[n-1]
			inventory = inventory[:n-1]
			require.NoError(t, cache.Put(token))
		}
		assert.Equal(t, initial, total(), "количество токенов в обороте не меняется")
	}

	seen := make(map[Token]bool)
	restored := NewGeocache(grid.Cell(2, 2))
	require.NoError(t, restored.RestoreFromSnapshot(cache.Snapshot()))
	for {
		token, ok := restored.Take()
		if !ok {
			break
		}
		seen[token] = true
	}
	for _, token := range inventory {
		seen[token] = true
	}
	assert.Len(t, seen, initial, "токены не дублируются и не теряются")
}
