package world

import (
	"math"

	"github.com/annel0/geocoin/internal/util"
)

const (
	// DefaultSpawnProbability: вероятность появления тайника в клетке
	DefaultSpawnProbability = 0.1
	// DefaultContentScale: множитель размера содержимого тайника
	DefaultContentScale = 100
	// DefaultContentSeed: третья часть сида для размера содержимого
	DefaultContentSeed = "initialValue"
)

// Generator детерминированно выводит наличие и содержимое тайника из координат клетки.
// Генератор не хранит состояния: одинаковые входы дают одинаковый результат.
type Generator struct {
	// Luck: псевдослучайная функция от строки; по умолчанию util.Luck
	Luck             func(seed string) float64
	SpawnProbability float64
	ContentScale     int
	ContentSeed      string
}

// NewGenerator создаёт генератор с параметрами по умолчанию и заданной вероятностью появления
func NewGenerator(spawnProbability float64) *Generator {
	if spawnProbability < 0 {
		spawnProbability = 0
	}

	return &Generator{
		Luck:             util.Luck,
		SpawnProbability: spawnProbability,
		ContentScale:     DefaultContentScale,
		ContentSeed:      DefaultContentSeed,
	}
}

// ShouldSpawn решает, существует ли тайник в клетке вообще
func (g *Generator) ShouldSpawn(c *Cell) bool {
	return g.luck(util.LuckKey(c.I, c.J)) < g.SpawnProbability
}

// ContentSize возвращает начальное количество токенов тайника в клетке
func (g *Generator) ContentSize(c *Cell) int {
	return int(math.Floor(g.luck(util.LuckKey(c.I, c.J, g.ContentSeed)) * float64(g.ContentScale)))
}

// Generate создаёт начальное содержимое тайника: токены с номерами 0..size-1 по возрастанию.
// Вызывается только для клеток без сохранённого снимка.
func (g *Generator) Generate(c *Cell) []Token {
	size := g.ContentSize(c)
	tokens := make([]Token, size)
	for serial := 0; serial < size; serial++ {
		tokens[serial] = Token{I: c.I, J: c.J, Serial: serial}
	}
	return tokens
}

func (g *Generator) luck(seed string) float64 {
	if g.Luck == nil {
		return util.Luck(seed)
	}
	return g.Luck(seed)
}
