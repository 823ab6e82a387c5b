package vec

import "math"

// Vec2 представляет целочисленное смещение на сетке (di, dj).
// X соответствует строке сетки (широта), Y — столбцу (долгота).
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Направления перемещения игрока на одну клетку.
var (
	North = Vec2{X: 1, Y: 0}
	South = Vec2{X: -1, Y: 0}
	East  = Vec2{X: 0, Y: 1}
	West  = Vec2{X: 0, Y: -1}
)

// Add складывает два смещения
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// IsZero возвращает true для нулевого смещения
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// DistanceTo вычисляет расстояние до другой точки сетки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dy := float64(v.Y - other.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
