package world

import (
	"math"
	"sync"

	"github.com/annel0/geocoin/internal/vec"
)

// DefaultTileDegrees: угловой размер клетки по умолчанию.
const DefaultTileDegrees = 1e-4

// cellEpsilon поглощает ошибку округления для точек, лежащих ровно на границе
// клетки (например, после многократного сдвига на tileDegrees).
const cellEpsilon = 1e-6

// Bounds: прямоугольник клетки в географических координатах.
type Bounds struct {
	SouthWest vec.LatLng `json:"southWest"`
	NorthEast vec.LatLng `json:"northEast"`
}

// Area возвращает площадь прямоугольника в квадратных градусах
func (b Bounds) Area() float64 {
	return (b.NorthEast.Lat - b.SouthWest.Lat) * (b.NorthEast.Lng - b.SouthWest.Lng)
}

// Contains проверяет, что точка лежит внутри прямоугольника (включая южную и западную границы)
func (b Bounds) Contains(p vec.LatLng) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat < b.NorthEast.Lat &&
		p.Lng >= b.SouthWest.Lng && p.Lng < b.NorthEast.Lng
}

// gridKey: ключ пула клеток
type gridKey struct {
	i, j int
}

// Grid переводит непрерывные координаты в дискретные клетки и обратно.
// Grid хранит пул канонических клеток (flyweight): пул заполняется лениво и
// никогда не очищается.
type Grid struct {
	origin      vec.LatLng
	tileDegrees float64

	mu    sync.RWMutex
	cells map[gridKey]*Cell
}

// NewGrid создаёт сетку с началом координат origin и размером клетки tileDegrees
func NewGrid(origin vec.LatLng, tileDegrees float64) *Grid {
	if tileDegrees <= 0 {
		tileDegrees = DefaultTileDegrees
	}

	return &Grid{
		origin:      origin,
		tileDegrees: tileDegrees,
		cells:       make(map[gridKey]*Cell),
	}
}

// Origin возвращает начало координат сетки
func (g *Grid) Origin() vec.LatLng {
	return g.origin
}

// TileDegrees возвращает размер клетки в градусах
func (g *Grid) TileDegrees() float64 {
	return g.tileDegrees
}

// Cell возвращает каноническую клетку для индексов (i, j)
func (g *Grid) Cell(i, j int) *Cell {
	key := gridKey{i: i, j: j}

	g.mu.RLock()
	cell, exists := g.cells[key]
	g.mu.RUnlock()
	if exists {
		return cell
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Проверяем ещё раз под write lock
	if cell, exists := g.cells[key]; exists {
		return cell
	}

	cell = &Cell{I: i, J: j}
	g.cells[key] = cell
	return cell
}

// CellForPoint возвращает клетку, содержащую точку p
func (g *Grid) CellForPoint(p vec.LatLng) *Cell {
	i := int(math.Floor((p.Lat-g.origin.Lat)/g.tileDegrees + cellEpsilon))
	j := int(math.Floor((p.Lng-g.origin.Lng)/g.tileDegrees + cellEpsilon))
	return g.Cell(i, j)
}

// BoundsForCell возвращает прямоугольник клетки
func (g *Grid) BoundsForCell(c *Cell) Bounds {
	return Bounds{
		SouthWest: vec.LatLng{
			Lat: g.origin.Lat + float64(c.I)*g.tileDegrees,
			Lng: g.origin.Lng + float64(c.J)*g.tileDegrees,
		},
		NorthEast: vec.LatLng{
			Lat: g.origin.Lat + float64(c.I+1)*g.tileDegrees,
			Lng: g.origin.Lng + float64(c.J+1)*g.tileDegrees,
		},
	}
}

// CellsNear перечисляет (2·radius)² клеток вокруг клетки точки p:
// смещения di, dj пробегают [-radius, radius), порядок — по строкам (сначала i, затем j).
func (g *Grid) CellsNear(p vec.LatLng, radius int) []*Cell {
	if radius <= 0 {
		return nil
	}

	center := g.CellForPoint(p)
	result := make([]*Cell, 0, 4*radius*radius)
	for di := -radius; di < radius; di++ {
		for dj := -radius; dj < radius; dj++ {
			result = append(result, g.Cell(center.I+di, center.J+dj))
		}
	}
	return result
}

// PoolSize возвращает количество клеток в пуле (для метрик и тестов)
func (g *Grid) PoolSize() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cells)
}
