package session

import (
	"github.com/annel0/geocoin/internal/vec"
	"github.com/annel0/geocoin/internal/world"
)

// CacheView: то, что нужно слою отображения для одного тайника
type CacheView struct {
	I      int          `json:"i"`
	J      int          `json:"j"`
	Key    string       `json:"key"`
	Bounds world.Bounds `json:"bounds"`
	Size   int          `json:"size"`
}

// View: снимок сессии для отображения
type View struct {
	Position  vec.LatLng   `json:"position"`
	Cell      world.Cell   `json:"cell"`
	Inventory []string     `json:"inventory"`
	Coins     int          `json:"coins"`
	Path      []vec.LatLng `json:"path"`
	Caches    []CacheView  `json:"caches"`
	Live      bool         `json:"live"`
	Status    string       `json:"status,omitempty"`
	Notice    string       `json:"notice,omitempty"`
}

// view собирает View
func (c *Controller) view() View {
	grid := c.cfg.Grid
	v := View{
		Position:  c.state.Position,
		Cell:      *grid.CellForPoint(c.state.Position),
		Inventory: make([]string, 0, len(c.state.Inventory)),
		Coins:     len(c.state.Inventory),
		Path:      append([]vec.LatLng(nil), c.state.Path...),
		Caches:    make([]CacheView, 0, len(c.order)),
		Live:      c.live != nil,
		Status:    c.status,
		Notice:    c.notice,
	}

	for _, t := range c.state.Inventory {
		v.Inventory = append(v.Inventory, t.String())
	}
	for _, cell := range c.order {
		v.Caches = append(v.Caches, CacheView{
			I:      cell.I,
			J:      cell.J,
			Key:    cell.Key(),
			Bounds: grid.BoundsForCell(cell),
			Size:   c.visible[cell].Size(),
		})
	}
	return v
}

// TopCoin возвращает верхнюю монету инвентаря
func (v View) TopCoin() (string, bool) {
	if len(v.Inventory) == 0 {
		return "", false
	}
	return v.Inventory[len(v.Inventory)-1], true
}

// Cache возвращает тайник по ключу "i:j"
func (v View) Cache(key string) (CacheView, bool) {
	for _, cache := range v.Caches {
		if cache.Key == key {
			return cache, true
		}
	}
	return CacheView{}, false
}
