package session

import (
	"github.com/annel0/geocoin/internal/vec"
	"github.com/annel0/geocoin/internal/world"
)

// State: агрегат состояния сессии: позиция игрока, инвентарь, след и каталог тайников.
// State не потокобезопасен: им владеет Controller.
type State struct {
	Position  vec.LatLng
	Inventory []world.Token // стек: вершина в конце
	Path      []vec.LatLng  // только добавление
	Directory *world.Directory
}

// NewState возвращает состояние свежей установки: игрок в точке origin
func NewState(origin vec.LatLng) *State {
	return &State{
		Position:  origin,
		Inventory: []world.Token{},
		Path:      []vec.LatLng{origin},
		Directory: world.NewDirectory(),
	}
}

// PushToken кладёт токен на вершину инвентаря
func (s *State) PushToken(t world.Token) {
	s.Inventory = append(s.Inventory, t)
}

// PopToken снимает верхний токен инвентаря
func (s *State) PopToken() (world.Token, bool) {
	n := len(s.Inventory)
	if n == 0 {
		return world.Token{}, false
	}
	t := s.Inventory[n-1]
	s.Inventory = s.Inventory[:n-1]
	return t, true
}

// MoveTo обновляет позицию и дописывает её в след
func (s *State) MoveTo(p vec.LatLng) {
	s.Position = p
	s.Path = append(s.Path, p)
}
