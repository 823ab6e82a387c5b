package world

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidKey возвращается при разборе некорректного ключа клетки.
var ErrInvalidKey = errors.New("world: invalid cell key")

// Cell: неизменяемые координаты клетки сетки относительно начала координат.
// Экземпляры выдаёт Grid: для одинаковых (i, j) возвращается один и тот же *Cell,
// поэтому указатель можно использовать как ключ карты.
type Cell struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Key возвращает каноническое строковое представление "i:j".
func (c Cell) Key() string {
	return CellKey(c.I, c.J)
}

// String реализует fmt.Stringer
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.I, c.J)
}

// CellKey формирует ключ "i:j" без обращения к Grid.
func CellKey(i, j int) string {
	return strconv.Itoa(i) + ":" + strconv.Itoa(j)
}

// ParseCellKey разбирает ключ "i:j".
func ParseCellKey(key string) (int, int, error) {
	parts := strings.Split(key, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	i, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	j, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return i, j, nil
}
