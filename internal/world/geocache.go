package world

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrAlreadyPopulated возвращается при повторной инициализации тайника
	ErrAlreadyPopulated = errors.New("world: geocache already populated")
	// ErrNotPopulated возвращается при записи в неинициализированный тайник
	ErrNotPopulated = errors.New("world: geocache not populated")
	// ErrInvalidSnapshot возвращается при разборе повреждённого снимка
	ErrInvalidSnapshot = errors.New("world: invalid geocache snapshot")
)

// Snapshot: непрозрачный сериализованный снимок стека токенов тайника (memento).
// Разбирать снимок умеет только Geocache.
type Snapshot string

// cacheState: стадия жизненного цикла тайника
type cacheState int

const (
	stateUninitialized cacheState = iota
	statePopulated
)

// Geocache: изменяемый стек токенов, привязанный к одной клетке.
// Тайник не рендерит себя и не пишет в каталог: этим занимается вызывающая сторона.
type Geocache struct {
	cell   *Cell
	tokens []Token
	state  cacheState
}

// NewGeocache создаёт неинициализированный тайник в клетке
func NewGeocache(cell *Cell) *Geocache {
	return &Geocache{cell: cell}
}

// Cell возвращает клетку тайника
func (gc *Geocache) Cell() *Cell {
	return gc.cell
}

// Populated сообщает, заполнен ли тайник
func (gc *Geocache) Populated() bool {
	return gc.state == statePopulated
}

// InitializeFresh заполняет тайник содержимым из генератора
func (gc *Geocache) InitializeFresh(gen *Generator) error {
	if gc.state == statePopulated {
		return ErrAlreadyPopulated
	}

	gc.tokens = gen.Generate(gc.cell)
	gc.state = statePopulated
	return nil
}

// RestoreFromSnapshot восстанавливает содержимое из снимка.
// При ошибке состояние тайника не меняется.
func (gc *Geocache) RestoreFromSnapshot(s Snapshot) error {
	if gc.state == statePopulated {
		return ErrAlreadyPopulated
	}

	tokens, err := decodeSnapshot(s)
	if err != nil {
		return err
	}

	gc.tokens = tokens
	gc.state = statePopulated
	return nil
}

// Take снимает верхний (последний добавленный) токен.
// Для пустого или неинициализированного тайника возвращает false.
func (gc *Geocache) Take() (Token, bool) {
	n := len(gc.tokens)
	if gc.state != statePopulated || n == 0 {
		return Token{}, false
	}

	token := gc.tokens[n-1]
	gc.tokens = gc.tokens[:n-1]
	return token, true
}

// Put кладёт токен на вершину стека независимо от его происхождения
func (gc *Geocache) Put(t Token) error {
	if gc.state != statePopulated {
		return ErrNotPopulated
	}

	gc.tokens = append(gc.tokens, t)
	return nil
}

// Size возвращает текущее количество токенов
func (gc *Geocache) Size() int {
	return len(gc.tokens)
}

// Snapshot сериализует текущий стек токенов
func (gc *Geocache) Snapshot() Snapshot {
	return EncodeSnapshot(gc.tokens)
}

// EncodeSnapshot сериализует последовательность токенов в снимок
func EncodeSnapshot(tokens []Token) Snapshot {
	if tokens == nil {
		tokens = []Token{}
	}

	// Token состоит только из int-полей, ошибка невозможна
	data, _ := json.Marshal(tokens)
	return Snapshot(data)
}

// ValidateSnapshot проверяет, что снимок разбирается
func ValidateSnapshot(s Snapshot) error {
	_, err := decodeSnapshot(s)
	return err
}

func decodeSnapshot(s Snapshot) ([]Token, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var tokens []Token
	if err := dec.Decode(&tokens); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	// "null" декодируется без ошибки, но снимком не является
	if tokens == nil {
		return nil, fmt.Errorf("%w: not a token list", ErrInvalidSnapshot)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidSnapshot)
	}

	return tokens, nil
}
