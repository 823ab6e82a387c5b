package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/annel0/geocoin/internal/logging"
	"github.com/annel0/geocoin/internal/storage"
	"github.com/annel0/geocoin/internal/vec"
	"github.com/annel0/geocoin/internal/world"
)

// DefaultKey: ключ, под которым хранится сессия
const DefaultKey = "gameState"

// ErrMalformedSession возвращается при разборе повреждённого blob'а сессии
var ErrMalformedSession = errors.New("session: malformed persisted state")

// persistedSession: формат blob'а сессии в хранилище
type persistedSession struct {
	PlayerPosition *vec.LatLng            `json:"playerPosition"`
	PlayerCoins    []world.Token          `json:"playerCoins"`
	PlayerPath     []vec.LatLng           `json:"playerPath"`
	Caches         []world.DirectoryEntry `json:"caches"`
}

// Persistence сохраняет и загружает сессию целиком под одним ключом
type Persistence struct {
	store storage.BlobStore
	key   string
}

// NewPersistence создаёт слой сохранения поверх store
func NewPersistence(store storage.BlobStore, key string) *Persistence {
	if key == "" {
		key = DefaultKey
	}
	return &Persistence{store: store, key: key}
}

// Key возвращает ключ сессии
func (p *Persistence) Key() string {
	return p.key
}

// Save записывает полный снимок сессии, заменяя предыдущий
func (p *Persistence) Save(ctx context.Context, s *State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := p.store.Put(ctx, p.key, data); err != nil {
		return fmt.Errorf("save session %s: %w", p.key, err)
	}
	return nil
}

// Load читает сессию. Отсутствующий, повреждённый или нечитаемый blob
// даёт (nil, false): игра начинается заново.
func (p *Persistence) Load(ctx context.Context) (*State, bool) {
	data, err := p.store.Get(ctx, p.key)
	if errors.Is(err, storage.ErrNotFound) {
		logging.Debug("No saved session under %s", p.key)
		return nil, false
	}
	if err != nil {
		logging.Warn("Failed to read session %s, starting fresh: %v", p.key, err)
		return nil, false
	}

	state, err := Decode(data)
	if err != nil {
		logging.Warn("Discarding saved session %s: %v", p.key, err)
		return nil, false
	}
	return state, true
}

// Raw возвращает сохранённый blob без разбора
func (p *Persistence) Raw(ctx context.Context) ([]byte, error) {
	return p.store.Get(ctx, p.key)
}

// Clear удаляет сохранённую сессию
func (p *Persistence) Clear(ctx context.Context) error {
	if err := p.store.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("clear session %s: %w", p.key, err)
	}
	return nil
}

// Encode сериализует состояние в формат хранилища
func Encode(s *State) ([]byte, error) {
	position := s.Position
	blob := persistedSession{
		PlayerPosition: &position,
		PlayerCoins:    s.Inventory,
		PlayerPath:     s.Path,
		Caches:         s.Directory.Entries(),
	}
	if blob.PlayerCoins == nil {
		blob.PlayerCoins = []world.Token{}
	}
	if blob.PlayerPath == nil {
		blob.PlayerPath = []vec.LatLng{}
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

// Decode разбирает blob сессии. Разбор строгий и атомарный:
// любая ошибка отвергает весь blob.
func Decode(data []byte) (*State, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var blob persistedSession
	if err := dec.Decode(&blob); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedSession)
	}

	if blob.PlayerPosition == nil {
		return nil, fmt.Errorf("%w: missing playerPosition", ErrMalformedSession)
	}
	if !blob.PlayerPosition.IsValid() {
		return nil, fmt.Errorf("%w: invalid playerPosition", ErrMalformedSession)
	}
	for _, p := range blob.PlayerPath {
		if !p.IsValid() {
			return nil, fmt.Errorf("%w: invalid path point", ErrMalformedSession)
		}
	}
	for _, t := range blob.PlayerCoins {
		if t.Serial < 0 {
			return nil, fmt.Errorf("%w: negative serial in %s", ErrMalformedSession, t)
		}
	}

	directory := world.NewDirectory()
	if err := directory.Restore(blob.Caches); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}

	state := &State{
		Position:  *blob.PlayerPosition,
		Inventory: blob.PlayerCoins,
		Path:      blob.PlayerPath,
		Directory: directory,
	}
	if state.Inventory == nil {
		state.Inventory = []world.Token{}
	}
	if state.Path == nil {
		state.Path = []vec.LatLng{}
	}
	return state, nil
}
