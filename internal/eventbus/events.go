package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/geocoin/internal/vec"
	"github.com/annel0/geocoin/internal/world"
	"github.com/google/uuid"
)

// Типы игровых событий
const (
	EventPlayerMoved       = "player.moved"
	EventCoinCollected     = "coin.collected"
	EventCoinDeposited     = "coin.deposited"
	EventSessionReset      = "session.reset"
	EventSessionSaveFailed = "session.save_failed"
	EventLiveStarted       = "location.live_started"
	EventLiveStopped       = "location.live_stopped"
)

// PlayerMoved полезная нагрузка player.moved
type PlayerMoved struct {
	From vec.LatLng `json:"from"`
	To   vec.LatLng `json:"to"`
	Cell string     `json:"cell"`
	Live bool       `json:"live"`
}

// CoinTransfer полезная нагрузка coin.collected и coin.deposited
type CoinTransfer struct {
	Cache     string      `json:"cache"`
	Token     world.Token `json:"token"`
	CacheSize int         `json:"cache_size"`
	Inventory int         `json:"inventory"`
}

// SaveFailed полезная нагрузка session.save_failed
type SaveFailed struct {
	Error string `json:"error"`
}

// LiveLocation полезная нагрузка location.live_*
type LiveLocation struct {
	Reason string `json:"reason,omitempty"`
}

// NewEvent собирает Envelope с новым UUID и JSON полезной нагрузкой
func NewEvent(source, eventType string, priority int, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку события в v
func (e *Envelope) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
