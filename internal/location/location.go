package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/geocoin/internal/vec"
)

var (
	// ErrUnavailable возвращается, если источник геолокации отсутствует
	ErrUnavailable = errors.New("location: unavailable")
	// ErrPermissionDenied сообщает, что пользователь запретил доступ к геолокации
	ErrPermissionDenied = errors.New("location: permission denied")
	// ErrSource: временная ошибка, сообщённая источником (таймаут, нет сигнала)
	ErrSource = errors.New("location: source error")
)

// Fix: одно измерение позиции от источника
type Fix struct {
	Position  vec.LatLng
	Timestamp time.Time
}

// Handler получает новые измерения
type Handler func(Fix)

// ErrorHandler получает ошибки источника. ErrPermissionDenied означает,
// что подписка больше не принесёт измерений.
type ErrorHandler func(error)

// Subscription: активная подписка на поток измерений
type Subscription interface {
	// Stop отменяет подписку. Повторный вызов безопасен.
	Stop()
}

// Source: поставщик живой геолокации
type Source interface {
	Subscribe(ctx context.Context, onFix Handler, onErr ErrorHandler) (Subscription, error)
}

// Message: формат сообщения геолокации в WebSocket и NATS:
// {"lat":..,"lng":..} либо {"error":"permission_denied"}.
type Message struct {
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Коды ошибок в сообщениях
const (
	CodePermissionDenied = "permission_denied"
	CodeUnavailable      = "position_unavailable"
	CodeTimeout          = "timeout"
)

// DecodeMessage разбирает сообщение источника.
// Ошибка ErrPermissionDenied терминальна, остальные ошибки временные.
func DecodeMessage(data []byte) (Fix, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Fix{}, fmt.Errorf("location: malformed message: %w", err)
	}

	if msg.Error != "" {
		if msg.Error == CodePermissionDenied {
			return Fix{}, ErrPermissionDenied
		}
		return Fix{}, fmt.Errorf("%w %q", ErrSource, msg.Error)
	}

	if msg.Lat == nil || msg.Lng == nil {
		return Fix{}, fmt.Errorf("location: message without coordinates")
	}

	pos := vec.LatLng{Lat: *msg.Lat, Lng: *msg.Lng}
	if !pos.IsValid() {
		return Fix{}, fmt.Errorf("location: invalid coordinates %.6f,%.6f", pos.Lat, pos.Lng)
	}

	return Fix{Position: pos, Timestamp: time.Now().UTC()}, nil
}
