package location

import (
	"context"
	"errors"
	"sync"

	"github.com/annel0/geocoin/internal/logging"
)

// Hub раздаёт измерения от подключённых провайдеров (вкладок браузера через
// WebSocket) подписчикам. Подписка возможна только при наличии хотя бы одного провайдера.
type Hub struct {
	mu          sync.RWMutex
	providers   int
	denied      bool
	subscribers map[int]*hubSub
	nextID      int
}

type hubSub struct {
	hub    *Hub
	id     int
	ctx    context.Context
	cancel context.CancelFunc
	onFix  Handler
	onErr  ErrorHandler
	once   sync.Once
}

// NewHub создаёт пустой хаб
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int]*hubSub),
	}
}

// Attach регистрирует провайдера. Возвращаемая функция отключает его.
func (h *Hub) Attach() (detach func()) {
	h.mu.Lock()
	h.providers++
	h.denied = false
	h.mu.Unlock()

	logging.GetLocationLogger().Info("📍 Location provider attached")

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			h.providers--
			h.mu.Unlock()
			logging.GetLocationLogger().Info("📍 Location provider detached")
		})
	}
}

// Providers возвращает количество подключённых провайдеров
func (h *Hub) Providers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.providers
}

// Subscribe реализует Source
func (h *Hub) Subscribe(ctx context.Context, onFix Handler, onErr ErrorHandler) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.denied {
		return nil, ErrPermissionDenied
	}
	if h.providers == 0 {
		return nil, ErrUnavailable
	}

	sctx, cancel := context.WithCancel(ctx)
	sub := &hubSub{
		hub:    h,
		id:     h.nextID,
		ctx:    sctx,
		cancel: cancel,
		onFix:  onFix,
		onErr:  onErr,
	}
	h.nextID++
	h.subscribers[sub.id] = sub
	return sub, nil
}

// Publish доставляет измерение всем подписчикам
func (h *Hub) Publish(fix Fix) {
	for _, sub := range h.snapshot() {
		if sub.ctx.Err() != nil {
			continue
		}
		sub.onFix(fix)
	}
}

// Fail доставляет ошибку провайдера всем подписчикам.
// ErrPermissionDenied запоминается до подключения нового провайдера.
func (h *Hub) Fail(err error) {
	if errors.Is(err, ErrPermissionDenied) {
		h.mu.Lock()
		h.denied = true
		h.mu.Unlock()
	}

	for _, sub := range h.snapshot() {
		if sub.ctx.Err() != nil || sub.onErr == nil {
			continue
		}
		sub.onErr(err)
	}
}

// snapshot копирует список подписчиков, чтобы вызывать обработчики без блокировки
func (h *Hub) snapshot() []*hubSub {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*hubSub, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

// Stop отменяет подписку
func (s *hubSub) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.hub.mu.Lock()
		delete(s.hub.subscribers, s.id)
		s.hub.mu.Unlock()
	})
}
