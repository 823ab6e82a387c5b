package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/geocoin/internal/eventbus"
	"github.com/annel0/geocoin/internal/location"
	"github.com/annel0/geocoin/internal/logging"
	"github.com/annel0/geocoin/internal/vec"
	"github.com/annel0/geocoin/internal/world"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrCacheNotFound возвращается для клетки без тайника в текущей окрестности
	ErrCacheNotFound = errors.New("session: no cache at cell")
	// ErrLocationUnavailable возвращается, если живую геолокацию включить нельзя
	ErrLocationUnavailable = errors.New("session: live location unavailable")
	// ErrClosed возвращается после остановки цикла событий
	ErrClosed = errors.New("session: controller stopped")
)

// Сообщения статуса
const (
	StatusNoCoinsToCollect = "No more coins to collect!"
	StatusNoCoinsToDeposit = "Not enough coins to deposit :("
)

const eventSource = "session"

// Config: зависимости контроллера
type Config struct {
	Grid        *world.Grid
	Generator   *world.Generator
	Radius      int
	Persistence *Persistence
	Bus         eventbus.EventBus // может быть nil
	Location    location.Source   // может быть nil: живая геолокация недоступна
	Metrics     *Metrics          // nil: метрики в отдельном реестре
}

// command: одна операция, выполняемая циклом событий целиком
type command struct {
	ctx   context.Context
	fn    func(ctx context.Context) (View, error)
	reply chan result
}

type result struct {
	view View
	err  error
}

// Controller владеет состоянием сессии. Все изменения выполняются в одной
// горутине (Run) по одной команде за раз.
type Controller struct {
	cfg     Config
	metrics *Metrics

	state   *State
	visible map[*world.Cell]*world.Geocache
	order   []*world.Cell

	status string
	notice string

	live       location.Subscription
	liveCancel context.CancelFunc
	liveGen    uint64
	loopCtx    context.Context

	cmds chan command
	done chan struct{}
}

// NewController загружает сохранённую сессию (или создаёт новую) и
// материализует тайники вокруг игрока. Цикл событий запускается через Run.
func NewController(ctx context.Context, cfg Config) (*Controller, error) {
	if cfg.Grid == nil || cfg.Generator == nil || cfg.Persistence == nil {
		return nil, fmt.Errorf("session: grid, generator and persistence are required")
	}
	if cfg.Radius < 0 {
		cfg.Radius = 0
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	state, ok := cfg.Persistence.Load(ctx)
	if !ok {
		state = NewState(cfg.Grid.Origin())
		logging.Info("🆕 Starting fresh session at %.6f,%.6f", state.Position.Lat, state.Position.Lng)
	} else {
		logging.Info("💾 Restored session: %d coins, %d cache entries, %d path points",
			len(state.Inventory), state.Directory.Len(), len(state.Path))
	}

	c := &Controller{
		cfg:     cfg,
		metrics: metrics,
		state:   state,
		visible: make(map[*world.Cell]*world.Geocache),
		cmds:    make(chan command),
		done:    make(chan struct{}),
		loopCtx: context.Background(),
	}
	c.refresh()
	c.metrics.inventory.Set(float64(len(state.Inventory)))
	return c, nil
}

// Run обрабатывает команды до отмены ctx. Живая геолокация останавливается при выходе.
func (c *Controller) Run(ctx context.Context) error {
	c.loopCtx = ctx
	defer close(c.done)

	for {
		select {
		case cmd := <-c.cmds:
			view, err := cmd.fn(cmd.ctx)
			cmd.reply <- result{view: view, err: err}
		case <-ctx.Done():
			c.stopLive("shutdown")
			return nil
		}
	}
}

// exec передаёт операцию в цикл событий и ждёт результат
func (c *Controller) exec(ctx context.Context, fn func(ctx context.Context) (View, error)) (View, error) {
	cmd := command{ctx: ctx, fn: fn, reply: make(chan result, 1)}

	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-c.done:
		return View{}, ErrClosed
	}

	select {
	case res := <-cmd.reply:
		return res.view, res.err
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// View возвращает текущее состояние для отображения.
// Одноразовое уведомление (например, о недоступной геолокации) сбрасывается после показа.
func (c *Controller) View(ctx context.Context) (View, error) {
	return c.exec(ctx, func(context.Context) (View, error) {
		v := c.view()
		c.notice = ""
		return v, nil
	})
}

// Move сдвигает игрока на (di, dj) клеток
func (c *Controller) Move(ctx context.Context, di, dj int) (View, error) {
	return c.exec(ctx, func(ctx context.Context) (View, error) {
		target := c.state.Position.Step(vec.Vec2{X: di, Y: dj}, c.cfg.Grid.TileDegrees())
		c.moveTo(ctx, target, false)
		return c.view(), nil
	})
}

// MoveTo перемещает игрока в произвольную точку
func (c *Controller) MoveTo(ctx context.Context, p vec.LatLng) (View, error) {
	if !p.IsValid() {
		return View{}, fmt.Errorf("session: invalid position %.6f,%.6f", p.Lat, p.Lng)
	}
	return c.exec(ctx, func(ctx context.Context) (View, error) {
		c.moveTo(ctx, p, false)
		return c.view(), nil
	})
}

// Collect переносит верхний токен тайника в инвентарь
func (c *Controller) Collect(ctx context.Context, i, j int) (View, error) {
	return c.exec(ctx, func(ctx context.Context) (View, error) {
		cell := c.cfg.Grid.Cell(i, j)
		cache, ok := c.visible[cell]
		if !ok {
			return c.view(), fmt.Errorf("%w %s", ErrCacheNotFound, cell)
		}

		token, ok := cache.Take()
		if !ok {
			c.status = StatusNoCoinsToCollect
			c.metrics.emptyActions.WithLabelValues("collect").Inc()
			return c.view(), nil
		}

		c.state.PushToken(token)
		c.state.Directory.Set(cell, cache.Snapshot())
		c.status = coinsStatus(len(c.state.Inventory))
		c.metrics.coinsCollected.Inc()
		c.metrics.inventory.Set(float64(len(c.state.Inventory)))

		c.save(ctx)
		c.publish(ctx, eventbus.EventCoinCollected, eventbus.CoinTransfer{
			Cache:     cell.Key(),
			Token:     token,
			CacheSize: cache.Size(),
			Inventory: len(c.state.Inventory),
		})
		return c.view(), nil
	})
}

// Deposit переносит верхний токен инвентаря в тайник
func (c *Controller) Deposit(ctx context.Context, i, j int) (View, error) {
	return c.exec(ctx, func(ctx context.Context) (View, error) {
		cell := c.cfg.Grid.Cell(i, j)
		cache, ok := c.visible[cell]
		if !ok {
			return c.view(), fmt.Errorf("%w %s", ErrCacheNotFound, cell)
		}

		token, ok := c.state.PopToken()
		if !ok {
			c.status = StatusNoCoinsToDeposit
			c.metrics.emptyActions.WithLabelValues("deposit").Inc()
			return c.view(), nil
		}

		if err := cache.Put(token); err != nil {
			c.state.PushToken(token)
			return c.view(), fmt.Errorf("deposit %s into %s: %w", token, cell, err)
		}

		c.state.Directory.Set(cell, cache.Snapshot())
		c.status = coinsStatus(len(c.state.Inventory))
		c.metrics.coinsDeposited.Inc()
		c.metrics.inventory.Set(float64(len(c.state.Inventory)))

		c.save(ctx)
		c.publish(ctx, eventbus.EventCoinDeposited, eventbus.CoinTransfer{
			Cache:     cell.Key(),
			Token:     token,
			CacheSize: cache.Size(),
			Inventory: len(c.state.Inventory),
		})
		return c.view(), nil
	})
}

// Reset возвращает сессию к состоянию свежей установки.
// Живая геолокация, если включена, продолжает работать.
func (c *Controller) Reset(ctx context.Context) (View, error) {
	return c.exec(ctx, func(ctx context.Context) (View, error) {
		c.state = NewState(c.cfg.Grid.Origin())
		c.visible = make(map[*world.Cell]*world.Geocache)
		c.order = nil
		c.status = ""
		c.notice = ""
		c.refresh()

		c.metrics.resets.Inc()
		c.metrics.inventory.Set(0)
		c.save(ctx)
		c.publish(ctx, eventbus.EventSessionReset, struct{}{})
		logging.Info("🔄 Session reset")
		return c.view(), nil
	})
}

// ToggleLiveLocation включает или выключает живую геолокацию.
// Возвращает новое состояние; при недоступности источника возвращает ErrLocationUnavailable.
func (c *Controller) ToggleLiveLocation(ctx context.Context) (bool, error) {
	view, err := c.exec(ctx, func(context.Context) (View, error) {
		if c.live != nil {
			c.stopLive("toggled off")
			return c.view(), nil
		}
		err := c.startLive()
		return c.view(), err
	})
	return view.Live, err
}

// StopLive выключает живую геолокацию. Повторный вызов безопасен.
func (c *Controller) StopLive(ctx context.Context) error {
	_, err := c.exec(ctx, func(context.Context) (View, error) {
		c.stopLive("stopped")
		return c.view(), nil
	})
	return err
}

// startLive подписывается на источник геолокации
func (c *Controller) startLive() error {
	if c.cfg.Location == nil {
		c.notice = "Live location is not available"
		return ErrLocationUnavailable
	}

	c.liveGen++
	gen := c.liveGen
	subCtx, cancel := context.WithCancel(c.loopCtx)

	onFix := func(fix location.Fix) {
		c.enqueue(subCtx, func(ctx context.Context) (View, error) {
			if c.live == nil || c.liveGen != gen {
				return View{}, nil
			}
			c.moveTo(ctx, fix.Position, true)
			return View{}, nil
		})
	}
	onErr := func(err error) {
		if !errors.Is(err, location.ErrPermissionDenied) {
			logging.GetLocationLogger().Warn("Live location error: %v", err)
			return
		}
		c.enqueue(subCtx, func(context.Context) (View, error) {
			if c.live == nil || c.liveGen != gen {
				return View{}, nil
			}
			c.stopLive("permission denied")
			c.notice = "Live location permission denied"
			return View{}, nil
		})
	}

	sub, err := c.cfg.Location.Subscribe(subCtx, onFix, onErr)
	if err != nil {
		cancel()
		c.notice = "Live location is not available"
		logging.GetLocationLogger().Warn("Cannot start live location: %v", err)
		return fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	c.live = sub
	c.liveCancel = cancel
	c.notice = ""
	c.publish(subCtx, eventbus.EventLiveStarted, eventbus.LiveLocation{})
	logging.Info("📍 Live location started")
	return nil
}

// stopLive отменяет подписку; измерения, пришедшие позже, отбрасываются
func (c *Controller) stopLive(reason string) {
	if c.live == nil {
		return
	}

	// Контекст отменяется до Stop, чтобы обработчик источника не ждал цикл событий
	c.liveCancel()
	c.live.Stop()
	c.live = nil
	c.liveCancel = nil
	c.liveGen++

	c.publish(context.Background(), eventbus.EventLiveStopped, eventbus.LiveLocation{Reason: reason})
	logging.Info("📍 Live location stopped: %s", reason)
}

// enqueue ставит команду в очередь без ожидания результата
func (c *Controller) enqueue(ctx context.Context, fn func(ctx context.Context) (View, error)) {
	cmd := command{ctx: ctx, fn: fn, reply: make(chan result, 1)}
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
	case <-c.done:
	}
}

// moveTo: позиция -> след -> сохранение -> обновление окрестности
func (c *Controller) moveTo(ctx context.Context, target vec.LatLng, live bool) {
	from := c.state.Position
	c.state.MoveTo(target)
	logging.LogPlayerMove(from.Lat, from.Lng, target.Lat, target.Lng)

	c.save(ctx)
	c.refresh()

	source := "manual"
	if live {
		source = "live"
	}
	c.metrics.moves.WithLabelValues(source).Inc()
	c.publish(ctx, eventbus.EventPlayerMoved, eventbus.PlayerMoved{
		From: from,
		To:   target,
		Cell: c.cfg.Grid.CellForPoint(target).Key(),
		Live: live,
	})
}

// refresh материализует тайники в окрестности игрока.
// Тайники, оставшиеся в окрестности, сохраняются как есть; новые берутся из
// каталога или из генератора.
func (c *Controller) refresh() {
	cells := c.cfg.Grid.CellsNear(c.state.Position, c.cfg.Radius)
	visible := make(map[*world.Cell]*world.Geocache)
	order := make([]*world.Cell, 0)

	for _, cell := range cells {
		if !c.cfg.Generator.ShouldSpawn(cell) {
			continue
		}

		cache, ok := c.visible[cell]
		if !ok {
			cache = c.materialize(cell)
		}
		visible[cell] = cache
		order = append(order, cell)
	}

	c.visible = visible
	c.order = order
	c.metrics.visibleCaches.Set(float64(len(order)))
}

// materialize создаёт тайник клетки из снимка каталога или генератора
func (c *Controller) materialize(cell *world.Cell) *world.Geocache {
	cache := world.NewGeocache(cell)

	if snapshot, ok := c.state.Directory.Get(cell); ok {
		err := cache.RestoreFromSnapshot(snapshot)
		if err == nil {
			return cache
		}
		logging.Warn("Cache %s has unreadable snapshot, regenerating: %v", cell, err)
	}

	if err := cache.InitializeFresh(c.cfg.Generator); err != nil {
		logging.Error("Cache %s initialization failed: %v", cell, err)
	}
	return cache
}

// save сохраняет сессию; ошибка записывается в лог и метрики, но не возвращается
func (c *Controller) save(ctx context.Context) {
	if err := c.cfg.Persistence.Save(ctx, c.state); err != nil {
		c.metrics.saveFailures.Inc()
		logging.Warn("Session save failed: %v", err)
		c.publish(ctx, eventbus.EventSessionSaveFailed, eventbus.SaveFailed{Error: err.Error()})
		return
	}
	c.metrics.saves.Inc()
}

// publish отправляет игровое событие, если шина настроена
func (c *Controller) publish(ctx context.Context, eventType string, payload interface{}) {
	if c.cfg.Bus == nil {
		return
	}

	ev, err := eventbus.NewEvent(eventSource, eventType, 1, payload)
	if err != nil {
		logging.Warn("Event %s not built: %v", eventType, err)
		return
	}
	if err := c.cfg.Bus.Publish(ctx, ev); err != nil {
		logging.Debug("Event %s not published: %v", eventType, err)
	}
}

func coinsStatus(n int) string {
	return fmt.Sprintf("You have %d coins", n)
}
