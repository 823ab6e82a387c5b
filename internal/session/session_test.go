package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/annel0/geocoin/internal/eventbus"
	"github.com/annel0/geocoin/internal/location"
	"github.com/annel0/geocoin/internal/storage"
	"github.com/annel0/geocoin/internal/vec"
	"github.com/annel0/geocoin/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOrigin = vec.LatLng{Lat: 36.98949379578401, Lng: -122.06277128548504}

const testRadius = 2

// testGenerator размещает тайники по 5 монет только в клетках (0,0) и (1,1)
func testGenerator() *world.Generator {
	return &world.Generator{
		Luck: func(seed string) float64 {
			switch seed {
			case "0,0", "1,1":
				return 0
			}
			if strings.HasSuffix(seed, ","+world.DefaultContentSeed) {
				return 0.055
			}
			return 0.99
		},
		SpawnProbability: world.DefaultSpawnProbability,
		ContentScale:     world.DefaultContentScale,
		ContentSeed:      world.DefaultContentSeed,
	}
}

type harness struct {
	ctrl    *Controller
	store   storage.BlobStore
	metrics *Metrics
}

func newHarness(t *testing.T, store storage.BlobStore, source location.Source, bus eventbus.EventBus) *harness {
	t.Helper()

	metrics := NewMetrics(prometheus.NewRegistry())
	ctrl, err := NewController(context.Background(), Config{
		Grid:        world.NewGrid(testOrigin, world.DefaultTileDegrees),
		Generator:   testGenerator(),
		Radius:      testRadius,
		Persistence: NewPersistence(store, DefaultKey),
		Bus:         bus,
		Location:    source,
		Metrics:     metrics,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	return &harness{ctrl: ctrl, store: store, metrics: metrics}
}

func TestFreshSession(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil, nil)

	view, err := h.ctrl.View(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testOrigin, view.Position)
	assert.Equal(t, world.Cell{I: 0, J: 0}, view.Cell)
	assert.Equal(t, []vec.LatLng{testOrigin}, view.Path)
	assert.Empty(t, view.Inventory)
	assert.False(t, view.Live)

	require.Len(t, view.Caches, 2)
	assert.Equal(t, "0:0", view.Caches[0].Key)
	assert.Equal(t, "1:1", view.Caches[1].Key)
	assert.Equal(t, 5, view.Caches[0].Size)
	assert.InDelta(t, testOrigin.Lat, view.Caches[0].Bounds.SouthWest.Lat, 1e-12)
}

func TestCollectDrainsCache(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil, nil)
	ctx := context.Background()

	for serial := 4; serial >= 0; serial-- {
		view, err := h.ctrl.Collect(ctx, 0, 0)
		require.NoError(t, err)
		top, ok := view.TopCoin()
		require.True(t, ok)
		assert.Equal(t, world.Token{I: 0, J: 0, Serial: serial}.String(), top)
		assert.Equal(t, coinsStatus(5-serial), view.Status)
	}

	view, err := h.ctrl.Collect(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusNoCoinsToCollect, view.Status)
	assert.Equal(t, 5, view.Coins)

	cache, ok := view.Cache("0:0")
	require.True(t, ok)
	assert.Equal(t, 0, cache.Size)
	assert.Equal(t, 5.0, testutil.ToFloat64(h.metrics.coinsCollected))
}

func TestDepositWithEmptyInventory(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil, nil)

	view, err := h.ctrl.Deposit(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusNoCoinsToDeposit, view.Status)

	cache, ok := view.Cache("1:1")
	require.True(t, ok)
	assert.Equal(t, 5, cache.Size)
}

func TestActionOnCellWithoutCache(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil, nil)

	_, err := h.ctrl.Collect(context.Background(), 0, 1)
	assert.ErrorIs(t, err, ErrCacheNotFound)

	_, err = h.ctrl.Deposit(context.Background(), 7, 7)
	assert.ErrorIs(t, err, ErrCacheNotFound)
}

func TestDepositThenCollectKeepsToken(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil, nil)
	ctx := context.Background()

	_, err := h.ctrl.Collect(ctx, 0, 0)
	require.NoError(t, err)

	view, err := h.ctrl.Deposit(ctx, 1, 1)
	require.NoError(t, err)
	assert.Empty(t, view.Inventory)
	cache, _ := view.Cache("1:1")
	assert.Equal(t, 6, cache.Size)

	view, err = h.ctrl.Collect(ctx, 1, 1)
	require.NoError(t, err)
	top, ok := view.TopCoin()
	require.True(t, ok)
	// Происхождение токена не переписывается
	assert.Equal(t, "0:0#4", top)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil, nil)
	ctx := context.Background()

	_, err := h.ctrl.Collect(ctx, 0, 0)
	require.NoError(t, err)
	_, err = h.ctrl.Collect(ctx, 0, 0)
	require.NoError(t, err)
	_, err = h.ctrl.Deposit(ctx, 1, 1)
	require.NoError(t, err)
	before, err := h.ctrl.Move(ctx, 0, 1)
	require.NoError(t, err)

	saved, err := store.Get(ctx, DefaultKey)
	require.NoError(t, err)

	state, ok := NewPersistence(store, DefaultKey).Load(ctx)
	require.True(t, ok)
	reencoded, err := Encode(state)
	require.NoError(t, err)
	assert.Equal(t, string(saved), string(reencoded))

	entries := state.Directory.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "0:0", entries[0].Key)
	assert.Equal(t, "1:1", entries[1].Key)

	// Новый контроллер поверх того же хранилища видит ту же сессию
	restored := newHarness(t, store, nil, nil)
	after, err := restored.ctrl.View(ctx)
	require.NoError(t, err)
	before.Status = ""
	assert.Equal(t, before, after)
}

func TestCorruptedSessionStartsFresh(t *testing.T) {
	ctx := context.Background()

	for name, blob := range map[string]string{
		"garbage":        "{not json",
		"null":           "null",
		"bad snapshot":   `{"playerPosition":{"lat":1,"lng":2},"playerCoins":[],"playerPath":[],"caches":[{"key":"0:0","value":"oops"}]}`,
		"bad key":        `{"playerPosition":{"lat":1,"lng":2},"playerCoins":[],"playerPath":[],"caches":[{"key":"zero","value":"[]"}]}`,
		"unknown field":  `{"playerPosition":{"lat":1,"lng":2},"version":2}`,
		"missing player": `{"playerCoins":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Put(ctx, DefaultKey, []byte(blob)))

			corrupted := newHarness(t, store, nil, nil)
			fresh := newHarness(t, storage.NewMemoryStore(), nil, nil)

			got, err := corrupted.ctrl.View(ctx)
			require.NoError(t, err)
			want, err := fresh.ctrl.View(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestMoveUpdatesPathAndNeighborhood(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil, nil)
	ctx := context.Background()

	_, err := h.ctrl.Collect(ctx, 0, 0)
	require.NoError(t, err)

	view, err := h.ctrl.Move(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, world.Cell{I: 1, J: 0}, view.Cell)
	assert.Len(t, view.Path, 2)

	// Уходим далеко: тайники исчезают из окрестности
	for step := 0; step < 10; step++ {
		view, err = h.ctrl.Move(ctx, 1, 0)
		require.NoError(t, err)
	}
	assert.Empty(t, view.Caches)

	// Возвращаемся: состояние тайника берётся из каталога
	for step := 0; step < 11; step++ {
		view, err = h.ctrl.Move(ctx, -1, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, world.Cell{I: 0, J: 0}, view.Cell)
	cache, ok := view.Cache("0:0")
	require.True(t, ok)
	assert.Equal(t, 4, cache.Size)
	assert.Len(t, view.Path, 23)

	state, ok := NewPersistence(store, DefaultKey).Load(ctx)
	require.True(t, ok)
	assert.Len(t, state.Path, 23)
	assert.Equal(t, 22.0, testutil.ToFloat64(h.metrics.moves.WithLabelValues("manual")))
}

func TestSaveFailureIsSilent(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Close())
	h := newHarness(t, store, nil, nil)

	view, err := h.ctrl.Collect(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Coins)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.saveFailures))
}

func TestReset(t *testing.T) {
	store := storage.NewMemoryStore()
	h := newHarness(t, store, nil, nil)
	ctx := context.Background()

	_, err := h.ctrl.Collect(ctx, 0, 0)
	require.NoError(t, err)
	_, err = h.ctrl.Move(ctx, 2, 2)
	require.NoError(t, err)

	view, err := h.ctrl.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, testOrigin, view.Position)
	assert.Equal(t, []vec.LatLng{testOrigin}, view.Path)
	assert.Empty(t, view.Inventory)
	cache, ok := view.Cache("0:0")
	require.True(t, ok)
	assert.Equal(t, 5, cache.Size)

	state, ok := NewPersistence(store, DefaultKey).Load(ctx)
	require.True(t, ok)
	assert.Equal(t, 0, state.Directory.Len())
	assert.Empty(t, state.Inventory)
}

func TestLiveLocationUnavailable(t *testing.T) {
	h := newHarness(t, storage.NewMemoryStore(), nil, nil)
	ctx := context.Background()

	live, err := h.ctrl.ToggleLiveLocation(ctx)
	assert.ErrorIs(t, err, ErrLocationUnavailable)
	assert.False(t, live)

	view, err := h.ctrl.View(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, view.Notice)
	assert.False(t, view.Live)

	// Уведомление показывается один раз
	view, err = h.ctrl.View(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Notice)

	hub := location.NewHub()
	withHub := newHarness(t, storage.NewMemoryStore(), hub, nil)
	_, err = withHub.ctrl.ToggleLiveLocation(ctx)
	assert.ErrorIs(t, err, ErrLocationUnavailable)
}

func TestLiveLocationMovesPlayer(t *testing.T) {
	hub := location.NewHub()
	hub.Attach()
	h := newHarness(t, storage.NewMemoryStore(), hub, nil)
	ctx := context.Background()

	live, err := h.ctrl.ToggleLiveLocation(ctx)
	require.NoError(t, err)
	require.True(t, live)

	target := testOrigin.Add(3.5e-4, 3.5e-4)
	hub.Publish(location.Fix{Position: target})

	view, err := h.ctrl.View(ctx)
	require.NoError(t, err)
	assert.True(t, view.Live)
	assert.Equal(t, target, view.Position)
	assert.Equal(t, world.Cell{I: 3, J: 3}, view.Cell)
	assert.Len(t, view.Path, 2)

	live, err = h.ctrl.ToggleLiveLocation(ctx)
	require.NoError(t, err)
	assert.False(t, live)

	// После остановки измерения отбрасываются
	hub.Publish(location.Fix{Position: testOrigin})
	view, err = h.ctrl.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, target, view.Position)

	require.NoError(t, h.ctrl.StopLive(ctx))
	require.NoError(t, h.ctrl.StopLive(ctx))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.moves.WithLabelValues("live")))
}

func TestLiveLocationPermissionDenied(t *testing.T) {
	hub := location.NewHub()
	hub.Attach()
	h := newHarness(t, storage.NewMemoryStore(), hub, nil)
	ctx := context.Background()

	_, err := h.ctrl.ToggleLiveLocation(ctx)
	require.NoError(t, err)

	hub.Fail(location.ErrPermissionDenied)

	view, err := h.ctrl.View(ctx)
	require.NoError(t, err)
	assert.False(t, view.Live)
	assert.NotEmpty(t, view.Notice)

	// Сессия продолжает работать
	_, err = h.ctrl.Collect(ctx, 0, 0)
	assert.NoError(t, err)
}

func TestEventsPublished(t *testing.T) {
	bus := eventbus.NewMemoryBus(64)
	defer bus.Close()

	var (
		mu    sync.Mutex
		types []string
	)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		types = append(types, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	h := newHarness(t, storage.NewMemoryStore(), nil, bus)
	ctx := context.Background()
	_, err = h.ctrl.Collect(ctx, 0, 0)
	require.NoError(t, err)
	_, err = h.ctrl.Deposit(ctx, 1, 1)
	require.NoError(t, err)
	_, err = h.ctrl.Reset(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(types) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{eventbus.EventCoinCollected, eventbus.EventCoinDeposited, eventbus.EventSessionReset}, types)
}

func TestControllerStopped(t *testing.T) {
	ctrl, err := NewController(context.Background(), Config{
		Grid:        world.NewGrid(testOrigin, world.DefaultTileDegrees),
		Generator:   testGenerator(),
		Radius:      testRadius,
		Persistence: NewPersistence(storage.NewMemoryStore(), ""),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ctrl.Run(ctx))

	_, err = ctrl.View(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
