package location

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/annel0/geocoin/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	fix, err := DecodeMessage([]byte(`{"lat":36.9895,"lng":-122.0628}`))
	require.NoError(t, err)
	assert.Equal(t, vec.LatLng{Lat: 36.9895, Lng: -122.0628}, fix.Position)

	_, err = DecodeMessage([]byte(`{"error":"permission_denied"}`))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = DecodeMessage([]byte(`{"error":"timeout"}`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPermissionDenied))
	assert.ErrorIs(t, err, ErrSource)

	_, err = DecodeMessage([]byte(`{"lat":1}`))
	assert.Error(t, err)

	_, err = DecodeMessage([]byte(`{"lat":100,"lng":0}`))
	assert.Error(t, err)

	_, err = DecodeMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestHubRequiresProvider(t *testing.T) {
	hub := NewHub()

	_, err := hub.Subscribe(context.Background(), func(Fix) {}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	detach := hub.Attach()
	sub, err := hub.Subscribe(context.Background(), func(Fix) {}, nil)
	require.NoError(t, err)
	sub.Stop()

	detach()
	detach()
	assert.Equal(t, 0, hub.Providers())
}

func TestHubDeliversUntilStopped(t *testing.T) {
	hub := NewHub()
	hub.Attach()

	var (
		mu    sync.Mutex
		fixes []Fix
	)
	sub, err := hub.Subscribe(context.Background(), func(f Fix) {
		mu.Lock()
		fixes = append(fixes, f)
		mu.Unlock()
	}, nil)
	require.NoError(t, err)

	hub.Publish(Fix{Position: vec.LatLng{Lat: 1, Lng: 2}})
	sub.Stop()
	sub.Stop()
	hub.Publish(Fix{Position: vec.LatLng{Lat: 3, Lng: 4}})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fixes, 1)
	assert.Equal(t, 1.0, fixes[0].Position.Lat)
}

func TestHubPermissionDenied(t *testing.T) {
	hub := NewHub()
	hub.Attach()

	var got error
	_, err := hub.Subscribe(context.Background(), func(Fix) {}, func(err error) { got = err })
	require.NoError(t, err)

	hub.Fail(ErrPermissionDenied)
	assert.ErrorIs(t, got, ErrPermissionDenied)

	_, err = hub.Subscribe(context.Background(), func(Fix) {}, nil)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// Новый провайдер снимает запрет
	hub.Attach()
	_, err = hub.Subscribe(context.Background(), func(Fix) {}, nil)
	assert.NoError(t, err)
}

func TestHubCancelledContextStopsDelivery(t *testing.T) {
	hub := NewHub()
	hub.Attach()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := hub.Subscribe(ctx, func(Fix) { calls++ }, nil)
	require.NoError(t, err)

	cancel()
	hub.Publish(Fix{})
	assert.Equal(t, 0, calls)
}

func TestNATSSourceUnavailable(t *testing.T) {
	source := NewNATSSource("nats://127.0.0.1:1", "")
	_, err := source.Subscribe(context.Background(), func(Fix) {}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}
