package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/annel0/geocoin/internal/storage"
	"github.com/annel0/geocoin/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFormat(t *testing.T) {
	grid := world.NewGrid(testOrigin, world.DefaultTileDegrees)
	state := NewState(testOrigin)
	state.PushToken(world.Token{I: 3, J: 5, Serial: 41})
	state.Directory.Set(grid.Cell(3, 5), world.EncodeSnapshot([]world.Token{{I: 3, J: 5, Serial: 0}}))

	data, err := Encode(state)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.ElementsMatch(t, []string{"playerPosition", "playerCoins", "playerPath", "caches"}, keys(raw))
	assert.JSONEq(t, `[{"i":3,"j":5,"serial":41}]`, string(raw["playerCoins"]))
	assert.JSONEq(t, `[{"key":"3:5","value":"[{\"i\":3,\"j\":5,\"serial\":0}]"}]`, string(raw["caches"]))
}

func TestDecodeFreshState(t *testing.T) {
	data, err := Encode(NewState(testOrigin))
	require.NoError(t, err)

	state, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, NewState(testOrigin), state)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	for _, blob := range []string{
		``,
		`[]`,
		`{"playerPosition":{"lat":95,"lng":0}}`,
		`{"playerPosition":{"lat":1,"lng":1},"playerCoins":[{"i":0,"j":0,"serial":-1}]}`,
		`{"playerPosition":{"lat":1,"lng":1},"playerPath":[{"lat":1,"lng":400}]}`,
		`{"playerPosition":{"lat":1,"lng":1},"caches":[{"key":"01:1","value":"[]"}]}`,
		`{"playerPosition":{"lat":1,"lng":1}} {}`,
	} {
		_, err := Decode([]byte(blob))
		assert.ErrorIs(t, err, ErrMalformedSession, "blob %q", blob)
	}
}

func TestPersistenceSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := NewPersistence(store, "")
	assert.Equal(t, DefaultKey, p.Key())

	_, ok := p.Load(ctx)
	assert.False(t, ok)

	state := NewState(testOrigin)
	state.MoveTo(testOrigin.Add(1e-4, 0))
	state.PushToken(world.Token{I: 1, J: 2, Serial: 3})
	require.NoError(t, p.Save(ctx, state))

	loaded, ok := p.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, state.Position, loaded.Position)
	assert.Equal(t, state.Path, loaded.Path)
	assert.Equal(t, state.Inventory, loaded.Inventory)

	raw, err := p.Raw(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"playerCoins":[{"i":1,"j":2,"serial":3}]`)

	require.NoError(t, p.Clear(ctx))
	_, ok = p.Load(ctx)
	assert.False(t, ok)
}

func TestStateStack(t *testing.T) {
	state := NewState(testOrigin)
	_, ok := state.PopToken()
	assert.False(t, ok)

	state.PushToken(world.Token{Serial: 1})
	state.PushToken(world.Token{Serial: 2})
	top, ok := state.PopToken()
	require.True(t, ok)
	assert.Equal(t, 2, top.Serial)
}

func keys(m map[string]json.RawMessage) []string {
	result := make([]string, 0, len(m))
	for k := range m {
		result = append(result, k)
	}
	return result
}
