package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLuck_Deterministic(t *testing.T) {
	for _, seed := range []string{"", "0,0", "3,5,initialValue", "-12,7"} {
		first := Luck(seed)
		second := Luck(seed)
		assert.Equal(t, first, second, "Luck должен быть детерминированным для %q", seed)
		assert.GreaterOrEqual(t, first, 0.0)
		assert.Less(t, first, 1.0)
	}
}

func TestLuck_DifferentSeeds(t *testing.T) {
	assert.NotEqual(t, Luck("0,0"), Luck("0,1"), "разные сиды должны давать разные значения")
}

func TestLuck_Distribution(t *testing.T) {
	// Грубая проверка равномерности: около 10% значений ниже 0.1
	below := 0
	total := 10000
	for i := 0; i < total; i++ {
		if Luck(LuckKey(i, -i)) < 0.1 {
			below++
		}
	}
	assert.InDelta(t, 0.1, float64(below)/float64(total), 0.02)
}

func TestLuckKey(t *testing.T) {
	assert.Equal(t, "3,5,initialValue", LuckKey(3, 5, "initialValue"))
	assert.Equal(t, "-1,0", LuckKey(-1, 0))
	assert.Equal(t, "", LuckKey())
}
