package risk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testDefaultFraction = 0.02
	testMinFraction     = 0.01
	testMaxFraction     = 0.10
)

func TestKellyFraction_FloorDefaultWithoutHistory(t *testing.T) {
	assert.Equal(t, testDefaultFraction, KellyFraction(0, 1.5, testDefaultFraction, testMinFraction, testMaxFraction))
	assert.Equal(t, testDefaultFraction, KellyFraction(0.5, 0, testDefaultFraction, testMinFraction, testMaxFraction))
	assert.Equal(t, testDefaultFraction, KellyFraction(-0.1, -1, testDefaultFraction, testMinFraction, testMaxFraction))
}

func TestKellyFraction_QuarterKelly(t *testing.T) {
	// winRate=0.5, ratio=1.5: kelly=(0.5*1.5-0.5)/1.5=0.1667, quarter=0.0417.
	got := KellyFraction(0.5, 1.5, testDefaultFraction, testMinFraction, testMaxFraction)
	assert.InDelta(t, 0.0416667, got, 1e-6)
}

func TestKellyFraction_Clamped(t *testing.T) {
	// Strong edge clamps at the cap.
	assert.Equal(t, testMaxFraction, KellyFraction(0.9, 4, testDefaultFraction, testMinFraction, testMaxFraction))
	// Negative edge clamps at the floor, never below.
	assert.Equal(t, testMinFraction, KellyFraction(0.2, 1, testDefaultFraction, testMinFraction, testMaxFraction))
}

func TestKellyFraction_BoundsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		winRate := rng.Float64()
		ratio := rng.Float64() * 5
		got := KellyFraction(winRate, ratio, testDefaultFraction, testMinFraction, testMaxFraction)
		assert.GreaterOrEqual(t, got, testMinFraction)
		assert.LessOrEqual(t, got, testMaxFraction)
	}
}

func TestKellyFraction_MonotoneInWinRate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		ratio := 0.1 + rng.Float64()*4.9
		prev := 0.0
		for w := 0.01; w <= 1.0; w += 0.01 {
			got := KellyFraction(w, ratio, testDefaultFraction, testMinFraction, testMaxFraction)
			assert.GreaterOrEqual(t, got, prev, "winRate=%f ratio=%f", w, ratio)
			prev = got
		}
	}
}

func TestKellyFraction_MonotoneInRatio(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		winRate := 0.01 + rng.Float64()*0.99
		prev := 0.0
		for r := 0.1; r <= 5.0; r += 0.05 {
			got := KellyFraction(winRate, r, testDefaultFraction, testMinFraction, testMaxFraction)
			assert.GreaterOrEqual(t, got, prev, "winRate=%f ratio=%f", winRate, r)
			prev = got
		}
	}
}
