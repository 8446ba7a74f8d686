package analysis

import (
	"context"
	"errors"
	"testing"

	"palisade/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCandles struct {
	series map[string][]float64
	err    map[string]error
}

func (f *fakeCandles) Closes(_ context.Context, symbol, _ string, limit int) ([]float64, error) {
	if err := f.err[symbol]; err != nil {
		return nil, err
	}
	closes := f.series[symbol]
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	return closes, nil
}

func linearSeries(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestEMARegimeClassification(t *testing.T) {
	cases := []struct {
		name   string
		series []float64
		want   exchange.Regime
	}{
		{"rising closes classify bullish", linearSeries(100, 0.5, 200), exchange.RegimeBullish},
		{"falling closes classify bearish", linearSeries(200, -0.5, 200), exchange.RegimeBearish},
		{"flat closes classify neutral", linearSeries(100, 0, 200), exchange.RegimeNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := &fakeCandles{series: map[string][]float64{"BTCUSDT": tc.series}}
			regime := NewEMARegime(RegimeConfig{}, source)
			require.NoError(t, regime.Refresh(context.Background()))
			assert.Equal(t, tc.want, regime.CurrentRegime())
		})
	}
}

func TestEMARegimeKeepsLabelOnRefreshFailure(t *testing.T) {
	source := &fakeCandles{
		series: map[string][]float64{"BTCUSDT": linearSeries(100, 0.5, 200)},
		err:    map[string]error{},
	}
	regime := NewEMARegime(RegimeConfig{}, source)
	require.NoError(t, regime.Refresh(context.Background()))
	require.Equal(t, exchange.RegimeBullish, regime.CurrentRegime())

	source.err["BTCUSDT"] = errors.New("boom")
	assert.Error(t, regime.Refresh(context.Background()))
	assert.Equal(t, exchange.RegimeBullish, regime.CurrentRegime())
}

func TestEMARegimeMultipliers(t *testing.T) {
	source := &fakeCandles{series: map[string][]float64{"BTCUSDT": linearSeries(200, -0.5, 200)}}
	regime := NewEMARegime(RegimeConfig{}, source)
	require.NoError(t, regime.Refresh(context.Background()))

	assert.InDelta(t, 0.5, regime.SizeMultiplier(), 1e-9)
	assert.InDelta(t, 0.8*0.7, regime.ScoreAdjustment(0.7), 1e-9)
}

func TestMomentumScorerOrdersByTrend(t *testing.T) {
	source := &fakeCandles{series: map[string][]float64{
		"BTCUSDT": linearSeries(100, 1, 60),
		"ETHUSDT": linearSeries(160, -1, 60),
	}}
	scorer := NewMomentumScorer(MomentumConfig{}, source)

	signals, err := scorer.Scores(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, signals, 2)

	scores := map[string]float64{}
	for _, sig := range signals {
		scores[sig.Symbol] = sig.Score
	}
	assert.Greater(t, scores["BTCUSDT"], 0.6)
	assert.Less(t, scores["ETHUSDT"], 0.4)
}

func TestMomentumScorerSkipsUnavailableSymbol(t *testing.T) {
	source := &fakeCandles{
		series: map[string][]float64{"BTCUSDT": linearSeries(100, 1, 60)},
		err:    map[string]error{"ETHUSDT": errors.New("boom")},
	}
	scorer := NewMomentumScorer(MomentumConfig{}, source)

	signals, err := scorer.Scores(context.Background(), []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "BTCUSDT", signals[0].Symbol)
}

func TestMomentumScorerErrsWhenNothingScored(t *testing.T) {
	source := &fakeCandles{err: map[string]error{"BTCUSDT": errors.New("boom")}}
	scorer := NewMomentumScorer(MomentumConfig{}, source)

	_, err := scorer.Scores(context.Background(), []string{"BTCUSDT"})
	assert.Error(t, err)
}
