package loader

import (
	"os"
	"path/filepath"
	"testing"

	"palisade/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePresetFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk_presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPresetLoaderLoadsActivePreset(t *testing.T) {
	path := writePresetFile(t, `
active: defensive
presets:
  defensive:
    max_position_fraction: 0.05
    daily_loss_limit: 0.02
    neutral_score_delta: 0.1
  aggressive:
    max_position_fraction: 0.15
`)
	loader, err := NewPresetLoader(path)
	require.NoError(t, err)

	snap := loader.Snapshot()
	assert.Equal(t, "defensive", snap.Active)
	assert.Len(t, snap.Presets, 2)

	def, ok := snap.ActivePreset()
	require.True(t, ok)
	assert.Equal(t, "defensive", def.Name)
	require.NotNil(t, def.MaxPositionFraction)
	assert.InDelta(t, 0.05, *def.MaxPositionFraction, 1e-9)
}

func TestPresetApplyOverridesOnlySetFields(t *testing.T) {
	base := config.RiskConfig{
		MaxPositionFraction: 0.10,
		BaseStopLoss:        0.05,
		DailyLossLimit:      0.05,
		MaxPositions:        5,
		NeutralScoreDelta:   0.2,
	}
	frac := 0.04
	delta := 0.0
	preset := PresetDefinition{
		MaxPositionFraction: &frac,
		NeutralScoreDelta:   &delta,
	}

	out := preset.Apply(base)
	assert.InDelta(t, 0.04, out.MaxPositionFraction, 1e-9)
	// Explicit zero wins over the base value.
	assert.Zero(t, out.NeutralScoreDelta)
	// Unset fields keep the base.
	assert.InDelta(t, 0.05, out.BaseStopLoss, 1e-9)
	assert.InDelta(t, 0.05, out.DailyLossLimit, 1e-9)
	assert.Equal(t, 5, out.MaxPositions)
}

func TestPresetLoaderRejectsUnknownActive(t *testing.T) {
	path := writePresetFile(t, `
active: missing
presets:
  defensive:
    max_position_fraction: 0.05
`)
	_, err := NewPresetLoader(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestPresetLoaderNoActiveMeansBaseConfig(t *testing.T) {
	path := writePresetFile(t, `
presets:
  defensive:
    max_position_fraction: 0.05
`)
	loader, err := NewPresetLoader(path)
	require.NoError(t, err)

	_, ok := loader.Snapshot().ActivePreset()
	assert.False(t, ok)
}

func validRiskBase() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionFraction:     0.10,
		MinPositionFraction:     0.01,
		DefaultPositionFraction: 0.02,
		BaseStopLoss:            0.05,
		StopDecayHours:          24,
		StopDecayMax:            0.30,
		TrailingActivation:      0.02,
		TrailingDistance:        0.01,
		DailyLossLimit:          0.05,
		MaxPositions:            5,
		DynamicSymbolDiscount:   0.6,
	}
}

func TestPresetOverrideMustStillValidate(t *testing.T) {
	base := validRiskBase()
	require.NoError(t, base.Validate())

	// A zero decay window would make the stop decay divide by zero.
	hours := 0.0
	preset := PresetDefinition{StopDecayHours: &hours}
	out := preset.Apply(base)
	assert.ErrorContains(t, out.Validate(), "stop_decay_hours")
}
