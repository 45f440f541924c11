package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantframe/decision-engine/pkg/types"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, types.TimeframeH1, cfg.Regime.Primary)
	assert.Equal(t, 10000.0, cfg.Replay.StartEquity)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYMBOL", "GBPUSD")
	t.Setenv("LOOKBACK_BARS", "90")
	// The default confirming timeframes (H4, D1) stay strictly longer than
	// an M15 primary, so no confirming override is needed.
	t.Setenv("PRIMARY_TIMEFRAME", "M15")
	t.Setenv("MAX_DRAWDOWN", "0.15")
	t.Setenv("TRAILING_ENABLED", "false")
	t.Setenv("CYCLE_INTERVAL", "30s")

	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "GBPUSD", cfg.Engine.Symbol)
	assert.Equal(t, 90, cfg.Engine.Lookback)
	assert.Equal(t, types.TimeframeM15, cfg.Regime.Primary)
	assert.Equal(t, 0.15, cfg.Risk.MaxDrawdown)
	assert.False(t, cfg.Risk.TrailingEnabled)
	assert.Equal(t, "30s", cfg.CycleInterval.String())
}

func TestLoad_MalformedEnvFallsBack(t *testing.T) {
	t.Setenv("LOOKBACK_BARS", "not-a-number")
	t.Setenv("PRIMARY_TIMEFRAME", "H7")
	t.Setenv("MAX_DRAWDOWN", "")

	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 120, cfg.Engine.Lookback)
	assert.Equal(t, types.TimeframeH1, cfg.Regime.Primary)
}

func TestValidate_RejectsPrimaryNotBelowConfirming(t *testing.T) {
	t.Setenv("PRIMARY_TIMEFRAME", "D1")

	cfg := Load()

	assert.Error(t, cfg.Validate(), "a primary at or above the confirming timeframes must not start")
}

func TestValidate_RejectsPortClash(t *testing.T) {
	cfg := Load()
	cfg.Monitoring.HealthPort = cfg.Monitoring.PrometheusPort

	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsBadCycleInterval(t *testing.T) {
	cfg := Load()
	cfg.CycleInterval = 0

	assert.Error(t, cfg.Validate())
}
