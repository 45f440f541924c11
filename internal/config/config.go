package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/quantframe/decision-engine/internal/engine"
	"github.com/quantframe/decision-engine/internal/levels"
	"github.com/quantframe/decision-engine/internal/pattern"
	"github.com/quantframe/decision-engine/internal/regime"
	"github.com/quantframe/decision-engine/internal/risk"
	"github.com/quantframe/decision-engine/pkg/types"
)

// Config is the full engine configuration: process-level settings plus the
// per-component parameter blocks. Component defaults come from the packages
// themselves; the environment overrides the common knobs.
type Config struct {
	Environment string
	LogLevel    string
	LogPretty   bool
	LogDir      string

	Engine  engine.Config
	Regime  regime.Config
	Levels  levels.Config
	Pattern pattern.Config
	Risk    risk.Config

	Replay struct {
		DataFile    string
		StartEquity float64
		MinStart    int
	}

	Monitoring struct {
		PrometheusPort int
		HealthPort     int
	}

	CycleInterval    time.Duration
	StartupTimeout   time.Duration
	MinIndicatorBars int
}

// Load reads .env when present and assembles the configuration from the
// environment over package defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getEnvBool("LOG_PRETTY", true),
		LogDir:      getEnv("LOG_DIR", "logs"),

		Engine:  engine.DefaultConfig(),
		Regime:  regime.DefaultConfig(),
		Levels:  levels.DefaultConfig(),
		Pattern: pattern.DefaultConfig(),
		Risk:    risk.DefaultConfig(),

		CycleInterval:    getEnvDuration("CYCLE_INTERVAL", time.Minute),
		StartupTimeout:   getEnvDuration("STARTUP_TIMEOUT", 5*time.Minute),
		MinIndicatorBars: getEnvInt("MIN_INDICATOR_BARS", 100),
	}

	cfg.Engine.Symbol = getEnv("SYMBOL", cfg.Engine.Symbol)
	cfg.Engine.Lookback = getEnvInt("LOOKBACK_BARS", cfg.Engine.Lookback)
	cfg.Engine.MinTriangleConfidence = getEnvFloat("MIN_TRIANGLE_CONFIDENCE", cfg.Engine.MinTriangleConfidence)
	cfg.Engine.MinBreakoutProb = getEnvFloat("MIN_BREAKOUT_PROB", cfg.Engine.MinBreakoutProb)
	cfg.Engine.MinRegimeConfidence = getEnvFloat("MIN_REGIME_CONFIDENCE", cfg.Engine.MinRegimeConfidence)
	cfg.Engine.TradeTrendRegimes = getEnvBool("TRADE_TREND_REGIMES", cfg.Engine.TradeTrendRegimes)

	cfg.Regime.Primary = getEnvTimeframe("PRIMARY_TIMEFRAME", cfg.Regime.Primary)
	cfg.Regime.Confirming[0] = getEnvTimeframe("CONFIRMING_TIMEFRAME_1", cfg.Regime.Confirming[0])
	cfg.Regime.Confirming[1] = getEnvTimeframe("CONFIRMING_TIMEFRAME_2", cfg.Regime.Confirming[1])
	cfg.Regime.HighVolMultiplier = getEnvFloat("HIGH_VOL_MULTIPLIER", cfg.Regime.HighVolMultiplier)

	cfg.Levels.DecayHalfLife = getEnvInt("LEVEL_DECAY_HALF_LIFE", cfg.Levels.DecayHalfLife)
	cfg.Levels.MaxLevels = getEnvInt("MAX_LEVELS", cfg.Levels.MaxLevels)

	cfg.Risk.MaxRiskPerTrade = getEnvFloat("MAX_RISK_PER_TRADE", cfg.Risk.MaxRiskPerTrade)
	cfg.Risk.MaxDrawdown = getEnvFloat("MAX_DRAWDOWN", cfg.Risk.MaxDrawdown)
	cfg.Risk.RecoveryPct = getEnvFloat("DRAWDOWN_RECOVERY_PCT", cfg.Risk.RecoveryPct)
	cfg.Risk.MaxPositions = getEnvInt("MAX_POSITIONS", cfg.Risk.MaxPositions)
	cfg.Risk.TrailingEnabled = getEnvBool("TRAILING_ENABLED", cfg.Risk.TrailingEnabled)
	cfg.Risk.ValuePerUnit = getEnvFloat("VALUE_PER_UNIT", cfg.Risk.ValuePerUnit)

	cfg.Replay.DataFile = getEnv("REPLAY_DATA_FILE", "")
	cfg.Replay.StartEquity = getEnvFloat("REPLAY_START_EQUITY", 10000.0)
	cfg.Replay.MinStart = getEnvInt("REPLAY_MIN_START", 300)

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)

	return cfg
}

// Validate checks every component block. Failures are configuration errors
// the process must not start with.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Regime.Validate(); err != nil {
		return err
	}
	if err := c.Levels.Validate(); err != nil {
		return err
	}
	if err := c.Pattern.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("config: cycle interval must be positive, got %s", c.CycleInterval)
	}
	if c.MinIndicatorBars < 30 {
		return fmt.Errorf("config: minimum indicator bars must be at least 30, got %d", c.MinIndicatorBars)
	}
	if c.Monitoring.PrometheusPort == c.Monitoring.HealthPort {
		return fmt.Errorf("config: prometheus and health ports must differ, both %d", c.Monitoring.PrometheusPort)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvTimeframe(key string, defaultVal types.Timeframe) types.Timeframe {
	if val := os.Getenv(key); val != "" {
		if tf, err := types.ParseTimeframe(val); err == nil {
			return tf
		}
	}
	return defaultVal
}
