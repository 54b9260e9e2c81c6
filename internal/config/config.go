package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot
type Config struct {
	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Mode
	Debug bool

	// Instruments
	Instruments         []string
	ReferenceInstrument string
	TickInterval        time.Duration

	// Account
	InitialBalance decimal.Decimal

	// Trade shape
	TargetPct       float64
	StopPct         float64
	PyramidFraction float64
	L1TriggerPct    float64
	L2TriggerPct    float64

	// Entry gate
	MinTrendStrength     float64
	DumpThreshold        float64
	PanicVolumeMax       float64
	MaxSpreadPct         float64
	NearHighPct          float64
	RSIExtreme           float64
	MomentumFloor        float64
	VolumeBreakout       float64
	MinConfidence        float64
	CostSafetyMultiplier float64
	MinRiskReward        float64

	// Costs
	FeeRatePct  float64
	SlippagePct float64

	// Sizing
	DefaultRisk     float64
	MinKelly        float64
	MaxKelly        float64
	KellyDamping    float64
	MaxConfidence   float64
	MinRiskPerTrade float64
	MaxRiskPerTrade float64
	MaxOpenRiskPct  float64

	// Erosion caps, fraction of peak profit per regime
	ErosionCapChoppy   float64
	ErosionCapWeak     float64
	ErosionCapModerate float64
	ErosionCapStrong   float64

	// Momentum failure detector
	MomentumExitEnabled  bool
	MomentumMinProfitPct float64
	MomentumSignals      int

	// External validation
	ValidationBudget int
	ValidationPeriod time.Duration
	CacheTTL         time.Duration

	// Database
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Telegram
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		// Mode
		Debug: getEnvBool("DEBUG", false),

		// Instruments
		Instruments:         getEnvList("INSTRUMENTS", []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}),
		ReferenceInstrument: getEnv("REFERENCE_INSTRUMENT", "BTCUSDT"),
		TickInterval:        getEnvDuration("TICK_INTERVAL", 15*time.Second),

		// Account
		InitialBalance: getEnvDecimal("INITIAL_BALANCE", decimal.NewFromInt(10000)),

		// Trade shape
		TargetPct:       getEnvFloat("TARGET_PCT", 10.0),
		StopPct:         getEnvFloat("STOP_PCT", 5.0),
		PyramidFraction: getEnvFloat("PYRAMID_FRACTION", 0.5),
		L1TriggerPct:    getEnvFloat("L1_TRIGGER_PCT", 0.045),
		L2TriggerPct:    getEnvFloat("L2_TRIGGER_PCT", 0.09),

		// Entry gate
		MinTrendStrength:     getEnvFloat("MIN_TREND_STRENGTH", 20),
		DumpThreshold:        getEnvFloat("DUMP_THRESHOLD", -1.5),
		PanicVolumeMax:       getEnvFloat("PANIC_VOLUME_MAX", 3.0),
		MaxSpreadPct:         getEnvFloat("MAX_SPREAD_PCT", 0.15),
		NearHighPct:          getEnvFloat("NEAR_HIGH_PCT", 0.5),
		RSIExtreme:           getEnvFloat("RSI_EXTREME", 85),
		MomentumFloor:        getEnvFloat("MOMENTUM_FLOOR", 0.3),
		VolumeBreakout:       getEnvFloat("VOLUME_BREAKOUT", 1.3),
		MinConfidence:        getEnvFloat("MIN_CONFIDENCE", 70),
		CostSafetyMultiplier: getEnvFloat("COST_SAFETY_MULTIPLIER", 1.5),
		MinRiskReward:        getEnvFloat("MIN_RISK_REWARD", 1.5),

		// Costs
		FeeRatePct:  getEnvFloat("FEE_RATE_PCT", 0.1),
		SlippagePct: getEnvFloat("SLIPPAGE_PCT", 0.05),

		// Sizing
		DefaultRisk:     getEnvFloat("DEFAULT_RISK", 0.05),
		MinKelly:        getEnvFloat("MIN_KELLY", 0.01),
		MaxKelly:        getEnvFloat("MAX_KELLY", 0.10),
		KellyDamping:    getEnvFloat("KELLY_DAMPING", 0.25),
		MaxConfidence:   getEnvFloat("MAX_CONFIDENCE", 95),
		MinRiskPerTrade: getEnvFloat("MIN_RISK_PER_TRADE", 0.01),
		MaxRiskPerTrade: getEnvFloat("MAX_RISK_PER_TRADE", 0.10),
		MaxOpenRiskPct:  getEnvFloat("MAX_OPEN_RISK_PCT", 0.05),

		// Erosion caps
		ErosionCapChoppy:   getEnvFloat("EROSION_CAP_CHOPPY", 0.20),
		ErosionCapWeak:     getEnvFloat("EROSION_CAP_WEAK", 0.25),
		ErosionCapModerate: getEnvFloat("EROSION_CAP_MODERATE", 0.30),
		ErosionCapStrong:   getEnvFloat("EROSION_CAP_STRONG", 0.40),

		// Momentum failure detector
		MomentumExitEnabled:  getEnvBool("MOMENTUM_EXIT_ENABLED", true),
		MomentumMinProfitPct: getEnvFloat("MOMENTUM_MIN_PROFIT_PCT", 1.0),
		MomentumSignals:      getEnvInt("MOMENTUM_SIGNALS", 2),

		// External validation
		ValidationBudget: getEnvInt("VALIDATION_BUDGET", 100),
		ValidationPeriod: getEnvDuration("VALIDATION_PERIOD", time.Hour),
		CacheTTL:         getEnvDuration("CACHE_TTL", 5*time.Minute),

		// Database
		DatabasePath: getEnv("DATABASE_PATH", "data/pyrabot.db"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("INSTRUMENTS must not be empty")
	}
	if cfg.StopPct <= 0 {
		return nil, fmt.Errorf("STOP_PCT must be positive")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
