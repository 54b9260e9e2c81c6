// Pyrabot - Position Lifecycle Risk Manager
//
// Manages long positions through their full lifecycle:
// 1. Candidates pass a five-stage entry gate (regime, drop protection,
//    entry quality, external validation, cost floor)
// 2. Stakes are sized with dampened Kelly scaled by validation confidence
// 3. Winners pyramid up to two add-on levels at profit triggers
// 4. Exits fire on stop, target, erosion cap or momentum failure
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/pyrabot/advisor"
	"github.com/web3guy0/pyrabot/bot"
	"github.com/web3guy0/pyrabot/core"
	"github.com/web3guy0/pyrabot/feeds"
	"github.com/web3guy0/pyrabot/internal/config"
	"github.com/web3guy0/pyrabot/ledger"
	"github.com/web3guy0/pyrabot/monitor"
	"github.com/web3guy0/pyrabot/risk"
	"github.com/web3guy0/pyrabot/storage"
	"github.com/web3guy0/pyrabot/types"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Strs("instruments", cfg.Instruments).Msg("🚀 Starting Pyrabot")

	// Storage
	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	// Ledger seeded from history
	book := ledger.New(ledger.Config{
		ErosionCaps: map[types.Regime]float64{
			types.RegimeChoppy:   cfg.ErosionCapChoppy,
			types.RegimeWeak:     cfg.ErosionCapWeak,
			types.RegimeModerate: cfg.ErosionCapModerate,
			types.RegimeStrong:   cfg.ErosionCapStrong,
		},
		L1TriggerPct: cfg.L1TriggerPct,
		L2TriggerPct: cfg.L2TriggerPct,
	}, db)

	history, err := db.LoadClosedPositions()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load trade history")
	} else {
		book.LoadHistory(history)
		log.Info().Int("trades", len(history)).Msg("📜 Trade history loaded")
	}

	// Risk components
	costs := risk.CostModel{FeeRatePct: cfg.FeeRatePct, SlippagePct: cfg.SlippagePct}
	budget := advisor.NewBudget(cfg.ValidationBudget, cfg.ValidationPeriod)

	gate := risk.NewGate(risk.GateConfig{
		ReferenceInstrument:  cfg.ReferenceInstrument,
		MinTrendStrength:     cfg.MinTrendStrength,
		DumpThreshold:        cfg.DumpThreshold,
		PanicVolumeMax:       cfg.PanicVolumeMax,
		MaxSpreadPct:         cfg.MaxSpreadPct,
		NearHighPct:          cfg.NearHighPct,
		RSIExtreme:           cfg.RSIExtreme,
		MomentumFloor:        cfg.MomentumFloor,
		VolumeBreakout:       cfg.VolumeBreakout,
		MinConfidence:        cfg.MinConfidence,
		CostSafetyMultiplier: cfg.CostSafetyMultiplier,
		MinRiskReward:        cfg.MinRiskReward,
	}, costs, budget)

	sizer := risk.NewSizer(risk.SizerConfig{
		DefaultRisk:     cfg.DefaultRisk,
		MinKelly:        cfg.MinKelly,
		MaxKelly:        cfg.MaxKelly,
		KellyDamping:    cfg.KellyDamping,
		MinConfidence:   cfg.MinConfidence,
		MaxConfidence:   cfg.MaxConfidence,
		MinRiskPerTrade: cfg.MinRiskPerTrade,
		MaxRiskPerTrade: cfg.MaxRiskPerTrade,
		MaxOpenRiskPct:  cfg.MaxOpenRiskPct,
	})

	momentumCfg := risk.DefaultMomentumConfig()
	momentumCfg.Enabled = cfg.MomentumExitEnabled
	momentumCfg.MinProfitPct = cfg.MomentumMinProfitPct
	momentumCfg.RequiredSignals = cfg.MomentumSignals
	detector := risk.NewDetector(momentumCfg)

	// Advisory layer
	validator := advisor.NewRuleBased(cfg.MinConfidence)
	cache := advisor.NewCache(cfg.CacheTTL)

	// Monitoring
	feed := monitor.NewFeed(100)

	// Market data
	market := feeds.NewFeed(cfg.Instruments)
	if err := market.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start market feed")
	}
	defer market.Stop()

	// Engine
	engine := core.New(core.Config{
		Instruments:         cfg.Instruments,
		ReferenceInstrument: cfg.ReferenceInstrument,
		TickInterval:        cfg.TickInterval,
		TargetPct:           cfg.TargetPct,
		StopPct:             cfg.StopPct,
		PyramidFraction:     cfg.PyramidFraction,
		InitialBalance:      cfg.InitialBalance,
	}, core.Deps{
		Data:      market,
		Ledger:    book,
		Gate:      gate,
		Sizer:     sizer,
		Detector:  detector,
		Validator: validator,
		Cache:     cache,
		Budget:    budget,
		Feed:      feed,
		Snapshots: db,
	})

	// Telegram (optional)
	if cfg.TelegramToken != "" {
		tg, err := bot.New(cfg.TelegramToken, cfg.TelegramChatID, book, feed, engine)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start Telegram bot")
		}
		tg.Start()
		defer tg.Stop()
		engine.SetNotifier(tg)
	}

	// Run until interrupted
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Shutting down...")
		cancel()
	}()

	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("Engine exited with error")
	}

	// Give in-flight notifications a moment to drain.
	time.Sleep(500 * time.Millisecond)
	log.Info().Msg("👋 Goodbye")
}
