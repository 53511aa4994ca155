package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ignitex/ignitex/internal/bus"
	"github.com/ignitex/ignitex/internal/config"
	"github.com/ignitex/ignitex/internal/consensus"
	"github.com/ignitex/ignitex/internal/coordinator"
	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/ensemble"
	"github.com/ignitex/ignitex/internal/gate"
	httpx "github.com/ignitex/ignitex/internal/interfaces/http"
	"github.com/ignitex/ignitex/internal/learner"
	"github.com/ignitex/ignitex/internal/lifecycle"
	"github.com/ignitex/ignitex/internal/matcher"
	"github.com/ignitex/ignitex/internal/persistence"
	"github.com/ignitex/ignitex/internal/persistence/memory"
	"github.com/ignitex/ignitex/internal/persistence/postgres"
	"github.com/ignitex/ignitex/internal/provider"
	"github.com/ignitex/ignitex/internal/publish"
	"github.com/ignitex/ignitex/internal/regime"
	"github.com/ignitex/ignitex/internal/reputation"
	"github.com/ignitex/ignitex/internal/telemetry"
)

func runServe(cmd *cobra.Command, args []string) error {
	if err := applyLogLevel(cmd); err != nil {
		return err
	}
	configPath, _ := cmd.Flags().GetString("config")
	cfgStore, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg := cfgStore.Get()

	universePath, _ := cmd.Flags().GetString("universe")
	uni := config.DefaultUniverse()
	if universePath != "" {
		if uni, err = config.LoadUniverse(universePath); err != nil {
			return err
		}
	}
	symbols := uni.Symbols()
	if len(symbols) == 0 {
		return fmt.Errorf("universe has no enabled instruments")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache := data.New(cfg.Cache.RedisAddr)
	indicatorCache := data.NewIndicatorCache(cache, cfg.Cache.IndicatorTTL)

	kraken := provider.NewKraken("")
	snapshots := provider.NewResilient(kraken, cache, provider.DefaultRetryConfig())
	feed := provider.NewTickerFeed("", symbols, kraken)
	feed.Start(ctx)
	defer feed.Stop()

	var store persistence.SignalStore
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return fmt.Errorf("postgres connect failed: %w", err)
		}
		defer db.Close()
		store = postgres.NewSignalStore(db, cfg.Database.QueryTimeout)
	} else {
		log.Warn().Msg("no database DSN configured, signal history is in-memory only")
		store = memory.NewStore()
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	rep := reputation.NewStore()
	scorer := gate.NewLogisticScorer(cfg.Learner.LearningRate)
	qualityGate := gate.NewGate(scorer, rep)
	runner := ensemble.NewRunner(ensemble.DefaultStrategies(), cfg.Ensemble.MaxConsecutiveErrors)
	detector := regime.NewDetector(regime.DefaultDetectorConfig())
	engine := consensus.NewEngine(rep)
	queue := matcher.NewQueue(cfg.Matcher.QueueCapacity)

	// Every subscriber registers before the bus starts, so nothing published
	// later can vanish unobserved.
	signalBus := bus.New()
	learnerCh, err := signalBus.Subscribe("learner", 256)
	if err != nil {
		return err
	}
	var relay *publish.KafkaRelay
	var relayCh <-chan bus.Message
	if len(cfg.Publish.Brokers) > 0 {
		if relay, err = publish.NewKafkaRelay(cfg.Publish.Brokers, cfg.Publish.Topic); err != nil {
			return err
		}
		if relayCh, err = signalBus.Subscribe("kafka", 256); err != nil {
			return err
		}
	}
	if err := signalBus.Start(); err != nil {
		return err
	}

	manager := lifecycle.NewManager(cfgStore, feed, store, signalBus, metrics)
	manager.Start(ctx)

	zeta := learner.New(rep, scorer, store, metrics, cfg.Learner.Heartbeat)
	if err := zeta.Seed(ctx, 24*time.Hour); err != nil {
		log.Warn().Err(err).Msg("learner seeding failed, starting cold")
	}
	go zeta.Run(ctx, learnerCh)
	if relay != nil {
		go relay.Run(ctx, relayCh)
	}

	coord := coordinator.New(coordinator.Deps{
		Config:     cfgStore,
		Universe:   symbols,
		Warm:       uni.Warm,
		Snapshots:  snapshots,
		Indicators: indicatorCache,
		Runner:     runner,
		Detector:   detector,
		Consensus:  engine,
		Queue:      queue,
		Gate:       qualityGate,
		Store:      store,
		Lifecycle:  manager,
		Metrics:    metrics,
	})

	handlers := &httpx.Handlers{
		Store:          store,
		Live:           manager,
		Regimes:        coord,
		Metrics:        metrics,
		Rep:            rep,
		StrategyHealth: runner.Health,
		Started:        time.Now(),
		Version:        version,
	}
	server, err := httpx.NewServer(cfg.HTTP, handlers, registry)
	if err != nil {
		return err
	}
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	log.Info().Int("instruments", len(symbols)).Str("version", version).Msg("pipeline starting")
	coord.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	manager.Close()
	signalBus.Close()
	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Warn().Err(err).Msg("kafka relay close failed")
		}
	}
	log.Info().Msg("pipeline stopped")
	return nil
}
