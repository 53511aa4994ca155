package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ignitex/ignitex/internal/bus"
	"github.com/ignitex/ignitex/internal/config"
	"github.com/ignitex/ignitex/internal/consensus"
	"github.com/ignitex/ignitex/internal/coordinator"
	"github.com/ignitex/ignitex/internal/data"
	"github.com/ignitex/ignitex/internal/ensemble"
	"github.com/ignitex/ignitex/internal/gate"
	"github.com/ignitex/ignitex/internal/lifecycle"
	"github.com/ignitex/ignitex/internal/matcher"
	"github.com/ignitex/ignitex/internal/persistence/memory"
	"github.com/ignitex/ignitex/internal/provider"
	"github.com/ignitex/ignitex/internal/regime"
	"github.com/ignitex/ignitex/internal/reputation"
	"github.com/ignitex/ignitex/internal/telemetry"
)

// runScan performs one synchronous pipeline pass. Offline mode swaps in the
// deterministic synthetic provider so the full path is exercisable with no
// network access.
func runScan(cmd *cobra.Command, args []string) error {
	if err := applyLogLevel(cmd); err != nil {
		return err
	}
	configPath, _ := cmd.Flags().GetString("config")
	cfgStore, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg := cfgStore.Get()
	offline, _ := cmd.Flags().GetBool("offline")

	universePath, _ := cmd.Flags().GetString("universe")
	uni := config.DefaultUniverse()
	if universePath != "" {
		if uni, err = config.LoadUniverse(universePath); err != nil {
			return err
		}
	}
	symbols := uni.Symbols()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snapshots provider.SnapshotProvider
	var prices provider.PriceSource
	if offline {
		synthetic := provider.NewSynthetic()
		snapshots, prices = synthetic, synthetic
	} else {
		kraken := provider.NewKraken("")
		snapshots = provider.NewResilient(kraken, data.NewMemory(), provider.DefaultRetryConfig())
		prices = kraken
	}

	store := memory.NewStore()
	metrics := telemetry.NewMetrics(nil)
	rep := reputation.NewStore()
	scorer := gate.NewLogisticScorer(cfg.Learner.LearningRate)

	signalBus := bus.New()
	consoleCh, err := signalBus.Subscribe("console", 64)
	if err != nil {
		return err
	}
	if err := signalBus.Start(); err != nil {
		return err
	}
	printDone := make(chan struct{})
	go func() {
		defer close(printDone)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for msg := range consoleCh {
			if msg.Kind == bus.KindSignalPublished {
				if err := enc.Encode(msg.Signal); err != nil {
					log.Error().Err(err).Msg("signal print failed")
				}
			}
		}
	}()

	manager := lifecycle.NewManager(cfgStore, prices, store, signalBus, metrics)
	manager.Start(ctx)

	coord := coordinator.New(coordinator.Deps{
		Config:     cfgStore,
		Universe:   symbols,
		Snapshots:  snapshots,
		Indicators: data.NewIndicatorCache(data.NewMemory(), cfg.Cache.IndicatorTTL),
		Runner:     ensemble.NewRunner(ensemble.DefaultStrategies(), cfg.Ensemble.MaxConsecutiveErrors),
		Detector:   regime.NewDetector(regime.DefaultDetectorConfig()),
		Consensus:  consensus.NewEngine(rep),
		Queue:      matcher.NewQueue(cfg.Matcher.QueueCapacity),
		Gate:       gate.NewGate(scorer, rep),
		Store:      store,
		Lifecycle:  manager,
		Metrics:    metrics,
	})

	coord.RunOnce(ctx)

	cancel()
	manager.Close()
	signalBus.Close()
	<-printDone

	funnel := metrics.Snapshot()
	fmt.Fprintf(os.Stderr, "scan complete: alpha %d -> beta %d -> gamma %d -> delta %d passed\n",
		funnel.Stages[telemetry.StageAlpha].Passed,
		funnel.Stages[telemetry.StageBeta].Passed,
		funnel.Stages[telemetry.StageGamma].Passed,
		funnel.Stages[telemetry.StageDelta].Passed)
	return nil
}
