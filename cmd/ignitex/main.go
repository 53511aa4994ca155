package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "ignitex"
	version = "v1.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Crypto signal decision pipeline",
		Version: version,
		Long: `IgniteX scans a crypto instrument universe through a five-stage decision
pipeline: strategy ensemble, weighted consensus, regime matching, quality
gate, and lifecycle management with continuous learning from outcomes.`,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().String("universe", "", "Universe file path (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the full pipeline with the HTTP observability server",
		RunE:  runServe,
	}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one pipeline pass and exit",
		Long:  "Scan every instrument once through the full pipeline and print the verdicts.",
		RunE:  runScan,
	}
	scanCmd.Flags().Bool("offline", false, "Use the deterministic synthetic provider instead of live data")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, version)
		},
	}

	rootCmd.AddCommand(serveCmd, scanCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyLogLevel(cmd *cobra.Command) error {
	raw, _ := cmd.Flags().GetString("log-level")
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}
