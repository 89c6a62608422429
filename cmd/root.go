// Package cmd wires the command tree. All heavy lifting lives in
// internal/services; commands only parse arguments, build clients and print.
package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	profile   string
	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   "ecsctl",
	Short: "Bulk operations on services within an ECS cluster. Use with great care.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging(verbosity)
	},
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "AWS profile for authentication")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	rootCmd.AddCommand(servicesCmd)
}

func configureLogging(verbosity int) {
	level := zerolog.InfoLevel
	switch {
	case verbosity == 1:
		level = zerolog.DebugLevel
	case verbosity >= 2:
		level = zerolog.TraceLevel
	}

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}
