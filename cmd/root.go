package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/contactsim/contactsim/sim/callcenter"
)

var (
	configPath   string // Model config YAML
	seed         int64  // Seed of every replication's random streams
	replications int    // Number of independent replications
	traceLevel   string // Decision trace level (none, decisions)
	metricsOut   string // Prometheus textfile written after the run
	logLevel     string // Log verbosity level
	logFile      string // Rotated log file; stderr when empty
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "contactsim",
	Short: "Discrete-event simulator for multi-skill contact centers",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(cmd); err != nil {
			return err
		}
		return setupLogging(logLevel, logFile)
	},
}

// runCmd runs the replications of a model and prints the results
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run replications of a contact center model",
	Run: func(cmd *cobra.Command, args []string) {
		opts := runOptions{
			ConfigPath:   configPath,
			Seed:         seed,
			Replications: replications,
			TraceLevel:   traceLevel,
			MetricsOut:   metricsOut,
		}
		if err := runSimulation(cmd.OutOrStdout(), opts); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd builds a model without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a model config and build every component",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateModel(cmd.OutOrStdout(), configPath)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func validateModel(w io.Writer, path string) error {
	if path == "" {
		return fmt.Errorf("no model config: pass --config or set %s", envConfig)
	}
	cfg, err := callcenter.LoadModelConfig(path)
	if err != nil {
		return err
	}
	if _, err := callcenter.NewModel(cfg); err != nil {
		return fmt.Errorf("invalid model %s: %w", path, err)
	}
	_, err = fmt.Fprintf(w, "%s: %d agent groups, %d call types, %d dialers\n",
		path, len(cfg.Groups), len(cfg.Types), len(cfg.Dialers))
	return err
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Model config YAML (default $"+envConfig+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic; default $"+envLog+")")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file, rotated by size")

	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed of the random streams")
	runCmd.Flags().IntVar(&replications, "replications", 1, "Number of independent replications")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write decision counters to this Prometheus textfile")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
