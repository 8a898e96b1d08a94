package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"emadiff/pkg/calibration"
	"emadiff/pkg/config"
	"emadiff/pkg/logging"
	"emadiff/pkg/reduction"
)

var (
	// Global flags
	configPath       string
	verbose          bool
	jsonLogs         bool
	workers          int
	strict           bool
	strategy         string
	saveIntermediary bool
	intermediaryDir  string
	extension        string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "emadiff",
	Short: "Reduce detector frame scans into calibrated diffractograms",
	Long: `emadiff reduces the 2D detector frames of an angular scan into a 1D
diffractogram (two-theta vs. intensity).

Run "calibration" once on a reference scan to derive the per-channel angle
offsets of the detector, then "scan" on every measurement to bin its pixels
by two-theta using that calibration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, loaded); err != nil {
			return err
		}
		cfg = loaded

		logger, err = logging.New(logging.Options{
			Verbose: cfg.Output.Verbose,
			JSON:    cfg.Output.JSONLogs,
		})
		if err != nil {
			return errors.Wrap(err, "failed to build logger")
		}
		logger.Debug("configuration loaded",
			zap.String("config", configPath),
			zap.Int(logging.FieldWorkers, cfg.Processing.Workers),
			zap.String("strategy", cfg.Processing.PeakStrategy))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// applyFlags overrides configuration values with explicitly set flags
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		c.Processing.Workers = workers
	}
	if flags.Changed("strict") {
		c.Processing.StrictAngles = strict
	}
	if flags.Changed("strategy") {
		c.Processing.PeakStrategy = strategy
	}
	if flags.Changed("extension") {
		c.Processing.Extension = extension
	}
	if flags.Changed("save-intermediary") {
		c.Output.SaveIntermediaryResults = saveIntermediary
	}
	if flags.Changed("intermediary-dir") {
		c.Output.IntermediaryDir = intermediaryDir
	}
	if flags.Changed("verbose") {
		c.Output.Verbose = verbose
	}
	if flags.Changed("json-logs") {
		c.Output.JSONLogs = jsonLogs
	}
	return c.Validate()
}

// newReducer builds a reducer from the loaded configuration
func newReducer() (*reduction.Reducer, error) {
	s, err := calibration.ParseStrategy(cfg.Processing.PeakStrategy)
	if err != nil {
		return nil, err
	}
	return reduction.NewReducer(&reduction.Params{
		Workers:                 cfg.Processing.Workers,
		StrictAngles:            cfg.Processing.StrictAngles,
		Strategy:                s,
		Precision:               cfg.Processing.Precision,
		Extension:               cfg.Processing.Extension,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
		Version:                 Version,
		Logger:                  logger,
	}), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "emadiff.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON lines")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "Number of worker goroutines (default: all CPUs)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Fail when the end angle does not match start + steps*step")
	rootCmd.PersistentFlags().StringVar(&strategy, "strategy", config.StrategyMaximum, "Calibration peak strategy: maximum or first-peak")
	rootCmd.PersistentFlags().StringVar(&extension, "extension", "tiff", "Frame file extension")
	rootCmd.PersistentFlags().BoolVar(&saveIntermediary, "save-intermediary", false, "Save frame and profile previews")
	rootCmd.PersistentFlags().StringVar(&intermediaryDir, "intermediary-dir", "intermediary_results", "Directory for intermediary previews")

	binName := BinName()
	rootCmd.Example = `  # Derive the detector calibration from a reference scan
  # (a negative start angle needs "--" so it is not read as a flag)
  ` + binName + ` calibration -- -10 10 0.1 200 40 10 /data/cal cal_ 1280 100 2 /data/calibration.emd

  # Reduce a measurement scan with that calibration
  ` + binName + ` scan 5 25 0.01 2000 40 10 /data/out /data/sample sample_ 1280 /data/calibration.emd

  # Use the first-peak strategy and keep previews
  ` + binName + ` --strategy first-peak --save-intermediary calibration ...`
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
