// Package cli implements the pdfrag command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pdfrag/internal/config"
	"pdfrag/internal/service"
)

// errReported is returned when the command already printed its failure.
var errReported = errors.New("reported")

var (
	cfgFile string
	verbose bool

	appConfig *config.AppConfig
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pdfrag",
	Short: "Ask questions about PDF documents",
	Long: `pdfrag answers natural-language questions about a PDF using only its content.

The document is split into passages, embedded and indexed once; the index is
cached next to the working directory and reused on later runs. Each question
retrieves the closest passages and a local model answers from them, citing
the pages it used.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or TOML; default ./config.yaml or ~/.config/pdfrag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	var err error
	if cfgFile == "" {
		var path string
		appConfig, path, err = config.LoadDefault()
		logger.Debug("config loaded", "path", path)
	} else {
		appConfig, err = config.Load(cfgFile)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// openPipeline builds the pipeline and returns a release func for the store.
func openPipeline() (*service.Pipeline, func(), error) {
	p, closeFn, err := buildPipeline(appConfig, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {
		if err := closeFn(); err != nil {
			logger.Warn("close index store", "err", err)
		}
	}, nil
}
