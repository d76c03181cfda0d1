package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lib-x/eigenface"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

// defaultResourceDir is where download stores cascades and where the
// detectors look for them when --cascade is not given
const defaultResourceDir = "models"

var (
	detectorKind string
	cascadeFile  string
	logLevel     string
	databaseURL  string

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:          "eigenface",
	Short:        "Eigenface face trainer and recognizer",
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		// flags win over the environment
		if detectorKind == "" {
			detectorKind = os.Getenv("EIGENFACE_DETECTOR")
		}
		if detectorKind == "" {
			detectorKind = string(eigenface.DetectorHaar)
		}
		if cascadeFile == "" {
			cascadeFile = os.Getenv("EIGENFACE_CASCADE")
		}
		if cascadeFile == "" {
			if key, ok := eigenface.ResourceFor(eigenface.DetectorKind(detectorKind)); ok {
				cascadeFile, _ = eigenface.GetResourcePath(defaultResourceDir, key)
			}
		}
		if databaseURL == "" {
			databaseURL = os.Getenv("EIGENFACE_DB")
		}
		return nil
	},
}

// openDatabase opens the model database given by --db, or returns nil
// when models live in plain files
func openDatabase() (*eigenface.SQLStorage, error) {
	if databaseURL == "" {
		return nil, nil
	}
	storage, err := eigenface.OpenSQLStorage(databaseURL)
	if err != nil {
		return nil, err
	}
	return storage, nil
}

// modelName is the database key for a model file path
func modelName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// newEngine builds an engine from the persistent flags
func newEngine(opts ...eigenface.Option) (*eigenface.Engine, error) {
	config := eigenface.Config{
		Detector:    eigenface.DetectorKind(detectorKind),
		CascadeFile: cascadeFile,
	}
	opts = append([]eigenface.Option{eigenface.WithLogger(logger)}, opts...)

	engine, err := eigenface.NewEngine(config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s detector: %w", detectorKind, err)
	}
	return engine, nil
}

// ensureParentDir creates the directory that will hold path
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&detectorKind, "detector", "", "Face detector: haar, pigo or none (env EIGENFACE_DETECTOR, default haar)")
	rootCmd.PersistentFlags().StringVar(&cascadeFile, "cascade", "", "Detector cascade file (env EIGENFACE_CASCADE, default from models/)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db", "", "Keep models in a database instead of files, sqlite://PATH or postgres://... (env EIGENFACE_DB)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
}
