package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/app"
	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/config"
)

// loadConfig reads --config, falling back to defaults when the file does not
// exist, and applies the command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	missing := errors.Is(err, fs.ErrNotExist)
	switch {
	case missing:
		cfg = config.Default()
	case err != nil:
		return nil, nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if f := cmd.Flags().Lookup("transport"); f != nil && f.Value.String() != "" {
		cfg.Transport = f.Value.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	if missing {
		logger.Warnf("config file %s not found, using defaults", path)
	}
	return cfg, logger, nil
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Flags are valid - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunNode(ctx, cfg, logger); err != nil {
		return fmt.Errorf("node: %w", err)
	}
	return nil
}
