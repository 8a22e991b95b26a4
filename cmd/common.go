// Package cmd holds the cobra subcommands that run next to the serve root.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/config"
	"github.com/smazurov/snapcam/internal/events"
	"github.com/smazurov/snapcam/internal/logging"
	"github.com/smazurov/snapcam/internal/platform"
	"github.com/smazurov/snapcam/internal/platform/v4l2cam"
)

// loadOptions builds Options the way the serve root does: tag defaults,
// then .env, then the config file and SNAPCAM_* variables.
func loadOptions(cmd *cobra.Command, configPath string) (*config.Options, error) {
	opts := &config.Options{}
	if err := config.ApplyDefaults(opts); err != nil {
		return nil, err
	}
	if configPath != "" {
		opts.Config = configPath
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := config.LoadConfig(opts, cmd); err != nil {
		return nil, fmt.Errorf("load config %s: %w", opts.Config, err)
	}
	return opts, nil
}

// newSubsystem is replaced in tests.
var newSubsystem = func() platform.Subsystem {
	return v4l2cam.New(logging.GetLogger("platform"))
}

// startManager starts a camera manager on the platform subsystem. The
// caller stops it.
func startManager(ctx context.Context, bus *events.Bus) (*camera.Manager, error) {
	mgr := camera.NewManager(newSubsystem(), logging.GetLogger("camera"), bus)
	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
