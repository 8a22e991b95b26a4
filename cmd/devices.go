package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/logging"
	"github.com/smazurov/snapcam/internal/platform"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List cameras with their formats and resolutions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: logLevel, Format: "text"})
			logger := logging.GetLogger("devices")

			if err := runDevices(context.Background(), cmd.OutOrStdout()); err != nil {
				logger.Error("Failed to list devices", "error", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Logging level")
	return cmd
}

func runDevices(ctx context.Context, w io.Writer) error {
	mgr, err := startManager(ctx, nil)
	if err != nil {
		if errors.Is(err, camera.ErrNoDeviceFound) {
			warnColor.Fprintln(w, "No cameras found")
			return nil
		}
		return err
	}
	defer mgr.Stop()

	for _, cam := range mgr.Cameras() {
		caps, err := mgr.Describe(cam.ID)
		printCamera(w, cam, caps, err)
	}
	return nil
}

func printCamera(w io.Writer, cam platform.CameraInfo, caps []platform.FormatCaps, err error) {
	headerColor.Fprintf(w, "%s", cam.Name)
	dimColor.Fprintf(w, " %s", cam.ID)
	if cam.Path != "" && cam.Path != cam.ID {
		dimColor.Fprintf(w, " (%s)", cam.Path)
	}
	fmt.Fprintln(w)

	switch {
	case errors.Is(err, errors.ErrUnsupported):
		dimColor.Fprintln(w, "  formats not available on this platform")
		return
	case err != nil:
		errColor.Fprintf(w, "  %v\n", err)
		return
	case len(caps) == 0:
		dimColor.Fprintln(w, "  no supported formats")
		return
	}

	for _, fc := range caps {
		okColor.Fprintf(w, "  %-7s", fc.Format)
		if fc.Description != "" {
			dimColor.Fprintf(w, " %s", fc.Description)
		}
		fmt.Fprintln(w)
		if len(fc.Sizes) == 0 {
			continue
		}
		sizes := make([]string, 0, len(fc.Sizes))
		for _, s := range fc.Sizes {
			sizes = append(sizes, fmt.Sprintf("%dx%d", s.Width, s.Height))
		}
		fmt.Fprintf(w, "          %s\n", strings.Join(sizes, " "))
	}
}
