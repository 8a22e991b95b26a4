package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/smazurov/snapcam/internal/camera"
	"github.com/smazurov/snapcam/internal/capture"
	"github.com/smazurov/snapcam/internal/config"
	"github.com/smazurov/snapcam/internal/logging"
)

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd() *cobra.Command {
	var (
		configFile string
		cycles     int
		timeoutMs  int
		width      int
		height     int
		format     string
		role       string
		device     string
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture frames from a camera",
		Long: `Opens a camera, runs capture cycles and prints the outcome and frame metadata of each. ` +
			`With --cycles 0 it runs until interrupted. Exits non-zero when the camera cannot be set up.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			opts, err := loadOptions(cmd, configFile)
			if err != nil {
				logging.Initialize(logging.Config{Level: "info", Format: "text"})
				logging.GetLogger("capture").Error("Failed to load configuration", "error", err)
				os.Exit(1)
			}

			flags := cmd.Flags()
			if flags.Changed("cycles") {
				opts.CaptureCycles = cycles
			}
			if flags.Changed("timeout-ms") {
				opts.CaptureTimeoutMs = timeoutMs
			}
			if flags.Changed("width") {
				opts.CameraWidth = width
			}
			if flags.Changed("height") {
				opts.CameraHeight = height
			}
			if flags.Changed("format") {
				opts.CameraPixelFormat = format
			}
			if flags.Changed("role") {
				opts.CameraRole = role
			}
			if flags.Changed("device") {
				opts.CameraDeviceID = device
			}
			if flags.Changed("strict") {
				opts.CameraStrict = strict
			}

			logging.Initialize(opts.LoggingConfig())
			defer logging.Shutdown()
			logger := logging.GetLogger("capture")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runCapture(ctx, cmd.OutOrStdout(), opts); err != nil {
				logger.Error("Capture failed", "kind", camera.KindOf(err).String(), "error", err)
				stop()
				logging.Shutdown()
				os.Exit(1)
			}
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configFile, "config", "c", "", "Path to configuration file (default snapcam.toml)")
	f.IntVarP(&cycles, "cycles", "n", 1, "Cycles to run; 0 runs until interrupted")
	f.IntVar(&timeoutMs, "timeout-ms", 1000, "Per-cycle timeout in milliseconds")
	f.IntVar(&width, "width", 480, "Requested frame width")
	f.IntVar(&height, "height", 480, "Requested frame height")
	f.StringVarP(&format, "format", "f", "BGR888", "Requested pixel format")
	f.StringVar(&role, "role", "video", "Preferred stream role")
	f.StringVarP(&device, "device", "d", "", "Camera ID or device path; empty selects the first camera")
	f.BoolVar(&strict, "strict", false, "Fail when the device adjusts the requested format")

	return cmd
}

// runCapture opens the configured camera, runs opts.CaptureCycles cycles and
// tears everything down. Timeouts and cancellations are printed, not
// returned, and an interrupt ends the run early without an error.
func runCapture(ctx context.Context, w io.Writer, opts *config.Options) (err error) {
	stream, err := opts.StreamConfig()
	if err != nil {
		return err
	}

	mgr, err := startManager(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if serr := mgr.Stop(); serr != nil && err == nil {
			err = serr
		}
	}()

	p, err := camera.Open(ctx, mgr, camera.Options{
		Selector: camera.ByID(opts.CameraDeviceID),
		Stream:   stream,
		Strict:   opts.CameraStrict,
		Timeout:  opts.CaptureTimeout(),
		Start:    true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	info := p.Handle.Info()
	printOpened(w, info.Name, info.Path, p.Applied, p.Handle.Buffers())

	var sum camera.Summary
	for i := 0; opts.CaptureCycles <= 0 || i < opts.CaptureCycles; i++ {
		res, cerr := p.RunCycle(ctx)
		if cerr != nil {
			if ctx.Err() != nil {
				break
			}
			return cerr
		}
		sum.Add(res)
		printResult(w, capture.NewResult(res))
	}
	printSummary(w, sum)
	return nil
}

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	okColor      = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errColor     = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
	summaryColor = color.New(color.Bold)
)

func printOpened(w io.Writer, name, path string, applied camera.StreamConfig, buffers int) {
	headerColor.Fprintf(w, "%s", name)
	dimColor.Fprintf(w, " (%s)\n", path)
	fmt.Fprintf(w, "  %dx%d %s, role %s, %d buffers\n",
		applied.Width, applied.Height, applied.PixelFormat, applied.Role, buffers)
}

func printResult(w io.Writer, r capture.Result) {
	fmt.Fprintf(w, "cycle %-4d ", r.Cycle)
	switch r.Outcome {
	case camera.OutcomeDelivered.String():
		okColor.Fprintf(w, "%-10s", r.Outcome)
	default:
		warnColor.Fprintf(w, "%-10s", r.Outcome)
	}
	dimColor.Fprintf(w, " %7.1fms", r.DurationMs)
	if f := r.Frame; f != nil {
		fmt.Fprintf(w, "  seq=%d %dx%d %s %d bytes", f.Sequence, f.Width, f.Height, f.PixelFormat, f.BytesUsed)
	}
	if r.Stale > 0 {
		dimColor.Fprintf(w, " stale=%d", r.Stale)
	}
	fmt.Fprintln(w)
	if r.HandlerError != "" {
		errColor.Fprintf(w, "  handler: %s\n", r.HandlerError)
	}
}

func printSummary(w io.Writer, s camera.Summary) {
	summaryColor.Fprintf(w, "%d cycles: ", s.Cycles)
	okColor.Fprintf(w, "%d delivered", s.Delivered)
	fmt.Fprint(w, ", ")
	warnColor.Fprintf(w, "%d timeouts", s.Timeouts)
	fmt.Fprint(w, ", ")
	warnColor.Fprintf(w, "%d cancelled\n", s.Cancelled)
}
