package camera

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/snapcam/internal/platform"
)

// fallbackRoles are tried, in order, after the requested role.
var fallbackRoles = []platform.StreamRole{
	platform.RoleVideoRecording,
	platform.RoleViewfinder,
	platform.RoleStillCapture,
}

// Negotiator turns a requested StreamConfig into a validated platform
// configuration.
type Negotiator struct {
	logger *slog.Logger
}

// NewNegotiator creates a negotiator.
func NewNegotiator(logger *slog.Logger) *Negotiator {
	return &Negotiator{logger: logger}
}

// Negotiation is the outcome of Negotiate.
type Negotiation struct {
	Config  *platform.Configuration
	Applied StreamConfig
	Status  platform.ValidationStatus
	// Adjustments lists requested values the device changed.
	Adjustments []string
}

// Negotiate generates a configuration for the first role the camera
// supports, applies the request to it and validates. Applied holds what the
// device will actually use.
func (n *Negotiator) Negotiate(cam platform.Camera, want StreamConfig) (*Negotiation, error) {
	const op = "negotiate"

	roles := append([]platform.StreamRole{want.Role}, fallbackRoles...)
	roles = dedupe(roles)

	var cfg *platform.Configuration
	var lastErr error
	for _, role := range roles {
		c, err := cam.GenerateConfiguration(role)
		if err != nil {
			lastErr = err
			if !errors.Is(err, platform.ErrRoleUnsupported) {
				n.logger.Debug("Configuration generation failed", "role", role, "error", err)
			}
			continue
		}
		if c == nil || len(c.Streams) == 0 {
			continue
		}
		if role != want.Role {
			n.logger.Info("Requested role unavailable, using fallback", "requested", want.Role, "role", role)
		}
		cfg = c
		break
	}
	if cfg == nil {
		err := ErrUnsupportedFormat
		if lastErr != nil {
			err = fmt.Errorf("%w: %w", ErrUnsupportedFormat, lastErr)
		}
		return nil, newError(KindInvalidConfiguration, op, err)
	}

	sc := cfg.At(0)
	if want.Width != 0 && want.Height != 0 {
		sc.Size = want.Size()
	}
	if want.PixelFormat != "" {
		sc.PixelFormat = want.PixelFormat
	}
	if want.BufferCount > 0 {
		sc.BufferCount = want.BufferCount
	}

	status := cam.Validate(cfg)
	if status == platform.Invalid {
		return nil, newError(KindInvalidConfiguration, op,
			fmt.Errorf("device rejected %s", want))
	}

	applied := fromPlatform(cfg.At(0))
	return &Negotiation{
		Config:      cfg,
		Applied:     applied,
		Status:      status,
		Adjustments: want.adjustments(applied),
	}, nil
}

func dedupe(roles []platform.StreamRole) []platform.StreamRole {
	seen := make(map[platform.StreamRole]bool, len(roles))
	out := roles[:0]
	for _, r := range roles {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
