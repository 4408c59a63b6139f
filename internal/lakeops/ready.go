package lakeops

import (
	"context"
	"log/slog"
)

// Capability names an external service the operations depend on.
type Capability string

const (
	CapabilityDirectory  Capability = "directory"
	CapabilityManagement Capability = "management"
	CapabilityStorage    Capability = "storage"
)

// Probe checks one capability's reachability.
type Probe struct {
	Capability Capability
	Check      func(ctx context.Context) error
}

// Missing reports a capability whose probe failed.
type Missing struct {
	Capability Capability
	Err        error
}

// Preflight runs every probe and returns the capabilities that are
// unavailable. An empty result means the host can proceed. This is an
// explicit startup call made by the hosting application, never a side
// effect of importing the package.
func Preflight(ctx context.Context, logger *slog.Logger, probes []Probe) []Missing {
	if logger == nil {
		logger = slog.Default()
	}

	var missing []Missing

	for _, p := range probes {
		if err := p.Check(ctx); err != nil {
			logger.Warn("capability unavailable",
				slog.String("capability", string(p.Capability)),
				slog.String("error", err.Error()),
			)

			missing = append(missing, Missing{Capability: p.Capability, Err: err})

			continue
		}

		logger.Debug("capability ready", slog.String("capability", string(p.Capability)))
	}

	return missing
}
