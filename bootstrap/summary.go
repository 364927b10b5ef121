package bootstrap

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kbukum/dikit/di"
	"github.com/kbukum/dikit/logger"
	"github.com/kbukum/dikit/version"
)

// Summary tracks and displays the application bootstrap process.
type Summary struct {
	serviceName       string
	version           string
	startupDuration   time.Duration
	inspectAddr       string
	telemetryEndpoint string
	out               io.Writer
}

// NewSummary creates a new bootstrap summary tracker writing to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{
		serviceName: serviceName,
		version:     version,
		out:         os.Stdout,
	}
}

// SetOutput redirects the printed summary.
func (s *Summary) SetOutput(w io.Writer) {
	s.out = w
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// SetInspectAddr records the address the inspect server is bound to.
func (s *Summary) SetInspectAddr(addr string) {
	s.inspectAddr = addr
}

// SetTelemetryEndpoint records the OTLP endpoint traces and metrics go to.
func (s *Summary) SetTelemetryEndpoint(endpoint string) {
	s.telemetryEndpoint = endpoint
}

// DisplaySummary prints the bootstrap summary including the registry's
// current registrations, and logs the build information.
func (s *Summary) DisplaySummary(reg *di.Registry, log *logger.Logger) {
	w := s.out
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "🚀 %s v%s started in %.2fs\n\n",
		s.serviceName, s.version, s.startupDuration.Seconds())

	if s.inspectAddr != "" || s.telemetryEndpoint != "" {
		fmt.Fprintf(w, "📊 Infrastructure\n")
		if s.inspectAddr != "" {
			prefix := "├──"
			if s.telemetryEndpoint == "" {
				prefix = "└──"
			}
			fmt.Fprintf(w, "   %s ✅ inspect: http://%s\n", prefix, s.inspectAddr)
		}
		if s.telemetryEndpoint != "" {
			fmt.Fprintf(w, "   └── ✅ telemetry: %s\n", s.telemetryEndpoint)
		}
		fmt.Fprintf(w, "\n")
	}

	if reg != nil {
		regs := reg.Registrations()
		fmt.Fprintf(w, "📦 Registry %s (%d)\n", reg.Name(), len(regs))
		if len(regs) == 0 {
			fmt.Fprintf(w, "   └── No services registered\n")
		}
		cached := 0
		for i, r := range regs {
			prefix := "├──"
			if i == len(regs)-1 {
				prefix = "└──"
			}
			fmt.Fprintf(w, "   %s %s %s (%s)\n", prefix, lifetimeIcon(r), r.Service, r.Lifetime)
			if r.Cached {
				cached++
			}
		}
		if len(regs) > 0 {
			fmt.Fprintf(w, "\n✅ %d registrations, %d singletons constructed\n", len(regs), cached)
		}
	}

	fmt.Fprintf(w, "\n")

	if log != nil {
		log.Info("Build information", version.GetVersionInfo().LogFields())
	}
}

func lifetimeIcon(r di.RegistrationInfo) string {
	switch {
	case r.Lifetime == di.Transient:
		return "🔁"
	case r.Cached:
		return "✅"
	default:
		return "⚡"
	}
}
