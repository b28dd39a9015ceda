package monitor

import (
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dskow/tripwatch/internal/checker"
	"github.com/dskow/tripwatch/internal/config"
	"github.com/dskow/tripwatch/internal/metrics"
)

// Manager owns the full set of monitors and rebuilds it on config reload.
type Manager struct {
	logger *slog.Logger
	trips  chan Trip

	mu       sync.Mutex
	monitors []*Monitor
	started  bool
}

// NewManager builds one monitor per configured target. Returns an error if
// any target cannot form a valid monitor; no partially built set is kept.
func NewManager(cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	mg := &Manager{
		logger: logger,
		trips:  make(chan Trip, 16),
	}
	monitors, err := buildMonitors(cfg, mg.trips, logger)
	if err != nil {
		return nil, err
	}
	mg.monitors = monitors
	return mg, nil
}

func buildMonitors(cfg *config.Config, trips chan<- Trip, logger *slog.Logger) ([]*Monitor, error) {
	// One shared token bucket paces probes across all targets.
	limiter := rate.NewLimiter(rate.Limit(cfg.Probes.RatePerSecond), cfg.Probes.Burst)

	monitors := make([]*Monitor, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		chk, err := checker.New(t.Probe, t.Address)
		if err != nil {
			return nil, err
		}
		mon, err := NewMonitor(t, chk, limiter, trips, logger)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, mon)
	}
	return monitors, nil
}

// Start launches all monitor loops.
func (mg *Manager) Start() {
	mg.mu.Lock()
	monitors := mg.monitors
	mg.started = true
	mg.mu.Unlock()

	for _, m := range monitors {
		m.Start()
	}
	mg.logger.Info("monitoring started", "targets", len(monitors))
}

// Stop halts all monitor loops and waits for them to exit.
func (mg *Manager) Stop() {
	mg.mu.Lock()
	monitors := mg.monitors
	mg.started = false
	mg.mu.Unlock()

	for _, m := range monitors {
		m.Stop()
	}
	mg.logger.Info("monitoring stopped")
}

// Trips returns the channel on which shutdown-action trips are reported.
func (mg *Manager) Trips() <-chan Trip {
	return mg.trips
}

// Apply swaps in monitors built from a reloaded config. The new set is
// built first; if any target is invalid the running set is left untouched.
func (mg *Manager) Apply(cfg *config.Config) error {
	monitors, err := buildMonitors(cfg, mg.trips, mg.logger)
	if err != nil {
		return err
	}

	mg.mu.Lock()
	old := mg.monitors
	mg.monitors = monitors
	started := mg.started
	mg.mu.Unlock()

	if started {
		for _, m := range old {
			m.Stop()
			// Drop the stopped target's gauges so a removed target cannot
			// keep reading as tripped.
			metrics.WindowFailures.DeleteLabelValues(m.target.Name)
			metrics.TripState.DeleteLabelValues(m.target.Name)
		}
		for _, m := range monitors {
			m.Start()
		}
	}

	metrics.ConfigReloads.Inc()
	mg.logger.Info("monitors rebuilt from reloaded config", "targets", len(monitors))
	return nil
}

// Statuses returns a snapshot of every monitored target.
func (mg *Manager) Statuses() []Status {
	mg.mu.Lock()
	monitors := mg.monitors
	mg.mu.Unlock()

	out := make([]Status, len(monitors))
	for i, m := range monitors {
		out[i] = m.Status()
	}
	return out
}

// AnyTripped reports whether any target is currently tripped.
func (mg *Manager) AnyTripped() bool {
	for _, s := range mg.Statuses() {
		if s.Tripped {
			return true
		}
	}
	return false
}
