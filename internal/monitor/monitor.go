// Package monitor drives the per-target probe loops. Each monitor owns one
// brake, feeds it probe outcomes on a fixed interval, and reports trip
// transitions. The monitor never terminates the process itself; targets
// configured with the shutdown action report through the trip channel and
// main decides what to do.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dskow/tripwatch/brake"
	"github.com/dskow/tripwatch/internal/checker"
	"github.com/dskow/tripwatch/internal/config"
	"github.com/dskow/tripwatch/internal/metrics"
)

// Trip is reported when a target whose action is shutdown trips.
type Trip struct {
	Target    string
	Failures  int
	Threshold int
}

// Status is a point-in-time snapshot of one monitored target, served by the
// health and admin endpoints.
type Status struct {
	Name        string    `json:"name"`
	Probe       string    `json:"probe"`
	Address     string    `json:"address"`
	OnTrip      string    `json:"on_trip"`
	WindowSize  int       `json:"window_size"`
	Samples     int       `json:"samples"`
	Failures    int       `json:"failures"`
	Threshold   int       `json:"threshold"`
	Tripped     bool      `json:"tripped"`
	LastOK      bool      `json:"last_ok"`
	LastChecked time.Time `json:"last_checked"`
}

// Monitor runs the probe loop for a single target.
type Monitor struct {
	target  config.TargetConfig
	checker checker.Checker
	limiter *rate.Limiter
	trips   chan<- Trip
	logger  *slog.Logger

	// The brake itself carries no locks (callers own concurrency control),
	// so mu guards AddSample and the trip read together, plus the
	// transition bookkeeping.
	mu          sync.Mutex
	brake       *brake.Brake
	tripped     bool
	lastOK      bool
	lastChecked time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor for one target. Construction fails when the
// target's window or threshold cannot form a valid brake.
func NewMonitor(t config.TargetConfig, chk checker.Checker, limiter *rate.Limiter, trips chan<- Trip, logger *slog.Logger) (*Monitor, error) {
	b, err := brake.New(t.WindowSize, t.Threshold())
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", t.Name, err)
	}
	return &Monitor{
		target:  t,
		checker: chk,
		limiter: limiter,
		trips:   trips,
		logger:  logger,
		brake:   b,
	}, nil
}

// Start launches the probe loop. The first probe runs immediately; further
// probes follow the configured interval.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.target.Interval)
		defer ticker.Stop()

		m.probe(ctx)
		for {
			select {
			case <-ticker.C:
				m.probe(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// Status returns a snapshot of the monitor's current state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Name:        m.target.Name,
		Probe:       m.target.Probe,
		Address:     m.target.Address,
		OnTrip:      m.target.OnTrip,
		WindowSize:  m.brake.WindowSize(),
		Samples:     m.brake.SampleCount(),
		Failures:    m.brake.FailureCount(),
		Threshold:   m.brake.Threshold(),
		Tripped:     m.brake.ShouldTrip(),
		LastOK:      m.lastOK,
		LastChecked: m.lastChecked,
	}
}

// probe runs one poll cycle: pace, check, record, decide.
func (m *Monitor) probe(ctx context.Context) {
	if err := m.limiter.Wait(ctx); err != nil {
		return // stopping
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.target.Timeout)
	start := time.Now()
	ok := m.checker.Check(probeCtx)
	cancel()

	metrics.ProbeDuration.WithLabelValues(m.target.Name).Observe(time.Since(start).Seconds())
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	metrics.SamplesTotal.WithLabelValues(m.target.Name, outcome).Inc()

	m.mu.Lock()
	m.brake.AddSample(ok)
	m.lastOK = ok
	m.lastChecked = time.Now()
	failures := m.brake.FailureCount()
	tripped := m.brake.ShouldTrip()
	wasTripped := m.tripped
	m.tripped = tripped
	m.mu.Unlock()

	metrics.WindowFailures.WithLabelValues(m.target.Name).Set(float64(failures))
	if tripped {
		metrics.TripState.WithLabelValues(m.target.Name).Set(1)
	} else {
		metrics.TripState.WithLabelValues(m.target.Name).Set(0)
	}

	if !ok {
		m.logger.Debug("probe failed",
			"target", m.target.Name,
			"address", m.target.Address,
			"failures", failures,
			"threshold", m.target.Threshold(),
		)
	}

	switch {
	case tripped && !wasTripped:
		metrics.TripsTotal.WithLabelValues(m.target.Name).Inc()
		m.logger.Warn("target tripped",
			"target", m.target.Name,
			"failures", failures,
			"threshold", m.target.Threshold(),
			"action", m.target.OnTrip,
		)
		if m.target.OnTrip == config.ActionShutdown {
			select {
			case m.trips <- Trip{Target: m.target.Name, Failures: failures, Threshold: m.target.Threshold()}:
			default:
				// Main already has a pending trip; this one adds nothing.
			}
		}
	case !tripped && wasTripped:
		m.logger.Info("target recovered",
			"target", m.target.Name,
			"failures", failures,
			"threshold", m.target.Threshold(),
		)
	}
}
