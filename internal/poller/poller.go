// Package poller schedules periodic refresh with backoff and
// visibility-aware standby.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Jake0826/filebrowser/internal/backoff"
	"github.com/Jake0826/filebrowser/internal/logging"
	"github.com/Jake0826/filebrowser/internal/metrics"
)

// State is the poller's scheduling state.
type State int

const (
	Idle State = iota
	Scheduled
	InFlight
	Standby
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case InFlight:
		return "in-flight"
	case Standby:
		return "standby"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds poller configuration.
type Config struct {
	// Policy grows the interval after consecutive automatic ticks and
	// resets it on manual refresh.
	Policy backoff.Policy

	// Visible reports whether the host wants polling. When it returns
	// false the poller stands by until it returns true again. A nil
	// predicate means always visible.
	Visible func() bool

	// StandbyCheck is how often visibility is re-checked in standby.
	// Defaults to the policy base interval.
	StandbyCheck time.Duration

	// Tick performs one refresh. Its errors are its own concern: the
	// poller never reports them, so they surface exactly once through
	// the refresh path's usual error channel.
	Tick func(ctx context.Context)
}

// Poller runs the Scheduled → InFlight loop with a Standby branch.
type Poller struct {
	cfg Config

	mu       sync.Mutex
	state    State
	interval time.Duration
	started  bool

	refreshC chan struct{}
	stopOnce sync.Once
	stopC    chan struct{}
}

// New creates a poller. Tick must be non-nil.
func New(cfg Config) (*Poller, error) {
	if cfg.Tick == nil {
		return nil, fmt.Errorf("poller tick cannot be nil")
	}
	if cfg.Policy.Base <= 0 {
		cfg.Policy = backoff.DefaultPolicy()
	}
	if cfg.StandbyCheck <= 0 {
		cfg.StandbyCheck = cfg.Policy.Base
	}
	return &Poller{
		cfg:      cfg,
		state:    Idle,
		interval: cfg.Policy.Base,
		refreshC: make(chan struct{}, 1),
		stopC:    make(chan struct{}),
	}, nil
}

// Start begins the scheduling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("poller already started")
	}
	p.started = true
	p.state = Scheduled
	go p.run(ctx)
	return nil
}

// Refresh forces one immediate tick and resets the interval to base.
// Non-blocking; a refresh already queued is not duplicated.
func (p *Poller) Refresh() {
	select {
	case p.refreshC <- struct{}{}:
	default:
	}
}

// Stop ends the loop. Idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopC) })
}

// State returns the current scheduling state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Interval returns the currently scheduled wait.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Poller) setInterval(d time.Duration) {
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
}

func (p *Poller) visible() bool {
	if p.cfg.Visible == nil {
		return true
	}
	return p.cfg.Visible()
}

func (p *Poller) run(ctx context.Context) {
	defer p.setState(Idle)

	timer := time.NewTimer(p.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopC:
			return

		case <-p.refreshC:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			metrics.RecordPollTick("manual")
			p.setInterval(p.cfg.Policy.Next(p.Interval(), backoff.Manual))
			p.tick(ctx)
			timer.Reset(p.Interval())

		case <-timer.C:
			if !p.visible() {
				if !p.standby(ctx) {
					return
				}
				p.setInterval(p.cfg.Policy.Base)
				timer.Reset(p.Interval())
				continue
			}

			metrics.RecordPollTick("auto")
			p.setInterval(p.cfg.Policy.Next(p.Interval(), backoff.Auto))
			p.tick(ctx)
			timer.Reset(p.Interval())
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.setState(InFlight)
	p.cfg.Tick(ctx)
	p.setState(Scheduled)
}

// standby waits for visibility to return. A manual refresh while in
// standby runs immediately. Returns false when the poller should stop.
func (p *Poller) standby(ctx context.Context) bool {
	p.setState(Standby)
	metrics.RecordStandby()
	logging.Debug("poller entering standby")

	for {
		select {
		case <-ctx.Done():
			return false
		case <-p.stopC:
			return false
		case <-p.refreshC:
			metrics.RecordPollTick("manual")
			p.setInterval(p.cfg.Policy.Next(p.Interval(), backoff.Manual))
			p.tick(ctx)
			return true
		case <-time.After(p.cfg.StandbyCheck):
			if p.visible() {
				logging.Debug("poller leaving standby")
				p.setState(Scheduled)
				return true
			}
		}
	}
}
