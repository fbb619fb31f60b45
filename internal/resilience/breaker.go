package resilience

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jobsieve/internal/logging"
	"jobsieve/internal/services"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// CircuitOpenError is returned without performing I/O while a breaker is
// open or its single half-open probe is already in flight.
type CircuitOpenError struct {
	Source      string
	NextProbeAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s until %s", e.Source, e.NextProbeAt.UTC().Format(time.RFC3339))
}

// Is lets errors.Is match services.ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool {
	return target == services.ErrCircuitOpen
}

// Snapshot is a point-in-time view of one breaker.
type Snapshot struct {
	Source      string        `json:"source"`
	State       string        `json:"state"`
	Failures    int           `json:"failures"`
	OpenedAt    time.Time     `json:"opened_at,omitzero"`
	NextProbeAt time.Time     `json:"next_probe_at,omitzero"`
	Cooldown    time.Duration `json:"cooldown"`
}

// Ticket ties an outcome to the admission that produced it. Outcomes from an
// earlier state generation are ignored, so a request admitted while CLOSED
// cannot resolve or release a later HALF_OPEN probe.
type Ticket struct {
	gen   uint64
	probe bool
}

// Probe reports whether the ticket is the HALF_OPEN probe.
func (t Ticket) Probe() bool { return t.probe }

// Breaker is a CLOSED/OPEN/HALF_OPEN circuit breaker. The mutex guards state
// only; callers perform their request between Allow and Record*.
type Breaker struct {
	mu        sync.Mutex
	source    string
	settings  Settings
	now       func() time.Time
	logger    *slog.Logger
	state     State
	failures  int
	openedAt  time.Time
	nextProbe time.Time
	cooldown  time.Duration
	probing   bool
	gen       uint64
}

// NewBreaker builds a closed breaker. A nil now uses time.Now.
func NewBreaker(source string, settings Settings, logger *slog.Logger, now func() time.Time) *Breaker {
	if now == nil {
		now = time.Now
	}
	settings = settings.withDefaults()
	return &Breaker{
		source:   source,
		settings: settings,
		now:      now,
		logger:   logging.NewComponentLogger(logger, "breaker"),
		cooldown: settings.Cooldown,
	}
}

// Allow reports whether a request may proceed and returns the ticket its
// outcome must be recorded with. An OPEN breaker whose cooldown has elapsed
// moves to HALF_OPEN and admits exactly one probe.
func (b *Breaker) Allow() (Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Before(b.nextProbe) {
			return Ticket{}, &CircuitOpenError{Source: b.source, NextProbeAt: b.nextProbe}
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return Ticket{gen: b.gen, probe: true}, nil
	case StateHalfOpen:
		if b.probing {
			return Ticket{}, &CircuitOpenError{Source: b.source, NextProbeAt: b.nextProbe}
		}
		b.probing = true
		return Ticket{gen: b.gen, probe: true}, nil
	default:
		return Ticket{gen: b.gen}, nil
	}
}

// stale reports whether t was issued before the latest state change. Must be
// called with mu held.
func (b *Breaker) stale(t Ticket, outcome string) bool {
	if t.gen == b.gen {
		return false
	}
	b.logger.Debug("ignoring outcome from an earlier breaker state",
		logging.String(logging.FieldSource, b.source),
		logging.String("outcome", outcome),
		logging.String("state", b.state.String()),
	)
	return true
}

// RecordSuccess closes the breaker and resets the failure count and cooldown.
func (b *Breaker) RecordSuccess(t Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(t, "success") {
		return
	}

	b.failures = 0
	b.probing = false
	if b.state != StateClosed {
		b.cooldown = b.settings.Cooldown
		b.openedAt = time.Time{}
		b.nextProbe = time.Time{}
		b.transition(StateClosed)
	}
}

// RecordFailure counts a failure. In CLOSED, reaching the threshold opens
// the breaker; a failed HALF_OPEN probe reopens it with a longer cooldown.
func (b *Breaker) RecordFailure(t Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(t, "failure") {
		return
	}

	b.failures++
	switch b.state {
	case StateHalfOpen:
		b.probing = false
		next := time.Duration(float64(b.cooldown) * b.settings.CooldownMultiplier)
		if next > b.settings.MaxCooldown {
			next = b.settings.MaxCooldown
		}
		b.cooldown = next
		b.open()
	case StateClosed:
		if b.failures >= b.settings.FailureThreshold {
			b.open()
		}
	}
}

// RecordNeutral releases a half-open probe slot without judging the source,
// for outcomes such as throttling or caller cancellation.
func (b *Breaker) RecordNeutral(t Ticket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(t, "neutral") || !t.probe {
		return
	}
	b.probing = false
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the breaker's current view.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Source:      b.source,
		State:       b.state.String(),
		Failures:    b.failures,
		OpenedAt:    b.openedAt,
		NextProbeAt: b.nextProbe,
		Cooldown:    b.cooldown,
	}
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.nextProbe = b.openedAt.Add(b.cooldown)
	b.transition(StateOpen)
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if from == to {
		return
	}
	b.gen++
	attrs := []logging.Attr{
		logging.String(logging.FieldSource, b.source),
		logging.String("from", from.String()),
		logging.String("to", to.String()),
		logging.Int("failures", b.failures),
		logging.String(logging.FieldEventType, "breaker_transition"),
	}
	if to == StateOpen {
		attrs = append(attrs,
			logging.String("next_probe_at", b.nextProbe.UTC().Format(time.RFC3339)),
			logging.Duration("cooldown", b.cooldown),
			logging.String(logging.FieldErrorHint, "source is failing; it will be probed again after the cooldown"),
			logging.String(logging.FieldImpact, "source skipped until the next probe"),
		)
		logging.WarnWithContext(b.logger, "circuit breaker opened", "breaker_transition", attrs...)
		return
	}
	b.logger.Info("circuit breaker transition", logging.Args(attrs...)...)
}
