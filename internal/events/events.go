package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"jobsieve/internal/logging"
)

// Type names a lifecycle event.
type Type string

const (
	ScrapeStarted   Type = "scrape_started"
	ScrapeCompleted Type = "scrape_completed"
	NewJob          Type = "new_job"
	JobUpdated      Type = "job_updated"
)

// Event is one lifecycle notification. Fields irrelevant to a type are left
// zero; JSON encoding emits only the fields of the event's type.
type Event struct {
	Type          Type      `json:"type"`
	RunID         string    `json:"run_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	JobID         int64     `json:"job_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	Company       string    `json:"company,omitempty"`
	Score         float64   `json:"score,omitempty"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
	Fetched       int       `json:"fetched,omitempty"`
	New           int       `json:"new,omitempty"`
	Updated       int       `json:"updated,omitempty"`
	Errors        int       `json:"errors,omitempty"`
	DurationMS    int64     `json:"duration_ms,omitempty"`
	Error         string    `json:"error,omitempty"`
	DryRun        bool      `json:"dry_run,omitempty"`
	At            time.Time `json:"at"`
}

// Sink receives published events.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Bus fans events out to sinks.
type Bus struct {
	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewBus builds a bus over sinks. Nil sinks are skipped.
func NewBus(logger *slog.Logger, sinks ...Sink) *Bus {
	b := &Bus{logger: logging.NewComponentLogger(logger, "events"), now: time.Now}
	for _, s := range sinks {
		if s != nil {
			b.sinks = append(b.sinks, s)
		}
	}
	return b
}

// Publish stamps ev and delivers it to every sink. Sink errors are logged.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = b.now().UTC()
	}
	for _, sink := range b.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			logging.WarnWithContext(b.logger, "event sink publish failed", "event_publish_failed",
				logging.String("type", string(ev.Type)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "event not delivered to this sink"),
			)
		}
	}
}

// Close closes every sink.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for _, sink := range b.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink logging at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.NewComponentLogger(logger, "events")}
}

func (s *LogSink) Publish(_ context.Context, ev Event) error {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, string(ev.Type))}
	if ev.RunID != "" {
		attrs = append(attrs, logging.String(logging.FieldRunID, ev.RunID))
	}
	if ev.Source != "" {
		attrs = append(attrs, logging.String(logging.FieldSource, ev.Source))
	}
	switch ev.Type {
	case NewJob:
		attrs = append(attrs,
			logging.Int64(logging.FieldJobID, ev.JobID),
			logging.String("title", ev.Title),
			logging.String("company", ev.Company),
			logging.Float64("score", ev.Score),
		)
	case JobUpdated:
		attrs = append(attrs,
			logging.Int64(logging.FieldJobID, ev.JobID),
			logging.Any("changed_fields", ev.ChangedFields),
		)
	case ScrapeCompleted:
		attrs = append(attrs,
			logging.Int("fetched", ev.Fetched),
			logging.Int("new", ev.New),
			logging.Int("updated", ev.Updated),
			logging.Int("errors", ev.Errors),
			logging.Int64("duration_ms", ev.DurationMS),
		)
		if ev.Error != "" {
			attrs = append(attrs, logging.String("error", ev.Error))
		}
	}
	s.logger.Info(string(ev.Type), logging.Args(attrs...)...)
	return nil
}

func (s *LogSink) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns recorded events of type t in publish order.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
