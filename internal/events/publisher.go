// Package events publishes session lifecycle events to interested sinks.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/pokersession/internal/model"
)

// Publisher delivers an event to a sink.
// Callers treat publish failures as non-fatal: state has already been persisted.
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
}

// LogPublisher writes each event as a structured log line
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs events at Info
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event model.Event) error {
	p.logger.InfoContext(ctx, "session event",
		slog.String("type", string(event.Type)),
		slog.String("session_id", string(event.SessionID)),
		slog.String("stage", string(event.Stage)),
		slog.Time("timestamp", event.Timestamp),
	)
	return nil
}

// Multi fans an event out to every publisher, joining their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event model.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, event model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// FailWith makes subsequent publishes return err
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Events returns a copy of everything published so far
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of each published event in order
func (r *Recorder) Types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Reset clears recorded events and any injected failure
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.err = nil
}
