// Package events publishes experiment progress to external observers.
package events

import (
	"context"
	"sync"

	"github.com/specialistvlad/manetbench/internal/stats"
	"github.com/specialistvlad/manetbench/internal/trial"
)

// Event names emitted during an action.
const (
	NameTrial      = "trial"
	NameSummary    = "summary"
	NameComparison = "comparison"
	NameDone       = "done"
)

// Event is one progress notification. Payload holds only JSON-friendly
// values.
type Event struct {
	Name    string
	Payload map[string]any
}

// Publisher delivers events. Implementations never block an action on a slow
// or absent observer.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) {}

// Multi publishes every event to each of its members in order.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		p.Publish(ctx, e)
	}
}

// Memory keeps every event, for tests and the status endpoint.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (m *Memory) Publish(_ context.Context, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Names returns the names of everything published so far.
func (m *Memory) Names() []string {
	evs := m.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}

// Trial builds the event for one finished trial.
func Trial(rec trial.Record) Event {
	p := map[string]any{
		"protocol": rec.Protocol.String(),
		"seed":     rec.Seed,
		"pdr":      rec.Metrics.DeliveryRatio,
		"sent":     rec.Metrics.Sent,
		"received": rec.Metrics.Received,
		"delay_ms": rec.Metrics.DelayMs,
		"hops":     rec.Metrics.HopCount,
		"outcome":  rec.Result.Outcome.String(),
	}
	if rec.Failed() {
		p["stage"] = string(rec.Stage)
		if rec.Err != nil {
			p["error"] = rec.Err.Error()
		}
	}
	return Event{Name: NameTrial, Payload: p}
}

// Summary builds the event for one protocol summary.
func Summary(s stats.Summary) Event {
	return Event{Name: NameSummary, Payload: summaryPayload(s)}
}

// Comparison builds the event for a ranked comparison.
func Comparison(c stats.Comparison) Event {
	ranked := make([]any, len(c.Ranked))
	for i, s := range c.Ranked {
		p := summaryPayload(s)
		p["rank"] = i + 1
		ranked[i] = p
	}
	return Event{Name: NameComparison, Payload: map[string]any{"ranked": ranked}}
}

// Done builds the completion event of an action. err may be nil.
func Done(action string, err error) Event {
	p := map[string]any{"action": action, "ok": err == nil}
	if err != nil {
		p["error"] = err.Error()
	}
	return Event{Name: NameDone, Payload: p}
}

func summaryPayload(s stats.Summary) map[string]any {
	return map[string]any{
		"protocol": s.Protocol.String(),
		"mean":     s.Mean,
		"stddev":   s.StdDev,
		"min":      s.Min,
		"max":      s.Max,
		"valid":    s.Valid,
		"total":    s.Total,
	}
}
