package core

import (
	"fmt"

	"github.com/signalsfoundry/impact-predictor/model"
)

// EventType identifies what an engine event reports.
type EventType int

const (
	EventPredicted EventType = iota
	EventReleased
	EventImpactConfirmed
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventPredicted:
		return "predicted"
	case EventReleased:
		return "released"
	case EventImpactConfirmed:
		return "impact_confirmed"
	case EventReset:
		return "reset"
	default:
		return fmt.Sprintf("event(%d)", int(t))
	}
}

// Event is one output of an engine transition.
type Event struct {
	Type      EventType
	EpisodeID string
	Time      float64

	// Prediction is set for EventPredicted and EventReleased.
	Prediction *model.PredictionResult
	// Release is the latched state for EventReleased.
	Release *model.KinematicState
	// Record is set for EventImpactConfirmed.
	Record *model.ImpactComparisonRecord
}

// EventQueue is a FIFO of engine events. It is not safe for concurrent use;
// the owner of the engine drains it on the tick goroutine.
type EventQueue struct {
	events []Event
}

// Push appends an event.
func (q *EventQueue) Push(ev Event) { q.events = append(q.events, ev) }

// Len returns the number of queued events.
func (q *EventQueue) Len() int { return len(q.events) }

// Drain returns and removes all queued events in order.
func (q *EventQueue) Drain() []Event {
	out := q.events
	q.events = nil
	return out
}
