package engine

import "time"

type EventType string

const (
	EventOrderSubmitted EventType = "order_submitted"
	EventOrderFilled    EventType = "order_filled"
	EventOrderPartial   EventType = "order_partial_fill"
	EventOrderCancelled EventType = "order_cancelled"
	EventOrderRejected  EventType = "order_rejected"
	EventEndOfDay       EventType = "end_of_day"
	EventRunStopped     EventType = "run_stopped"
)

// Event is one entry in the engine's append-only audit trail.
type Event struct {
	Ts      time.Time
	Type    EventType
	Symbol  string
	OrderID string
	Detail  string
}

// EventLog buffers events raised during a tick and drains them into the
// permanent log at the end of the tick.
type EventLog struct {
	Events  []Event
	pending []Event
}

func (l *EventLog) Queue(e Event) {
	l.pending = append(l.pending, e)
}

func (l *EventLog) Drain() {
	l.Events = append(l.Events, l.pending...)
	l.pending = l.pending[:0]
}
