// Package event defines the lifecycle notifications published to subscribers.
package event

import "time"

// Name identifies a lifecycle event.
type Name string

// Lifecycle events.
const (
	RefinementQueued    Name = "refinement.queued"
	RefinementStarted   Name = "refinement.started"
	RefinementCompleted Name = "refinement.completed"
	RefinementError     Name = "refinement.error"
	RefinementStopped   Name = "refinement.stopped"
	TriplesExtracted    Name = "triples.extracted"
	InsightsGenerated   Name = "insights.generated"
)

// Event is one notification. Payload depends on Name.
type Event struct {
	Name       Name      `json:"name"`
	DocumentID string    `json:"documentId,omitempty"`
	Payload    any       `json:"payload,omitempty"`
	At         time.Time `json:"at"`
}

// New stamps an event with the current time.
func New(name Name, documentID string, payload any) Event {
	return Event{Name: name, DocumentID: documentID, Payload: payload, At: time.Now().UTC()}
}

// Notifier receives lifecycle events. Implementations must not block.
type Notifier interface {
	Notify(e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(e Event)

// Notify calls f.
func (f NotifierFunc) Notify(e Event) { f(e) }

// Nop discards events.
var Nop Notifier = NotifierFunc(func(Event) {})
