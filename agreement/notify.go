package agreement

import (
	"context"
	"time"
)

type EventKind string

const (
	EventQueued                EventKind = "queued"
	EventActivated             EventKind = "activated"
	EventConfirmationRequested EventKind = "confirmation_requested"
	EventAccepted              EventKind = "accepted"
	EventExpired               EventKind = "expired"
	EventCanceled              EventKind = "canceled"
)

// Event is the structured payload of an outbound notification. The transport
// renders it as text.
type Event struct {
	Kind           EventKind
	ConversationID int64
	Agreement      Agreement
	Actor          *Identity
	At             time.Time

	// Queued: 1-based position in the waiting queue.
	QueuePosition int
	// Accepted: identity strategy that authorized the acceptance.
	MatchedBy MatchKind
	// Expired: the expiry was detected by a late accept, not by the timer.
	LateAccept bool
	// ConfirmationRequested.
	Confirmation *Confirmation
	Window       time.Duration
}

// Notifier delivers lifecycle events. It is called with the conversation's
// state locked and must not call back into the Engine synchronously.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) {
	if f != nil {
		f(ctx, ev)
	}
}

// Recorder persists agreement snapshots for human audit. Failures are logged
// by the engine and never affect the lifecycle.
type Recorder interface {
	RecordAgreement(ctx context.Context, a Agreement, kind EventKind) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}
