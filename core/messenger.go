package core

import (
	"sync"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageAuthCode         MessageType = "strava-auth-code"
	MessagePermissionDenied MessageType = "strava-permission-denied"
)

// AuthMessage is the typed payload relayed from the popup window back to
// the opener. ID is stamped on delivery for log correlation.
type AuthMessage struct {
	ID   uuid.UUID   `json:"-"`
	Type MessageType `json:"type"`
	Code string      `json:"code,omitempty"`
}

// Messenger is the sole channel by which the popup communicates the
// authorization result back to the main window. Delivery is restricted
// to the app's own origin: a message posted with any other origin is
// discarded unconditionally, before the payload is inspected. There is
// no polling and no shared storage on this leg.
type Messenger struct {
	origin string

	mu     sync.Mutex
	ch     chan AuthMessage
	closed bool
}

func NewMessenger(origin string) *Messenger {
	return &Messenger{
		origin: origin,
		ch:     make(chan AuthMessage, 8),
	}
}

// Post relays msg to the receiver if origin matches the app's own
// origin. Mismatched origins are dropped silently; nothing about the
// payload is logged or returned.
func (m *Messenger) Post(origin string, msg AuthMessage) {
	if origin != m.origin {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	select {
	case m.ch <- msg:
	default:
		// Receiver stalled with a full buffer; the popup flow is one
		// message per authorization attempt, so dropping is safe.
	}
}

// Messages is the receive side consumed by the auth manager.
func (m *Messenger) Messages() <-chan AuthMessage {
	return m.ch
}

// Close detaches the channel. Posts after Close are dropped, so a torn
// down receiver never acts on events from a destroyed context.
func (m *Messenger) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.ch)
}
