package pixel

import (
	"sync"

	"github.com/dicewire/dicewire/pixel/protocol"
)

// Status is the controller's connection state. FailedToConnect is not
// a status: a failed attempt lands back in StatusDisconnected and is
// reported through an EventConnectFailed event.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusIdentifying
	StatusReady
	StatusDisconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusIdentifying:
		return "identifying"
	case StatusReady:
		return "ready"
	case StatusDisconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

// DisconnectReason explains why the link went down.
type DisconnectReason int

const (
	// ReasonSuccess: the local caller asked for the disconnect.
	ReasonSuccess DisconnectReason = iota
	// ReasonLinkLoss: unexpected drop while auto-reconnect is intended.
	ReasonLinkLoss
	// ReasonTimeout: unexpected drop with no reconnect intent.
	ReasonTimeout
)

func (r DisconnectReason) String() string {
	switch r {
	case ReasonLinkLoss:
		return "link loss"
	case ReasonTimeout:
		return "timeout"
	default:
		return "success"
	}
}

// EventKind classifies controller events.
type EventKind int

const (
	EventStatusChanged EventKind = iota
	EventDisconnected
	EventConnectFailed
	EventRoll
)

// Event is delivered to Events() subscribers. Status is set on every
// event; Reason only on EventDisconnected; Err only on
// EventConnectFailed; Roll only on EventRoll.
type Event struct {
	Kind   EventKind
	Status Status
	Reason DisconnectReason
	Err    error
	Roll   protocol.RollState
}

// eventBus fans controller events out to subscribers over buffered
// channels. Slow consumers are skipped rather than stalling the
// notification dispatch path.
type eventBus struct {
	mu   sync.RWMutex
	subs map[*eventSub]struct{}
}

type eventSub struct {
	ch chan Event
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[*eventSub]struct{})}
}

func (b *eventBus) subscribe() (<-chan Event, func()) {
	s := &eventSub{ch: make(chan Event, 16)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return s.ch, unsub
}

func (b *eventBus) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
		}
	}
}
