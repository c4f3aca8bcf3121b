// Package pixel implements the connection state machine and protocol
// driver for a Pixels smart die: request/response correlation over the
// notify/write characteristic pair, retried connection attempts, and
// chunked bulk-data upload with per-chunk acknowledgement.
package pixel

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dicewire/dicewire/pixel/protocol"
)

// Timing constants fixed by the firmware protocol.
const (
	// DefaultRequestTimeout bounds every awaited reply or ack.
	DefaultRequestTimeout = 5 * time.Second
	// reconnect backoff: base delay, doubling, per connect attempt.
	reconnectRetries   = 4
	reconnectBaseDelay = 2 * time.Second
)

// Pixel is the controller for one die. It owns at most one Session at
// a time and is the object application code talks to. Obtain instances
// through a Registry so one physical die maps to one Pixel.
type Pixel struct {
	link Link
	log  *zap.Logger
	bus  *eventBus

	// connectMu serialises the check-then-create of the session so
	// concurrent Connect calls cannot race and build two sessions.
	connectMu Mutex

	mu            sync.Mutex
	status        Status
	connected     bool
	autoReconnect bool
	session       *Session
	unsubscribe   func() error
	info          *protocol.IAmADie
	lastRoll      *protocol.RollState

	waitersMu sync.Mutex
	waiters   map[protocol.MessageType]chan protocol.Message

	requestTimeout time.Duration
}

// Option configures a Pixel at construction.
type Option func(*Pixel)

// WithLogger sets the structured logger; the default is a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pixel) { p.log = log }
}

// WithRequestTimeout overrides DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Pixel) { p.requestTimeout = d }
}

// New builds a controller over link. The link-loss callback is
// registered immediately; Connect must still be called to bring the
// die up.
func New(link Link, opts ...Option) *Pixel {
	p := &Pixel{
		link:           link,
		log:            zap.NewNop(),
		bus:            newEventBus(),
		waiters:        make(map[protocol.MessageType]chan protocol.Message),
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("die", link.Name()))
	link.OnDisconnect(p.handleLinkLoss)
	return p
}

// Name returns the die's advertised name.
func (p *Pixel) Name() string { return p.link.Name() }

// Status returns the current connection state.
func (p *Pixel) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// IsReady reports whether identification completed and commands may be
// issued.
func (p *Pixel) IsReady() bool { return p.Status() == StatusReady }

// Info returns the identification reply from the current connection,
// or nil before Ready. It is re-fetched on every reconnect; firmware
// state may have changed across a link drop.
func (p *Pixel) Info() *protocol.IAmADie {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.info == nil {
		return nil
	}
	info := *p.info
	return &info
}

// PixelID returns the die's unique id, or 0 before identification.
func (p *Pixel) PixelID() uint32 {
	if info := p.Info(); info != nil {
		return info.PixelID
	}
	return 0
}

// LastRoll returns the most recent roll state heard from the die, or
// nil if none arrived on this connection.
func (p *Pixel) LastRoll() *protocol.RollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastRoll == nil {
		return nil
	}
	roll := *p.lastRoll
	return &roll
}

// Events returns a channel of controller events and an unsubscribe
// function.
func (p *Pixel) Events() (<-chan Event, func()) {
	return p.bus.subscribe()
}

// Connect brings the die to Ready. With autoReconnect the whole
// connect sequence is retried up to 4 times with exponential backoff
// (2s base, doubling), and future link losses schedule an automatic
// reconnect; without it a single attempt is made. A failed attempt
// emits EventConnectFailed before the error is returned.
func (p *Pixel) Connect(ctx context.Context, autoReconnect bool) error {
	p.mu.Lock()
	p.autoReconnect = autoReconnect
	p.mu.Unlock()

	retries := 0
	if autoReconnect {
		retries = reconnectRetries
	}

	err := RetryWithBackoff(ctx, retries, reconnectBaseDelay, p.connectOnce)
	if err != nil {
		p.log.Warn("connect failed", zap.Error(err))
		p.bus.publish(Event{Kind: EventConnectFailed, Status: p.Status(), Err: err})
		return err
	}
	return nil
}

// connectOnce runs one full connect sequence: open the link, then
// under the mutex discover, build the session and identify.
func (p *Pixel) connectOnce(ctx context.Context) error {
	p.mu.Lock()
	open := p.connected && p.link.IsOpen()
	p.mu.Unlock()

	if !open {
		p.setStatus(StatusConnecting)
		if err := p.link.Open(ctx); err != nil {
			return fmt.Errorf("open link: %v: %w", err, ErrNetwork)
		}
		p.mu.Lock()
		p.connected = true
		p.mu.Unlock()
		p.setStatus(StatusConnected)
	}

	var identified bool
	err := p.connectMu.Dispatch(ctx, func() error {
		p.mu.Lock()
		hasSession := p.session != nil
		p.mu.Unlock()
		if hasSession {
			return nil
		}

		p.setStatus(StatusIdentifying)

		svc, err := p.link.DiscoverPixelService()
		if err != nil {
			return fmt.Errorf("discover service: %v: %w", err, ErrNetwork)
		}
		session, err := newSession(svc, p.log)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrNetwork)
		}
		unsubscribe, err := session.Subscribe(p.handleNotification)
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrNetwork)
		}

		p.mu.Lock()
		p.session = session
		p.unsubscribe = unsubscribe
		p.mu.Unlock()

		reply, err := p.SendAndWaitForResponse(ctx,
			protocol.PlainMessage(protocol.MsgWhoAreYou), protocol.MsgIAmADie, 0)
		if err != nil {
			// A half-built session must not survive the failed
			// attempt: the next one re-runs discovery and identify.
			p.teardownSession()
			return err
		}
		info, ok := reply.(protocol.IAmADie)
		if !ok {
			p.teardownSession()
			return fmt.Errorf("unexpected identify reply %T: %w", reply, ErrNetwork)
		}

		p.mu.Lock()
		// A disconnect mid-identify discards the result; the info a
		// dead link produced must not outlive it.
		if p.connected {
			p.info = &info
			identified = true
		}
		p.mu.Unlock()

		if identified {
			p.log.Info("identified",
				zap.Uint32("pixelId", info.PixelID),
				zap.String("firmware", info.Version))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if identified {
		p.setStatus(StatusReady)
	}
	return nil
}

// teardownSession drops the stored session so the next connect attempt
// rebuilds it from scratch. A link loss may already have cleared it.
func (p *Pixel) teardownSession() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.session = nil
	p.unsubscribe = nil
	p.mu.Unlock()
	if unsubscribe != nil {
		if err := unsubscribe(); err != nil {
			p.log.Debug("unsubscribe failed", zap.Error(err))
		}
	}
}

// Disconnect deliberately closes the link. The resulting link-loss
// callback reports ReasonSuccess because the connected flag is
// already cleared when it fires. Auto-reconnect intent is dropped so
// the die stays down until the next Connect.
func (p *Pixel) Disconnect() error {
	p.mu.Lock()
	open := p.link.IsOpen()
	p.connected = false
	p.autoReconnect = false
	if open {
		p.status = StatusDisconnecting
	}
	p.mu.Unlock()

	if !open {
		return nil
	}
	p.bus.publish(Event{Kind: EventStatusChanged, Status: StatusDisconnecting})
	return p.link.Close()
}

// handleLinkLoss is invoked by the transport on every link drop.
func (p *Pixel) handleLinkLoss() {
	p.mu.Lock()
	var reason DisconnectReason
	switch {
	case !p.connected:
		reason = ReasonSuccess
	case p.autoReconnect:
		reason = ReasonLinkLoss
	default:
		reason = ReasonTimeout
	}
	reconnect := p.autoReconnect && p.info != nil
	p.connected = false
	p.session = nil
	p.unsubscribe = nil
	p.info = nil
	p.lastRoll = nil
	p.status = StatusDisconnected
	p.mu.Unlock()

	p.log.Info("link down", zap.String("reason", reason.String()))
	p.bus.publish(Event{Kind: EventDisconnected, Status: StatusDisconnected, Reason: reason})

	// Reconnect only when the die had been fully Ready; a loss during
	// the initial connect is left to the in-flight attempt's retries.
	if reconnect {
		go func() {
			if err := p.Connect(context.Background(), true); err != nil {
				// Connect already emitted EventConnectFailed.
				p.log.Warn("reconnect failed", zap.Error(err))
			}
		}()
	}
}

// handleNotification decodes one inbound chunk and dispatches it:
// first to any pending same-type waiter, then to cached state and
// event fan-out.
func (p *Pixel) handleNotification(data []byte) {
	msg, err := protocol.Unmarshal(data)
	if err != nil {
		p.log.Warn("bad notification", zap.Error(err), zap.Int("len", len(data)))
		return
	}

	p.waitersMu.Lock()
	waiter, ok := p.waiters[msg.Type()]
	if ok {
		delete(p.waiters, msg.Type())
	}
	p.waitersMu.Unlock()
	if ok {
		waiter <- msg
	}

	switch m := msg.(type) {
	case protocol.RollState:
		p.mu.Lock()
		roll := m
		p.lastRoll = &roll
		status := p.status
		p.mu.Unlock()
		p.bus.publish(Event{Kind: EventRoll, Status: status, Roll: m})
	case protocol.DebugLog:
		p.log.Debug("firmware log", zap.String("text", m.Text))
	}
}

// SendMessage marshals and writes msg on the current session, with
// transport acknowledgement unless withoutResponse is set.
func (p *Pixel) SendMessage(msg protocol.Message, withoutResponse bool) error {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()
	if session == nil {
		return fmt.Errorf("no link layer: %w", ErrNetwork)
	}
	return session.Send(msg, withoutResponse)
}

// SendAndWaitForResponse sends msg and waits for the next message of
// expectedType, racing a timer (timeout <= 0 means the default 5s).
// The waiter is registered before the write is issued, so a reply
// that arrives before the write's own completion is observed still
// resolves. On expiry the waiter is unregistered and a later message
// of the same type will not resolve the failed call.
func (p *Pixel) SendAndWaitForResponse(ctx context.Context, msg protocol.Message, expectedType protocol.MessageType, timeout time.Duration) (protocol.Message, error) {
	if timeout <= 0 {
		timeout = p.requestTimeout
	}

	waiter, err := p.registerWaiter(expectedType)
	if err != nil {
		return nil, err
	}

	if err := p.SendMessage(msg, false); err != nil {
		p.removeWaiter(expectedType, waiter)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-waiter:
		return reply, nil
	case <-timer.C:
		p.removeWaiter(expectedType, waiter)
		name, nerr := protocol.Name(expectedType)
		if nerr != nil {
			name = fmt.Sprintf("type %d", expectedType)
		}
		return nil, fmt.Errorf("no %s reply within %v: %w", name, timeout, ErrTimeout)
	case <-ctx.Done():
		p.removeWaiter(expectedType, waiter)
		return nil, ctx.Err()
	}
}

// registerWaiter installs a one-shot listener for t. At most one
// waiter per type may be active; overlapping same-type requests are a
// caller bug.
func (p *Pixel) registerWaiter(t protocol.MessageType) (chan protocol.Message, error) {
	p.waitersMu.Lock()
	defer p.waitersMu.Unlock()
	if _, exists := p.waiters[t]; exists {
		return nil, fmt.Errorf("a request awaiting message type %d is already pending", t)
	}
	ch := make(chan protocol.Message, 1)
	p.waiters[t] = ch
	return ch, nil
}

// removeWaiter unregisters ch if it is still the pending waiter for t.
// A waiter that already resolved (and was removed by dispatch) is left
// alone, as is any newer waiter registered since.
func (p *Pixel) removeWaiter(t protocol.MessageType, ch chan protocol.Message) {
	p.waitersMu.Lock()
	if p.waiters[t] == ch {
		delete(p.waiters, t)
	}
	p.waitersMu.Unlock()
}

func (p *Pixel) setStatus(s Status) {
	p.mu.Lock()
	changed := p.status != s
	p.status = s
	p.mu.Unlock()
	if changed {
		p.log.Debug("status", zap.String("status", s.String()))
		p.bus.publish(Event{Kind: EventStatusChanged, Status: s})
	}
}

// --- Convenience operations ---

// Blink flashes the die's LEDs and waits for the firmware ack. The
// wire field for duration is milliseconds in 16 bits; longer durations
// are clamped to the maximum the die can express.
func (p *Pixel) Blink(ctx context.Context, count uint8, color uint32, duration time.Duration, fade uint8) error {
	ms := duration.Milliseconds()
	if ms > math.MaxUint16 {
		ms = math.MaxUint16
	}
	msg := protocol.Blink{
		Count:    count,
		Color:    color,
		Duration: uint16(ms),
		Fade:     fade,
	}
	_, err := p.SendAndWaitForResponse(ctx, msg, protocol.MsgBlinkAck, 0)
	return err
}

// QueryRollState asks the die for its current roll state.
func (p *Pixel) QueryRollState(ctx context.Context) (protocol.RollState, error) {
	reply, err := p.SendAndWaitForResponse(ctx,
		protocol.PlainMessage(protocol.MsgRequestRollState), protocol.MsgRollState, 0)
	if err != nil {
		return protocol.RollState{}, err
	}
	return reply.(protocol.RollState), nil
}

// QueryBatteryLevel asks the die for its battery state.
func (p *Pixel) QueryBatteryLevel(ctx context.Context) (protocol.BatteryLevel, error) {
	reply, err := p.SendAndWaitForResponse(ctx,
		protocol.PlainMessage(protocol.MsgRequestBatteryLevel), protocol.MsgBatteryLevel, 0)
	if err != nil {
		return protocol.BatteryLevel{}, err
	}
	return reply.(protocol.BatteryLevel), nil
}

// QueryRssi asks the die for the signal strength it measures.
func (p *Pixel) QueryRssi(ctx context.Context) (protocol.Rssi, error) {
	reply, err := p.SendAndWaitForResponse(ctx,
		protocol.PlainMessage(protocol.MsgRequestRssi), protocol.MsgRssi, 0)
	if err != nil {
		return protocol.Rssi{}, err
	}
	return reply.(protocol.Rssi), nil
}

// QueryTemperature asks the die for its MCU temperature.
func (p *Pixel) QueryTemperature(ctx context.Context) (protocol.Temperature, error) {
	reply, err := p.SendAndWaitForResponse(ctx,
		protocol.PlainMessage(protocol.MsgRequestTemperature), protocol.MsgTemperature, 0)
	if err != nil {
		return protocol.Temperature{}, err
	}
	return reply.(protocol.Temperature), nil
}

// Rename sets the die's advertised name and waits for the ack.
func (p *Pixel) Rename(ctx context.Context, name string) error {
	_, err := p.SendAndWaitForResponse(ctx, protocol.SetName{Name: name}, protocol.MsgSetNameAck, 0)
	return err
}

// PlayAnimation starts a stored animation. Fire-and-forget; the
// firmware sends no ack for this.
func (p *Pixel) PlayAnimation(anim, remapFace uint8, loop bool) error {
	return p.SendMessage(protocol.PlayAnimation{Animation: anim, RemapFace: remapFace, Loop: loop}, false)
}

// StopAllAnimations stops everything currently playing.
func (p *Pixel) StopAllAnimations() error {
	return p.SendMessage(protocol.PlainMessage(protocol.MsgStopAllAnimations), false)
}
