package pixel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dicewire/dicewire/pixel/protocol"
)

var errTransport = errors.New("transport write failed")

// fakeChar is an in-memory Characteristic. Writes are recorded and
// handed to an optional hook before the write call returns, which lets
// a test deliver the reply notification ahead of the write's own
// completion.
type fakeChar struct {
	mu       sync.Mutex
	handler  func([]byte)
	writes   [][]byte
	onWrite  func([]byte)
	writeErr error
}

func (c *fakeChar) EnableNotifications(handler func([]byte)) error {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	return nil
}

func (c *fakeChar) DisableNotifications() error {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()
	return nil
}

func (c *fakeChar) Write(p []byte) (int, error)                { return c.doWrite(p) }
func (c *fakeChar) WriteWithoutResponse(p []byte) (int, error) { return c.doWrite(p) }

func (c *fakeChar) doWrite(p []byte) (int, error) {
	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return 0, err
	}
	data := make([]byte, len(p))
	copy(data, p)
	c.writes = append(c.writes, data)
	hook := c.onWrite
	c.mu.Unlock()
	if hook != nil {
		hook(data)
	}
	return len(p), nil
}

func (c *fakeChar) push(data []byte) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(data)
	}
}

func (c *fakeChar) recorded() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// fakeLink is an in-memory Link with a scripted die behind it.
type fakeLink struct {
	mu           sync.Mutex
	name         string
	identity     string
	open         bool
	openErr      error
	openCount    int
	onDisconnect func()

	notify *fakeChar
	write  *fakeChar
}

func newFakeLink(name string) *fakeLink {
	return &fakeLink{
		name:     name,
		identity: "fake:" + name,
		notify:   &fakeChar{},
		write:    &fakeChar{},
	}
}

func (l *fakeLink) Name() string     { return l.name }
func (l *fakeLink) Identity() string { return l.identity }

func (l *fakeLink) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open
}

func (l *fakeLink) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.openCount++
	if l.openErr != nil {
		return l.openErr
	}
	l.open = true
	return nil
}

func (l *fakeLink) Close() error {
	l.mu.Lock()
	l.open = false
	cb := l.onDisconnect
	l.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

// drop simulates an unexpected link loss.
func (l *fakeLink) drop() {
	l.mu.Lock()
	l.open = false
	cb := l.onDisconnect
	l.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (l *fakeLink) DiscoverPixelService() (LinkService, error) {
	return fakeService{link: l}, nil
}

func (l *fakeLink) OnDisconnect(fn func()) {
	l.mu.Lock()
	l.onDisconnect = fn
	l.mu.Unlock()
}

type fakeService struct{ link *fakeLink }

func (s fakeService) NotifyCharacteristic() (Characteristic, error) { return s.link.notify, nil }
func (s fakeService) WriteCharacteristic() (Characteristic, error)  { return s.link.write, nil }

// fakeDie scripts firmware behavior on top of a fakeLink: it decodes
// every host write and replies the way the die would.
type fakeDie struct {
	link *fakeLink

	mu          sync.Mutex
	identity    protocol.IAmADie
	identifies  int
	bumpVersion bool // re-identify with a new firmware version each time
	transferAck protocol.TransferAck
	mute        map[protocol.MessageType]bool // requests to ignore
	bulkTotal   int
	bulkGot     int
	finished    protocol.MessageType // pushed once the bulk stream completes
}

func newFakeDie(name string) *fakeDie {
	d := &fakeDie{
		link: newFakeLink(name),
		identity: protocol.IAmADie{
			DieType:     1,
			DataSetHash: 0xABCD,
			PixelID:     0xD1CE,
			FlashSize:   8192,
			Version:     "2.0.0",
		},
		transferAck: protocol.TransferAckDownload,
		mute:        make(map[protocol.MessageType]bool),
	}
	d.link.write.onWrite = d.handleWrite
	return d
}

func (d *fakeDie) setMute(t protocol.MessageType, on bool) {
	d.mu.Lock()
	d.mute[t] = on
	d.mu.Unlock()
}

func (d *fakeDie) reply(msg protocol.Message) {
	data, err := protocol.Marshal(msg)
	if err != nil {
		panic(err)
	}
	d.link.notify.push(data)
}

func (d *fakeDie) handleWrite(data []byte) {
	msg, err := protocol.Unmarshal(data)
	if err != nil {
		return
	}

	d.mu.Lock()
	if d.mute[msg.Type()] {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	switch m := msg.(type) {
	case protocol.PlainMessage:
		d.handlePlain(protocol.MessageType(m))
	case protocol.Blink:
		d.reply(protocol.PlainMessage(protocol.MsgBlinkAck))
	case protocol.SetName:
		d.reply(protocol.PlainMessage(protocol.MsgSetNameAck))
	case protocol.BulkSetup:
		d.mu.Lock()
		d.bulkTotal = int(m.Size)
		d.bulkGot = 0
		d.mu.Unlock()
		d.reply(protocol.PlainMessage(protocol.MsgBulkSetupAck))
	case protocol.BulkData:
		d.mu.Lock()
		d.bulkGot += int(m.Size)
		complete := d.bulkTotal > 0 && d.bulkGot >= d.bulkTotal
		finished := d.finished
		d.mu.Unlock()
		d.reply(protocol.BulkDataAck{Offset: m.Offset})
		if complete && finished != 0 {
			d.reply(protocol.PlainMessage(finished))
		}
	case protocol.TransferAnimationSet:
		d.mu.Lock()
		d.finished = protocol.MsgTransferAnimationSetFinished
		ack := d.transferAck
		d.mu.Unlock()
		d.reply(protocol.TransferAnimationSetAck{Result: ack})
	case protocol.TransferInstantAnimationSet:
		d.mu.Lock()
		d.finished = protocol.MsgTransferInstantAnimationSetFinished
		ack := d.transferAck
		d.mu.Unlock()
		d.reply(protocol.TransferInstantAnimationSetAck{Result: ack})
	}
}

func (d *fakeDie) handlePlain(t protocol.MessageType) {
	switch t {
	case protocol.MsgWhoAreYou:
		d.mu.Lock()
		d.identifies++
		if d.bumpVersion {
			d.identity.Version = fmt.Sprintf("2.0.%d", d.identifies)
		}
		id := d.identity
		d.mu.Unlock()
		d.reply(id)
	case protocol.MsgRequestRollState:
		d.reply(protocol.RollState{State: protocol.RollOnFace, FaceIndex: 5})
	case protocol.MsgRequestBatteryLevel:
		d.reply(protocol.BatteryLevel{Level: 0.75, Voltage: 3.7, Charging: true})
	case protocol.MsgRequestRssi:
		d.reply(protocol.Rssi{Value: 60000})
	case protocol.MsgRequestTemperature:
		d.reply(protocol.Temperature{Celsius: 21})
	}
}
