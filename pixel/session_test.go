package pixel

import (
	"bytes"
	"testing"

	"go.uber.org/zap"

	"github.com/dicewire/dicewire/pixel/protocol"
)

func TestSessionSubscribeSkipsEmptyChunks(t *testing.T) {
	link := newFakeLink("d20")
	svc, _ := link.DiscoverPixelService()
	session, err := newSession(svc, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	var got [][]byte
	unsub, err := session.Subscribe(func(data []byte) {
		got = append(got, data)
	})
	if err != nil {
		t.Fatal(err)
	}

	link.notify.push(nil)
	link.notify.push([]byte{})
	link.notify.push([]byte{1, 2, 3})

	if len(got) != 1 || !bytes.Equal(got[0], []byte{1, 2, 3}) {
		t.Errorf("forwarded chunks = %v, want only the nonzero one", got)
	}

	if err := unsub(); err != nil {
		t.Fatal(err)
	}
	link.notify.push([]byte{4})
	if len(got) != 1 {
		t.Error("chunk delivered after unsubscribe")
	}
}

func TestSessionSendModes(t *testing.T) {
	link := newFakeLink("d20")
	svc, _ := link.DiscoverPixelService()
	session, err := newSession(svc, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if err := session.Send(protocol.PlainMessage(protocol.MsgWhoAreYou), false); err != nil {
		t.Fatal(err)
	}
	if err := session.Send(protocol.Blink{Count: 1, Color: 0xFF0000, Duration: 500}, true); err != nil {
		t.Fatal(err)
	}

	writes := link.write.recorded()
	if len(writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(writes))
	}
	if writes[0][0] != byte(protocol.MsgWhoAreYou) {
		t.Errorf("first write discriminant = %d, want WhoAreYou", writes[0][0])
	}
	if writes[1][0] != byte(protocol.MsgBlink) {
		t.Errorf("second write discriminant = %d, want Blink", writes[1][0])
	}
}

func TestSessionSendPropagatesWriteError(t *testing.T) {
	link := newFakeLink("d20")
	link.write.writeErr = errTransport
	svc, _ := link.DiscoverPixelService()
	session, err := newSession(svc, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	if err := session.Send(protocol.PlainMessage(protocol.MsgWhoAreYou), false); err != errTransport {
		t.Errorf("error = %v, want the transport error unmodified", err)
	}
}
