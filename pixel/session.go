package pixel

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dicewire/dicewire/pixel/protocol"
)

// Session owns the notify and write characteristic handles for exactly
// one connection generation. It is discarded and rebuilt on every full
// reconnect: the firmware may present different characteristic
// instances after a link drop, so handles are never reused across one.
//
// A Session knows message boundaries and nothing else; protocol
// semantics live in Pixel.
type Session struct {
	notify Characteristic
	write  Characteristic
	log    *zap.Logger
}

func newSession(svc LinkService, log *zap.Logger) (*Session, error) {
	notify, err := svc.NotifyCharacteristic()
	if err != nil {
		return nil, fmt.Errorf("notify characteristic: %w", err)
	}
	write, err := svc.WriteCharacteristic()
	if err != nil {
		return nil, fmt.Errorf("write characteristic: %w", err)
	}
	return &Session{notify: notify, write: write, log: log}, nil
}

// Subscribe starts listening on the notify characteristic. Every
// inbound chunk with nonzero length is forwarded verbatim to handler.
// The returned function cancels the subscription.
func (s *Session) Subscribe(handler func([]byte)) (func() error, error) {
	err := s.notify.EnableNotifications(func(data []byte) {
		if len(data) == 0 {
			return
		}
		handler(data)
	})
	if err != nil {
		return nil, fmt.Errorf("enable notifications: %w", err)
	}
	return s.notify.DisableNotifications, nil
}

// Send marshals msg and writes it to the write characteristic, with
// transport acknowledgement unless withoutResponse is set. Transport
// write failures propagate unmodified.
func (s *Session) Send(msg protocol.Message, withoutResponse bool) error {
	data, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}
	if name, err := protocol.Name(msg.Type()); err == nil {
		s.log.Debug("send", zap.String("msg", name), zap.Int("len", len(data)))
	}
	if withoutResponse {
		_, err = s.write.WriteWithoutResponse(data)
	} else {
		_, err = s.write.Write(data)
	}
	return err
}
