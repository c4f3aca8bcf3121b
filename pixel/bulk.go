package pixel

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/dicewire/dicewire/pixel/protocol"
)

// MaxBulkChunkSize is the largest BulkData payload the firmware
// accepts in a single chunk.
const MaxBulkChunkSize = 100

// uploadBulkData runs the chunked store-and-forward protocol: one
// BulkSetup announcing the total size, then sequential BulkData chunks
// of at most MaxBulkChunkSize bytes, each awaiting its BulkDataAck
// before the next is sent. The die has no reordering buffer, so chunks
// are never pipelined. progress (optional) is called with the acked
// fraction after every chunk, ending at 1.0.
func (p *Pixel) uploadBulkData(ctx context.Context, data []byte, progress func(float64)) error {
	if len(data) == 0 {
		return fmt.Errorf("bulk transfer of empty payload")
	}
	// BulkSetup.Size and BulkData.Offset are 16-bit wire fields.
	if len(data) > math.MaxUint16 {
		return fmt.Errorf("bulk transfer of %d bytes exceeds the %d-byte wire limit", len(data), math.MaxUint16)
	}

	_, err := p.SendAndWaitForResponse(ctx,
		protocol.BulkSetup{Size: uint16(len(data))}, protocol.MsgBulkSetupAck, 0)
	if err != nil {
		return fmt.Errorf("bulk setup: %w", err)
	}

	offset := 0
	for offset < len(data) {
		n := len(data) - offset
		if n > MaxBulkChunkSize {
			n = MaxBulkChunkSize
		}
		chunk := protocol.BulkData{
			Size:   uint8(n),
			Offset: uint16(offset),
			Data:   data[offset : offset+n],
		}
		if _, err := p.SendAndWaitForResponse(ctx, chunk, protocol.MsgBulkDataAck, 0); err != nil {
			return fmt.Errorf("bulk chunk at offset %d: %w", offset, err)
		}
		offset += n
		if progress != nil {
			progress(float64(offset) / float64(len(data)))
		}
	}

	p.log.Debug("bulk transfer complete", zap.Int("bytes", len(data)))
	return nil
}

// uploadBulkDataWithAck runs uploadBulkData and then waits for the
// asynchronous finished notification (writing to flash can outlast the
// byte stream). The finished listener is registered before the
// transfer starts: the notification may beat the last chunk ack.
func (p *Pixel) uploadBulkDataWithAck(ctx context.Context, finishedType protocol.MessageType, data []byte, progress func(float64)) error {
	finished, err := p.registerWaiter(finishedType)
	if err != nil {
		return err
	}
	defer p.removeWaiter(finishedType, finished)

	if err := p.uploadBulkData(ctx, data, progress); err != nil {
		return err
	}

	timer := time.NewTimer(p.requestTimeout)
	defer timer.Stop()
	select {
	case <-finished:
		return nil
	case <-timer.C:
		name, nerr := protocol.Name(finishedType)
		if nerr != nil {
			name = fmt.Sprintf("type %d", finishedType)
		}
		return fmt.Errorf("no %s within %v: %w", name, p.requestTimeout, ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
