package pixel

import (
	"context"
	"fmt"
	"hash/crc32"
	"math"

	"go.uber.org/zap"

	"github.com/dicewire/dicewire/pixel/protocol"
)

// DataSet is an encoded animation/lighting data set. The controller
// treats the bytes as opaque: only their length and hash take part in
// the transfer negotiation.
type DataSet struct {
	PaletteSize    uint16
	KeyframeCount  uint16
	TrackCount     uint16
	AnimationCount uint16
	Data           []byte
}

// Hash is the content hash the firmware compares against its stored
// data set to decide whether a transfer is needed.
func (d *DataSet) Hash() uint32 {
	return crc32.ChecksumIEEE(d.Data)
}

// checkSize rejects data sets too large for the 16-bit size fields of
// the describing message and the bulk transfer.
func (d *DataSet) checkSize() error {
	if len(d.Data) > math.MaxUint16 {
		return fmt.Errorf("data set of %d bytes exceeds the %d-byte wire limit", len(d.Data), math.MaxUint16)
	}
	return nil
}

// TransferDataSet uploads ds to the die's permanent (flash) storage.
// The die answers the describing message with a download instruction
// (run the bulk transfer), an up-to-date instruction (its stored hash
// matches; nothing to do), or a rejection for size.
func (p *Pixel) TransferDataSet(ctx context.Context, ds *DataSet, progress func(float64)) error {
	if err := ds.checkSize(); err != nil {
		return err
	}
	msg := protocol.TransferAnimationSet{
		PaletteSize:    ds.PaletteSize,
		KeyframeCount:  ds.KeyframeCount,
		TrackCount:     ds.TrackCount,
		AnimationCount: ds.AnimationCount,
		AnimationSize:  uint16(len(ds.Data)),
		Hash:           ds.Hash(),
	}
	reply, err := p.SendAndWaitForResponse(ctx, msg, protocol.MsgTransferAnimationSetAck, 0)
	if err != nil {
		return err
	}
	ack, ok := reply.(protocol.TransferAnimationSetAck)
	if !ok {
		return fmt.Errorf("unexpected transfer reply %T: %w", reply, ErrNetwork)
	}

	switch ack.Result {
	case protocol.TransferAckDownload:
		return p.uploadBulkDataWithAck(ctx, protocol.MsgTransferAnimationSetFinished, ds.Data, progress)
	case protocol.TransferAckUpToDate:
		p.log.Info("data set already up to date", zap.Uint32("hash", msg.Hash))
		return nil
	case protocol.TransferAckNoMemory:
		return fmt.Errorf("die rejected data set: insufficient memory for %d bytes: %w",
			len(ds.Data), ErrNetwork)
	default:
		return fmt.Errorf("unsupported transfer ack code %d: %w", ack.Result, ErrNetwork)
	}
}

// TransferInstantDataSet uploads ds to the die's instant (RAM) slot
// for immediate playback via PlayInstantAnimation. No capacity check
// applies; any ack code other than download or up-to-date is a
// protocol mismatch.
func (p *Pixel) TransferInstantDataSet(ctx context.Context, ds *DataSet, progress func(float64)) error {
	if err := ds.checkSize(); err != nil {
		return err
	}
	msg := protocol.TransferInstantAnimationSet{
		PaletteSize:    ds.PaletteSize,
		KeyframeCount:  ds.KeyframeCount,
		TrackCount:     ds.TrackCount,
		AnimationCount: ds.AnimationCount,
		AnimationSize:  uint16(len(ds.Data)),
		Hash:           ds.Hash(),
	}
	reply, err := p.SendAndWaitForResponse(ctx, msg, protocol.MsgTransferInstantAnimationSetAck, 0)
	if err != nil {
		return err
	}
	ack, ok := reply.(protocol.TransferInstantAnimationSetAck)
	if !ok {
		return fmt.Errorf("unexpected transfer reply %T: %w", reply, ErrNetwork)
	}

	switch ack.Result {
	case protocol.TransferAckDownload:
		return p.uploadBulkDataWithAck(ctx, protocol.MsgTransferInstantAnimationSetFinished, ds.Data, progress)
	case protocol.TransferAckUpToDate:
		p.log.Info("instant data set already up to date", zap.Uint32("hash", msg.Hash))
		return nil
	default:
		return fmt.Errorf("unsupported transfer ack code %d: %w", ack.Result, ErrNetwork)
	}
}
