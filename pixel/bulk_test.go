package pixel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dicewire/dicewire/pixel/protocol"
)

// bulkWrites extracts the BulkSetup/BulkData frames from everything
// the host wrote, decoded.
func bulkWrites(t *testing.T, die *fakeDie) (setups []protocol.BulkSetup, chunks []protocol.BulkData) {
	t.Helper()
	for _, raw := range die.link.write.recorded() {
		msg, err := protocol.Unmarshal(raw)
		if err != nil {
			t.Fatalf("host wrote undecodable frame: %v", err)
		}
		switch m := msg.(type) {
		case protocol.BulkSetup:
			setups = append(setups, m)
		case protocol.BulkData:
			chunks = append(chunks, m)
		}
	}
	return setups, chunks
}

func TestUploadBulkDataChunking(t *testing.T) {
	die := newFakeDie("Lucky")
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	data := make([]byte, 250)
	for i := range data {
		data[i] = byte(i)
	}

	var fractions []float64
	err := p.uploadBulkData(context.Background(), data, func(f float64) {
		fractions = append(fractions, f)
	})
	if err != nil {
		t.Fatalf("uploadBulkData() error: %v", err)
	}

	setups, chunks := bulkWrites(t, die)
	if len(setups) != 1 || setups[0].Size != 250 {
		t.Fatalf("setups = %+v, want one of size 250", setups)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	wantOffsets := []uint16{0, 100, 200}
	wantSizes := []uint8{100, 100, 50}
	var reassembled []byte
	for i, c := range chunks {
		if c.Offset != wantOffsets[i] || c.Size != wantSizes[i] {
			t.Errorf("chunk %d = offset %d size %d, want offset %d size %d",
				i, c.Offset, c.Size, wantOffsets[i], wantSizes[i])
		}
		reassembled = append(reassembled, c.Data...)
	}
	if !bytes.Equal(reassembled, data) {
		t.Error("reassembled chunks differ from the payload")
	}

	if len(fractions) != 3 || fractions[len(fractions)-1] != 1.0 {
		t.Errorf("progress = %v, want 3 samples ending at 1.0", fractions)
	}
}

func TestUploadBulkDataEmpty(t *testing.T) {
	die := newFakeDie("Lucky")
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if err := p.uploadBulkData(context.Background(), nil, nil); err == nil {
		t.Error("empty payload accepted, want error")
	}
}

func testDataSet(n int) *DataSet {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return &DataSet{
		PaletteSize:    4,
		KeyframeCount:  12,
		TrackCount:     3,
		AnimationCount: 2,
		Data:           data,
	}
}

func TestTransferDataSetDownload(t *testing.T) {
	die := newFakeDie("Lucky")
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	ds := testDataSet(130)
	var last float64
	if err := p.TransferDataSet(context.Background(), ds, func(f float64) { last = f }); err != nil {
		t.Fatalf("TransferDataSet() error: %v", err)
	}

	setups, chunks := bulkWrites(t, die)
	if len(setups) != 1 {
		t.Fatalf("setups = %d, want exactly one bulk sequence", len(setups))
	}
	if len(chunks) != 2 {
		t.Errorf("chunks = %d, want 2 for 130 bytes", len(chunks))
	}
	if last != 1.0 {
		t.Errorf("final progress = %v, want 1.0", last)
	}
}

func TestTransferDataSetUpToDate(t *testing.T) {
	die := newFakeDie("Lucky")
	die.transferAck = protocol.TransferAckUpToDate
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	if err := p.TransferDataSet(context.Background(), testDataSet(64), nil); err != nil {
		t.Fatalf("TransferDataSet() error: %v", err)
	}

	setups, chunks := bulkWrites(t, die)
	if len(setups) != 0 || len(chunks) != 0 {
		t.Error("bulk transfer ran despite up-to-date answer")
	}
}

func TestTransferDataSetNoMemory(t *testing.T) {
	die := newFakeDie("Lucky")
	die.transferAck = protocol.TransferAckNoMemory
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	err := p.TransferDataSet(context.Background(), testDataSet(64), nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork", err)
	}
	if !strings.Contains(err.Error(), "insufficient memory") {
		t.Errorf("error = %q, want memory rejection detail", err)
	}
}

func TestTransferInstantDataSet(t *testing.T) {
	die := newFakeDie("Lucky")
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	if err := p.TransferInstantDataSet(context.Background(), testDataSet(50), nil); err != nil {
		t.Fatalf("TransferInstantDataSet() error: %v", err)
	}

	setups, chunks := bulkWrites(t, die)
	if len(setups) != 1 || len(chunks) != 1 {
		t.Errorf("setups=%d chunks=%d, want 1/1 for 50 bytes", len(setups), len(chunks))
	}
}

func TestTransferInstantDataSetUnknownAck(t *testing.T) {
	die := newFakeDie("Lucky")
	die.transferAck = protocol.TransferAckNoMemory // instant slot has no capacity arm
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	err := p.TransferInstantDataSet(context.Background(), testDataSet(50), nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("error = %v, want ErrNetwork for unsupported ack code", err)
	}
}

func TestDataSetHashStable(t *testing.T) {
	a := testDataSet(64)
	b := testDataSet(64)
	if a.Hash() != b.Hash() {
		t.Error("identical payloads hash differently")
	}
	b.Data[0] ^= 0xFF
	if a.Hash() == b.Hash() {
		t.Error("differing payloads share a hash")
	}
}

func TestUploadBulkDataOversized(t *testing.T) {
	// Size and offset travel in 16-bit wire fields; a payload past
	// 65535 bytes must be rejected before any frame goes out rather
	// than announced and streamed with wrapped values.
	die := newFakeDie("Lucky")
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	err := p.uploadBulkData(context.Background(), make([]byte, 70000), nil)
	if err == nil || !strings.Contains(err.Error(), "wire limit") {
		t.Fatalf("uploadBulkData(70000 bytes) error = %v, want wire limit rejection", err)
	}

	setups, chunks := bulkWrites(t, die)
	if len(setups) != 0 || len(chunks) != 0 {
		t.Errorf("host wrote %d setups and %d chunks for a rejected payload, want none",
			len(setups), len(chunks))
	}
}

func TestTransferDataSetOversized(t *testing.T) {
	die := newFakeDie("Lucky")
	p := newTestPixel(die)
	if err := p.Connect(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	ds := testDataSet(70000)
	if err := p.TransferDataSet(context.Background(), ds, nil); err == nil {
		t.Error("TransferDataSet(70000 bytes) = nil, want error")
	}
	if err := p.TransferInstantDataSet(context.Background(), ds, nil); err == nil {
		t.Error("TransferInstantDataSet(70000 bytes) = nil, want error")
	}
	if n := len(die.link.write.recorded()); n != 1 {
		t.Errorf("host wrote %d frames for rejected data sets, want only the identify request", n)
	}
}
