package protocol

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{
			name: "type only",
			msg:  PlainMessage(MsgWhoAreYou),
		},
		{
			name: "IAmADie",
			msg: IAmADie{
				DieType:        1,
				DesignAndColor: 4,
				DataSetHash:    0xDEADBEEF,
				PixelID:        0x12345678,
				FlashSize:      8192,
				Version:        "12.3",
			},
		},
		{
			name: "RollState",
			msg:  RollState{State: RollRolling, FaceIndex: 19},
		},
		{
			name: "BatteryLevel",
			msg:  BatteryLevel{Level: 0.5, Voltage: 4.1, Charging: true},
		},
		{
			name: "Rssi",
			msg:  Rssi{Value: 62000},
		},
		{
			name: "Temperature",
			msg:  Temperature{Celsius: -12},
		},
		{
			name: "Blink",
			msg:  Blink{Count: 3, Color: 0x00FF00FF, Duration: 1000, Fade: 128},
		},
		{
			name: "PlayAnimation",
			msg:  PlayAnimation{Animation: 2, RemapFace: 5, Loop: true},
		},
		{
			name: "PlayInstantAnimation",
			msg:  PlayInstantAnimation{Animation: 7},
		},
		{
			name: "CalibrateFace",
			msg:  CalibrateFace{Face: 11},
		},
		{
			name: "SetName",
			msg:  SetName{Name: "Lucky"},
		},
		{
			name: "NotifyUser",
			msg:  NotifyUser{Timeout: 30, OK: true, Cancel: false, Text: "low battery"},
		},
		{
			name: "DebugLog",
			msg:  DebugLog{Text: "boot complete"},
		},
		{
			name: "BulkSetup",
			msg:  BulkSetup{Size: 2500},
		},
		{
			name: "BulkData",
			msg:  BulkData{Size: 4, Offset: 300, Data: []byte{1, 2, 3, 4}},
		},
		{
			name: "BulkDataAck",
			msg:  BulkDataAck{Offset: 300},
		},
		{
			name: "TransferAnimationSet",
			msg: TransferAnimationSet{
				PaletteSize:    24,
				KeyframeCount:  100,
				TrackCount:     20,
				AnimationCount: 5,
				AnimationSize:  900,
				Hash:           0xCAFEF00D,
			},
		},
		{
			name: "TransferAnimationSetAck",
			msg:  TransferAnimationSetAck{Result: TransferAckUpToDate},
		},
		{
			name: "TransferInstantAnimationSet",
			msg: TransferInstantAnimationSet{
				PaletteSize:    8,
				KeyframeCount:  10,
				TrackCount:     2,
				AnimationCount: 1,
				AnimationSize:  120,
				Hash:           1,
			},
		},
		{
			name: "TransferInstantAnimationSetAck",
			msg:  TransferInstantAnimationSetAck{Result: TransferAckDownload},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.msg)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			if len(data) == 0 || MessageType(data[0]) != tt.msg.Type() {
				t.Fatalf("Marshal() discriminant = %v, want %v", data[0], tt.msg.Type())
			}

			decoded, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if !reflect.DeepEqual(decoded, tt.msg) {
				t.Errorf("round trip = %#v, want %#v", decoded, tt.msg)
			}
		})
	}
}

func TestUnmarshalEmptyBuffer(t *testing.T) {
	_, err := Unmarshal(nil)
	if !errors.Is(err, ErrEmptyBuffer) {
		t.Errorf("Unmarshal(nil) error = %v, want ErrEmptyBuffer", err)
	}
	_, err = Unmarshal([]byte{})
	if !errors.Is(err, ErrEmptyBuffer) {
		t.Errorf("Unmarshal(empty) error = %v, want ErrEmptyBuffer", err)
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	// Discriminants past the registry decode to the bare type value;
	// newer firmware may emit messages this host does not model.
	msg, err := Unmarshal([]byte{200})
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	plain, ok := msg.(PlainMessage)
	if !ok {
		t.Fatalf("Unmarshal() = %T, want PlainMessage", msg)
	}
	if plain.Type() != 200 {
		t.Errorf("type = %d, want 200", plain.Type())
	}
}

func TestUnmarshalTypeOnlyKnown(t *testing.T) {
	msg, err := Unmarshal([]byte{byte(MsgRequestBatteryLevel)})
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if msg.Type() != MsgRequestBatteryLevel {
		t.Errorf("type = %v, want MsgRequestBatteryLevel", msg.Type())
	}
}

func TestUnmarshalRollState(t *testing.T) {
	msg, err := Unmarshal([]byte{byte(MsgRollState), 2, 5})
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	rs, ok := msg.(RollState)
	if !ok {
		t.Fatalf("Unmarshal() = %T, want RollState", msg)
	}
	if rs.State != RollHandling {
		t.Errorf("State = %v, want %v", rs.State, RollHandling)
	}
	if rs.Face() != 6 {
		t.Errorf("Face() = %d, want 6 (faceIndex+1)", rs.Face())
	}
}

func TestUnmarshalBatteryLevel(t *testing.T) {
	data := make([]byte, 10)
	data[0] = byte(MsgBatteryLevel)
	binary.LittleEndian.PutUint32(data[1:5], math.Float32bits(0.75))
	binary.LittleEndian.PutUint32(data[5:9], math.Float32bits(3.7))
	data[9] = 1

	msg, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	bl, ok := msg.(BatteryLevel)
	if !ok {
		t.Fatalf("Unmarshal() = %T, want BatteryLevel", msg)
	}
	if bl.Level != 0.75 {
		t.Errorf("Level = %v, want 0.75", bl.Level)
	}
	if bl.Voltage != 3.7 {
		t.Errorf("Voltage = %v, want 3.7", bl.Voltage)
	}
	if !bl.Charging {
		t.Error("Charging = false, want true")
	}
}

func TestUnmarshalIAmADieNulPadding(t *testing.T) {
	msg := IAmADie{
		DieType:     1,
		DataSetHash: 42,
		PixelID:     7,
		FlashSize:   8192,
		Version:     "2.1.0",
	}
	data, err := Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	// Firmware pads the version field with NULs to a fixed slot width.
	data = append(data, 0, 0, 0)

	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	got, ok := decoded.(IAmADie)
	if !ok {
		t.Fatalf("Unmarshal() = %T, want IAmADie", decoded)
	}
	if got.Version != "2.1.0" {
		t.Errorf("Version = %q, want %q", got.Version, "2.1.0")
	}
}

func TestUnmarshalShortBuffer(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "RollState one byte payload", data: []byte{byte(MsgRollState), 1}},
		{name: "BatteryLevel truncated", data: []byte{byte(MsgBatteryLevel), 0, 0}},
		{name: "IAmADie truncated", data: []byte{byte(MsgIAmADie), 1, 2, 3}},
		{name: "BulkData shorter than size field", data: []byte{byte(MsgBulkData), 10, 0, 0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal(tt.data); !errors.Is(err, ErrShortBuffer) {
				t.Errorf("Unmarshal() error = %v, want ErrShortBuffer", err)
			}
		})
	}
}

func TestName(t *testing.T) {
	name, err := Name(MsgIAmADie)
	if err != nil {
		t.Fatalf("Name() error: %v", err)
	}
	if name != "IAmADie" {
		t.Errorf("Name() = %q, want %q", name, "IAmADie")
	}

	if _, err := Name(MessageType(250)); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Name(250) error = %v, want ErrUnknownType", err)
	}

	if IsKnown(MessageType(250)) {
		t.Error("IsKnown(250) = true, want false")
	}
	if !IsKnown(MsgBlink) {
		t.Error("IsKnown(MsgBlink) = false, want true")
	}
}
