package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Marshal serialises a message to wire bytes: the discriminant byte
// followed by the fields of the concrete type packed little-endian in
// declaration order. A PlainMessage is a single byte.
func Marshal(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("marshal nil message")
	}

	switch m := msg.(type) {
	case PlainMessage:
		return []byte{byte(m)}, nil

	case IAmADie:
		buf := make([]byte, 14, 14+len(m.Version))
		buf[0] = byte(MsgIAmADie)
		buf[1] = m.DieType
		buf[2] = m.DesignAndColor
		buf[3] = 0 // pad
		binary.LittleEndian.PutUint32(buf[4:8], m.DataSetHash)
		binary.LittleEndian.PutUint32(buf[8:12], m.PixelID)
		binary.LittleEndian.PutUint16(buf[12:14], m.FlashSize)
		return append(buf, m.Version...), nil

	case RollState:
		return []byte{byte(MsgRollState), byte(m.State), m.FaceIndex}, nil

	case BatteryLevel:
		buf := make([]byte, 10)
		buf[0] = byte(MsgBatteryLevel)
		binary.LittleEndian.PutUint32(buf[1:5], math.Float32bits(m.Level))
		binary.LittleEndian.PutUint32(buf[5:9], math.Float32bits(m.Voltage))
		buf[9] = boolByte(m.Charging)
		return buf, nil

	case Rssi:
		buf := make([]byte, 3)
		buf[0] = byte(MsgRssi)
		binary.LittleEndian.PutUint16(buf[1:3], m.Value)
		return buf, nil

	case Temperature:
		buf := make([]byte, 3)
		buf[0] = byte(MsgTemperature)
		binary.LittleEndian.PutUint16(buf[1:3], uint16(m.Celsius))
		return buf, nil

	case Blink:
		buf := make([]byte, 9)
		buf[0] = byte(MsgBlink)
		buf[1] = m.Count
		binary.LittleEndian.PutUint32(buf[2:6], m.Color)
		binary.LittleEndian.PutUint16(buf[6:8], m.Duration)
		buf[8] = m.Fade
		return buf, nil

	case PlayAnimation:
		return []byte{byte(MsgPlayAnimation), m.Animation, m.RemapFace, boolByte(m.Loop)}, nil

	case PlayInstantAnimation:
		return []byte{byte(MsgPlayInstantAnimation), m.Animation}, nil

	case CalibrateFace:
		return []byte{byte(MsgCalibrateFace), m.Face}, nil

	case SetName:
		return append([]byte{byte(MsgSetName)}, m.Name...), nil

	case NotifyUser:
		buf := []byte{byte(MsgNotifyUser), m.Timeout, boolByte(m.OK), boolByte(m.Cancel)}
		return append(buf, m.Text...), nil

	case DebugLog:
		return append([]byte{byte(MsgDebugLog)}, m.Text...), nil

	case BulkSetup:
		buf := make([]byte, 3)
		buf[0] = byte(MsgBulkSetup)
		binary.LittleEndian.PutUint16(buf[1:3], m.Size)
		return buf, nil

	case BulkData:
		buf := make([]byte, 4, 4+len(m.Data))
		buf[0] = byte(MsgBulkData)
		buf[1] = m.Size
		binary.LittleEndian.PutUint16(buf[2:4], m.Offset)
		return append(buf, m.Data...), nil

	case BulkDataAck:
		buf := make([]byte, 3)
		buf[0] = byte(MsgBulkDataAck)
		binary.LittleEndian.PutUint16(buf[1:3], m.Offset)
		return buf, nil

	case TransferAnimationSet:
		return marshalTransferSet(MsgTransferAnimationSet, m.PaletteSize, m.KeyframeCount,
			m.TrackCount, m.AnimationCount, m.AnimationSize, m.Hash), nil

	case TransferAnimationSetAck:
		return []byte{byte(MsgTransferAnimationSetAck), byte(m.Result)}, nil

	case TransferInstantAnimationSet:
		return marshalTransferSet(MsgTransferInstantAnimationSet, m.PaletteSize, m.KeyframeCount,
			m.TrackCount, m.AnimationCount, m.AnimationSize, m.Hash), nil

	case TransferInstantAnimationSetAck:
		return []byte{byte(MsgTransferInstantAnimationSetAck), byte(m.Result)}, nil

	default:
		return nil, fmt.Errorf("marshal: unsupported message %T", msg)
	}
}

// Unmarshal parses wire bytes into a message. Known structured types
// decode their fixed layout (trailing padding bytes are tolerated);
// anything else comes back as a PlainMessage of the discriminant, so
// firmware messages the host does not model are not an error.
func Unmarshal(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyBuffer
	}

	t := MessageType(data[0])
	payload := data[1:]

	switch t {
	case MsgIAmADie:
		if len(payload) < 13 {
			return nil, short(t, 13, len(payload))
		}
		return IAmADie{
			DieType:        payload[0],
			DesignAndColor: payload[1],
			// payload[2] is pad
			DataSetHash: binary.LittleEndian.Uint32(payload[3:7]),
			PixelID:     binary.LittleEndian.Uint32(payload[7:11]),
			FlashSize:   binary.LittleEndian.Uint16(payload[11:13]),
			Version:     cString(payload[13:]),
		}, nil

	case MsgRollState:
		if len(payload) < 2 {
			return nil, short(t, 2, len(payload))
		}
		return RollState{State: RollStateKind(payload[0]), FaceIndex: payload[1]}, nil

	case MsgBatteryLevel:
		if len(payload) < 9 {
			return nil, short(t, 9, len(payload))
		}
		return BatteryLevel{
			Level:    math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4])),
			Voltage:  math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8])),
			Charging: payload[8] != 0,
		}, nil

	case MsgRssi:
		if len(payload) < 2 {
			return nil, short(t, 2, len(payload))
		}
		return Rssi{Value: binary.LittleEndian.Uint16(payload[0:2])}, nil

	case MsgTemperature:
		if len(payload) < 2 {
			return nil, short(t, 2, len(payload))
		}
		return Temperature{Celsius: int16(binary.LittleEndian.Uint16(payload[0:2]))}, nil

	case MsgBlink:
		if len(payload) < 8 {
			return nil, short(t, 8, len(payload))
		}
		return Blink{
			Count:    payload[0],
			Color:    binary.LittleEndian.Uint32(payload[1:5]),
			Duration: binary.LittleEndian.Uint16(payload[5:7]),
			Fade:     payload[7],
		}, nil

	case MsgPlayAnimation:
		if len(payload) < 3 {
			return nil, short(t, 3, len(payload))
		}
		return PlayAnimation{Animation: payload[0], RemapFace: payload[1], Loop: payload[2] != 0}, nil

	case MsgPlayInstantAnimation:
		if len(payload) < 1 {
			return nil, short(t, 1, len(payload))
		}
		return PlayInstantAnimation{Animation: payload[0]}, nil

	case MsgCalibrateFace:
		if len(payload) < 1 {
			return nil, short(t, 1, len(payload))
		}
		return CalibrateFace{Face: payload[0]}, nil

	case MsgSetName:
		return SetName{Name: cString(payload)}, nil

	case MsgNotifyUser:
		if len(payload) < 3 {
			return nil, short(t, 3, len(payload))
		}
		return NotifyUser{
			Timeout: payload[0],
			OK:      payload[1] != 0,
			Cancel:  payload[2] != 0,
			Text:    cString(payload[3:]),
		}, nil

	case MsgDebugLog:
		return DebugLog{Text: cString(payload)}, nil

	case MsgBulkSetup:
		if len(payload) < 2 {
			return nil, short(t, 2, len(payload))
		}
		return BulkSetup{Size: binary.LittleEndian.Uint16(payload[0:2])}, nil

	case MsgBulkData:
		if len(payload) < 3 {
			return nil, short(t, 3, len(payload))
		}
		size := int(payload[0])
		if len(payload) < 3+size {
			return nil, short(t, 3+size, len(payload))
		}
		data := make([]byte, size)
		copy(data, payload[3:3+size])
		return BulkData{
			Size:   payload[0],
			Offset: binary.LittleEndian.Uint16(payload[1:3]),
			Data:   data,
		}, nil

	case MsgBulkDataAck:
		if len(payload) < 2 {
			return nil, short(t, 2, len(payload))
		}
		return BulkDataAck{Offset: binary.LittleEndian.Uint16(payload[0:2])}, nil

	case MsgTransferAnimationSet:
		set, err := unmarshalTransferSet(t, payload)
		if err != nil {
			return nil, err
		}
		return TransferAnimationSet(set), nil

	case MsgTransferAnimationSetAck:
		if len(payload) < 1 {
			return nil, short(t, 1, len(payload))
		}
		return TransferAnimationSetAck{Result: TransferAck(payload[0])}, nil

	case MsgTransferInstantAnimationSet:
		set, err := unmarshalTransferSet(t, payload)
		if err != nil {
			return nil, err
		}
		return TransferInstantAnimationSet(set), nil

	case MsgTransferInstantAnimationSetAck:
		if len(payload) < 1 {
			return nil, short(t, 1, len(payload))
		}
		return TransferInstantAnimationSetAck{Result: TransferAck(payload[0])}, nil

	default:
		// Type-only ordinal, or a type this host does not model.
		return PlainMessage(t), nil
	}
}

// transferSet is the shared layout of both data-set transfer openers.
type transferSet struct {
	PaletteSize    uint16
	KeyframeCount  uint16
	TrackCount     uint16
	AnimationCount uint16
	AnimationSize  uint16
	Hash           uint32
}

func marshalTransferSet(t MessageType, palette, keyframes, tracks, anims, animSize uint16, hash uint32) []byte {
	buf := make([]byte, 15)
	buf[0] = byte(t)
	binary.LittleEndian.PutUint16(buf[1:3], palette)
	binary.LittleEndian.PutUint16(buf[3:5], keyframes)
	binary.LittleEndian.PutUint16(buf[5:7], tracks)
	binary.LittleEndian.PutUint16(buf[7:9], anims)
	binary.LittleEndian.PutUint16(buf[9:11], animSize)
	binary.LittleEndian.PutUint32(buf[11:15], hash)
	return buf
}

func unmarshalTransferSet(t MessageType, payload []byte) (transferSet, error) {
	if len(payload) < 14 {
		return transferSet{}, short(t, 14, len(payload))
	}
	return transferSet{
		PaletteSize:    binary.LittleEndian.Uint16(payload[0:2]),
		KeyframeCount:  binary.LittleEndian.Uint16(payload[2:4]),
		TrackCount:     binary.LittleEndian.Uint16(payload[4:6]),
		AnimationCount: binary.LittleEndian.Uint16(payload[6:8]),
		AnimationSize:  binary.LittleEndian.Uint16(payload[8:10]),
		Hash:           binary.LittleEndian.Uint32(payload[10:14]),
	}, nil
}

// cString decodes a text field, truncating at the first NUL so
// firmware padding is ignored.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func short(t MessageType, want, got int) error {
	name, err := Name(t)
	if err != nil {
		name = fmt.Sprintf("type %d", t)
	}
	return fmt.Errorf("%s payload: need %d bytes, got %d: %w", name, want, got, ErrShortBuffer)
}
