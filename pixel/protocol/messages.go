package protocol

// RollStateKind is the motion phase reported in a RollState message.
type RollStateKind uint8

const (
	RollUnknown RollStateKind = iota
	RollOnFace
	RollHandling
	RollRolling
	RollCrooked
)

func (k RollStateKind) String() string {
	switch k {
	case RollOnFace:
		return "onFace"
	case RollHandling:
		return "handling"
	case RollRolling:
		return "rolling"
	case RollCrooked:
		return "crooked"
	default:
		return "unknown"
	}
}

// TransferAck is the result code carried by data-set transfer acks.
type TransferAck uint8

const (
	TransferAckDownload TransferAck = iota
	TransferAckUpToDate
	TransferAckNoMemory
)

// IAmADie is the identification reply to WhoAreYou.
// Wire: dieType(1) designAndColor(1) pad(1) dataSetHash(4) pixelID(4)
// flashSize(2) version(to end of buffer, NUL truncated).
type IAmADie struct {
	DieType        uint8
	DesignAndColor uint8
	DataSetHash    uint32
	PixelID        uint32
	FlashSize      uint16
	Version        string
}

func (IAmADie) Type() MessageType { return MsgIAmADie }

// RollState reports the die's motion phase and which face is up.
// Wire: state(1) faceIndex(1).
type RollState struct {
	State     RollStateKind
	FaceIndex uint8
}

func (RollState) Type() MessageType { return MsgRollState }

// Face returns the 1-based face number for display (faceIndex 5 on a
// d6 means face 6 is up).
func (m RollState) Face() int { return int(m.FaceIndex) + 1 }

// BatteryLevel reports the charge state.
// Wire: level f32 (0-1), voltage f32, charging(1).
type BatteryLevel struct {
	Level    float32
	Voltage  float32
	Charging bool
}

func (BatteryLevel) Type() MessageType { return MsgBatteryLevel }

// Rssi reports the signal strength measured by the die.
// Wire: value(2).
type Rssi struct {
	Value uint16
}

func (Rssi) Type() MessageType { return MsgRssi }

// Temperature reports the MCU temperature in degrees Celsius.
// Wire: celsius i16.
type Temperature struct {
	Celsius int16
}

func (Temperature) Type() MessageType { return MsgTemperature }

// Blink flashes the die's LEDs.
// Wire: count(1) color(4, packed 0xAARRGGBB) duration ms(2) fade(1).
type Blink struct {
	Count    uint8
	Color    uint32
	Duration uint16
	Fade     uint8
}

func (Blink) Type() MessageType { return MsgBlink }

// PlayAnimation plays a stored animation by index.
// Wire: animation(1) remapFace(1) loop(1).
type PlayAnimation struct {
	Animation uint8
	RemapFace uint8
	Loop      bool
}

func (PlayAnimation) Type() MessageType { return MsgPlayAnimation }

// PlayInstantAnimation plays an animation from the instant slot.
// Wire: animation(1).
type PlayInstantAnimation struct {
	Animation uint8
}

func (PlayInstantAnimation) Type() MessageType { return MsgPlayInstantAnimation }

// CalibrateFace starts calibration of a single face.
// Wire: face(1).
type CalibrateFace struct {
	Face uint8
}

func (CalibrateFace) Type() MessageType { return MsgCalibrateFace }

// SetName renames the die.
// Wire: name(to end of buffer, NUL truncated).
type SetName struct {
	Name string
}

func (SetName) Type() MessageType { return MsgSetName }

// NotifyUser asks the host to show a message to the user.
// Wire: timeout s(1) ok(1) cancel(1) text(to end, NUL truncated).
type NotifyUser struct {
	Timeout uint8
	OK      bool
	Cancel  bool
	Text    string
}

func (NotifyUser) Type() MessageType { return MsgNotifyUser }

// DebugLog carries a free-form log line from the firmware.
// Wire: text(to end, NUL truncated).
type DebugLog struct {
	Text string
}

func (DebugLog) Type() MessageType { return MsgDebugLog }

// BulkSetup announces the total size of an upcoming bulk transfer.
// Wire: size(2).
type BulkSetup struct {
	Size uint16
}

func (BulkSetup) Type() MessageType { return MsgBulkSetup }

// BulkData carries one chunk of a bulk transfer.
// Wire: size(1) offset(2) data(size bytes).
type BulkData struct {
	Size   uint8
	Offset uint16
	Data   []byte
}

func (BulkData) Type() MessageType { return MsgBulkData }

// BulkDataAck acknowledges one BulkData chunk by its offset.
// Wire: offset(2).
type BulkDataAck struct {
	Offset uint16
}

func (BulkDataAck) Type() MessageType { return MsgBulkDataAck }

// TransferAnimationSet opens negotiation for a permanent data-set
// upload. Wire: paletteSize(2) keyframeCount(2) trackCount(2)
// animationCount(2) animationSize(2) hash(4).
type TransferAnimationSet struct {
	PaletteSize    uint16
	KeyframeCount  uint16
	TrackCount     uint16
	AnimationCount uint16
	AnimationSize  uint16
	Hash           uint32
}

func (TransferAnimationSet) Type() MessageType { return MsgTransferAnimationSet }

// TransferAnimationSetAck answers TransferAnimationSet.
// Wire: result(1).
type TransferAnimationSetAck struct {
	Result TransferAck
}

func (TransferAnimationSetAck) Type() MessageType { return MsgTransferAnimationSetAck }

// TransferInstantAnimationSet opens negotiation for an instant
// (RAM-only) data-set upload. Same layout as TransferAnimationSet.
type TransferInstantAnimationSet struct {
	PaletteSize    uint16
	KeyframeCount  uint16
	TrackCount     uint16
	AnimationCount uint16
	AnimationSize  uint16
	Hash           uint32
}

func (TransferInstantAnimationSet) Type() MessageType { return MsgTransferInstantAnimationSet }

// TransferInstantAnimationSetAck answers TransferInstantAnimationSet.
// Wire: result(1).
type TransferInstantAnimationSetAck struct {
	Result TransferAck
}

func (TransferInstantAnimationSetAck) Type() MessageType {
	return MsgTransferInstantAnimationSetAck
}
