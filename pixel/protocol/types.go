// Package protocol implements the Pixels die wire protocol: typed
// messages and their binary encoding.
//
// Every message starts with a single discriminant byte identifying its
// type. Messages with no payload are carried by the discriminant alone;
// the rest have fixed little-endian layouts that must match the
// firmware byte for byte.
package protocol

import "fmt"

// MessageType is the wire discriminant, always the first byte of a
// message. Values are assigned by firmware ordinal and are frozen.
type MessageType uint8

const (
	MsgNone MessageType = iota
	MsgWhoAreYou
	MsgIAmADie
	MsgRollState
	MsgTelemetry
	MsgBulkSetup
	MsgBulkSetupAck
	MsgBulkData
	MsgBulkDataAck
	MsgTransferAnimationSet
	MsgTransferAnimationSetAck
	MsgTransferAnimationSetFinished
	MsgTransferSettings
	MsgTransferSettingsAck
	MsgTransferSettingsFinished
	MsgTransferTestAnimationSet
	MsgTransferTestAnimationSetAck
	MsgTransferTestAnimationSetFinished
	MsgDebugLog
	MsgPlayAnimation
	MsgPlayAnimationEvent
	MsgStopAnimation
	MsgPlaySound
	MsgRequestRollState
	MsgRequestAnimationSet
	MsgRequestSettings
	MsgRequestTelemetry
	MsgProgramDefaultAnimationSet
	MsgProgramDefaultAnimationSetFinished
	MsgBlink
	MsgBlinkAck
	MsgRequestDefaultAnimationSetColor
	MsgDefaultAnimationSetColor
	MsgRequestBatteryLevel
	MsgBatteryLevel
	MsgRequestRssi
	MsgRssi
	MsgCalibrate
	MsgCalibrateFace
	MsgNotifyUser
	MsgNotifyUserAck
	MsgTestHardware
	MsgTestLEDLoopback
	MsgLEDLoopback
	MsgSetTopLevelState
	MsgProgramDefaultParameters
	MsgProgramDefaultParametersFinished
	MsgSetDesignAndColor
	MsgSetDesignAndColorAck
	MsgSetCurrentBehavior
	MsgSetCurrentBehaviorAck
	MsgSetName
	MsgSetNameAck
	MsgSleep
	MsgExitValidation
	MsgTransferInstantAnimationSet
	MsgTransferInstantAnimationSetAck
	MsgTransferInstantAnimationSetFinished
	MsgPlayInstantAnimation
	MsgStopAllAnimations
	MsgRequestTemperature
	MsgTemperature
)

var messageNames = map[MessageType]string{
	MsgNone:                                "None",
	MsgWhoAreYou:                           "WhoAreYou",
	MsgIAmADie:                             "IAmADie",
	MsgRollState:                           "RollState",
	MsgTelemetry:                           "Telemetry",
	MsgBulkSetup:                           "BulkSetup",
	MsgBulkSetupAck:                        "BulkSetupAck",
	MsgBulkData:                            "BulkData",
	MsgBulkDataAck:                         "BulkDataAck",
	MsgTransferAnimationSet:                "TransferAnimationSet",
	MsgTransferAnimationSetAck:             "TransferAnimationSetAck",
	MsgTransferAnimationSetFinished:        "TransferAnimationSetFinished",
	MsgTransferSettings:                    "TransferSettings",
	MsgTransferSettingsAck:                 "TransferSettingsAck",
	MsgTransferSettingsFinished:            "TransferSettingsFinished",
	MsgTransferTestAnimationSet:            "TransferTestAnimationSet",
	MsgTransferTestAnimationSetAck:         "TransferTestAnimationSetAck",
	MsgTransferTestAnimationSetFinished:    "TransferTestAnimationSetFinished",
	MsgDebugLog:                            "DebugLog",
	MsgPlayAnimation:                       "PlayAnimation",
	MsgPlayAnimationEvent:                  "PlayAnimationEvent",
	MsgStopAnimation:                       "StopAnimation",
	MsgPlaySound:                           "PlaySound",
	MsgRequestRollState:                    "RequestRollState",
	MsgRequestAnimationSet:                 "RequestAnimationSet",
	MsgRequestSettings:                     "RequestSettings",
	MsgRequestTelemetry:                    "RequestTelemetry",
	MsgProgramDefaultAnimationSet:          "ProgramDefaultAnimationSet",
	MsgProgramDefaultAnimationSetFinished:  "ProgramDefaultAnimationSetFinished",
	MsgBlink:                               "Blink",
	MsgBlinkAck:                            "BlinkAck",
	MsgRequestDefaultAnimationSetColor:     "RequestDefaultAnimationSetColor",
	MsgDefaultAnimationSetColor:            "DefaultAnimationSetColor",
	MsgRequestBatteryLevel:                 "RequestBatteryLevel",
	MsgBatteryLevel:                        "BatteryLevel",
	MsgRequestRssi:                         "RequestRssi",
	MsgRssi:                                "Rssi",
	MsgCalibrate:                           "Calibrate",
	MsgCalibrateFace:                       "CalibrateFace",
	MsgNotifyUser:                          "NotifyUser",
	MsgNotifyUserAck:                       "NotifyUserAck",
	MsgTestHardware:                        "TestHardware",
	MsgTestLEDLoopback:                     "TestLEDLoopback",
	MsgLEDLoopback:                         "LEDLoopback",
	MsgSetTopLevelState:                    "SetTopLevelState",
	MsgProgramDefaultParameters:            "ProgramDefaultParameters",
	MsgProgramDefaultParametersFinished:    "ProgramDefaultParametersFinished",
	MsgSetDesignAndColor:                   "SetDesignAndColor",
	MsgSetDesignAndColorAck:                "SetDesignAndColorAck",
	MsgSetCurrentBehavior:                  "SetCurrentBehavior",
	MsgSetCurrentBehaviorAck:               "SetCurrentBehaviorAck",
	MsgSetName:                             "SetName",
	MsgSetNameAck:                          "SetNameAck",
	MsgSleep:                               "Sleep",
	MsgExitValidation:                      "ExitValidation",
	MsgTransferInstantAnimationSet:         "TransferInstantAnimationSet",
	MsgTransferInstantAnimationSetAck:      "TransferInstantAnimationSetAck",
	MsgTransferInstantAnimationSetFinished: "TransferInstantAnimationSetFinished",
	MsgPlayInstantAnimation:                "PlayInstantAnimation",
	MsgStopAllAnimations:                   "StopAllAnimations",
	MsgRequestTemperature:                  "RequestTemperature",
	MsgTemperature:                         "Temperature",
}

// Name returns the registry name for a message type. A type absent
// from the registry means the host and firmware disagree on the
// protocol version; that is reported as an error rather than guessed
// around.
func Name(t MessageType) (string, error) {
	name, ok := messageNames[t]
	if !ok {
		return "", fmt.Errorf("message type %d not in registry: %w", t, ErrUnknownType)
	}
	return name, nil
}

// IsKnown reports whether t is a registered message type.
func IsKnown(t MessageType) bool {
	_, ok := messageNames[t]
	return ok
}

// Message is any value that can travel on the wire. The concrete type
// determines the layout; see Marshal.
type Message interface {
	Type() MessageType
}

// PlainMessage is a message that carries no payload beyond its
// discriminant. Unknown discriminants decode to this as well, since
// newer firmware may emit types the host does not model yet.
type PlainMessage MessageType

func (m PlainMessage) Type() MessageType { return MessageType(m) }
