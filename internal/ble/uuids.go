package ble

import "tinygo.org/x/bluetooth"

// GATT identifiers for Pixels dice. Current firmware advertises the
// a6b9 service; first-generation dice exposed the Nordic UART service
// instead, so discovery falls back to it.
var (
	ServiceUUID, _    = bluetooth.ParseUUID("a6b90001-7a5a-43f2-a962-350c8edc9b5b")
	NotifyCharUUID, _ = bluetooth.ParseUUID("a6b90002-7a5a-43f2-a962-350c8edc9b5b")
	WriteCharUUID, _  = bluetooth.ParseUUID("a6b90003-7a5a-43f2-a962-350c8edc9b5b")

	LegacyServiceUUID, _    = bluetooth.ParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	LegacyWriteCharUUID, _  = bluetooth.ParseUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	LegacyNotifyCharUUID, _ = bluetooth.ParseUUID("6e400003-b5a3-f393-e0a9-e50e24dcca9e")
)

// NamePrefix is the advertised-name prefix shared by all Pixels dice.
const NamePrefix = "Pixel"
