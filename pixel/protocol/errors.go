package protocol

import "errors"

var (
	// ErrEmptyBuffer is returned when Unmarshal is given zero bytes.
	ErrEmptyBuffer = errors.New("empty message buffer")
	// ErrShortBuffer is returned when a structured message payload is
	// truncated below its fixed layout size.
	ErrShortBuffer = errors.New("message buffer too short")
	// ErrUnknownType is returned by Name for a discriminant absent
	// from the registry.
	ErrUnknownType = errors.New("unknown message type")
)
