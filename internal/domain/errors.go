package domain

import "errors"

var (
	// ErrInvalidHex indicates the raw payload is not a hex byte string.
	ErrInvalidHex = errors.New("payload is not valid hex")

	// ErrPayloadTooShort indicates the raw payload has fewer than MinPacketLen bytes.
	ErrPayloadTooShort = errors.New("payload too short")

	// ErrMissingTimestamp indicates the capture envelope has no usable "time" field.
	ErrMissingTimestamp = errors.New("capture has no timestamp")

	// ErrUnknownPolicy indicates a retention policy name outside never/all/any.
	ErrUnknownPolicy = errors.New("unknown retention policy")
)
