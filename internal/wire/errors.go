package wire

import "errors"

var (
	// ErrShortBuffer is returned when a decode function needs more bytes than
	// the buffer currently holds.
	ErrShortBuffer = errors.New("wire: short buffer")
	// ErrMalformedField is returned when a field record's declared size is
	// self-contradictory (e.g. zero, which would omit even the type tag).
	ErrMalformedField = errors.New("wire: malformed field record")
	// ErrMalformedOp is returned when an operation record's declared size
	// cannot accommodate its own name length.
	ErrMalformedOp = errors.New("wire: malformed operation record")
)
