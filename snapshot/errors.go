package snapshot

import "errors"

var (
	// ErrInvalidMagic is returned when the stream is not a snapshot.
	ErrInvalidMagic = errors.New("snapshot: invalid magic")

	// ErrUnsupportedVersion is returned for a format version this package cannot read.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")

	// ErrChecksumMismatch is returned when the payload checksum does not match.
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")

	// ErrTruncated is returned when the stream ends early.
	ErrTruncated = errors.New("snapshot: truncated")

	// ErrMalformed is returned when the payload cannot be parsed or a value is out of range.
	ErrMalformed = errors.New("snapshot: malformed")
)
