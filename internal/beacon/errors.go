package beacon

import "errors"

// Integrity and configuration failures. None of these are retried; callers
// match them with errors.Is.
var (
	ErrIO               = errors.New("beacon: i/o error")
	ErrMissingRecord    = errors.New("beacon: record not found")
	ErrMalformedRecord  = errors.New("beacon: malformed record")
	ErrKeyUnavailable   = errors.New("beacon: public key unavailable")
	ErrInvalidSignature = errors.New("beacon: invalid signature")
	ErrRecordMismatch   = errors.New("beacon: recomputed record does not match persisted record")
	ErrConfiguration    = errors.New("beacon: configuration error")
	ErrEmptyPayloadSet  = errors.New("beacon: no payload files to commit to")
)
