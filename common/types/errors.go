package types

import "errors"

// Failure classes shared by all components. Component errors wrap one of them so callers
// can decide between retrying, disconnecting, discarding and aborting.
var (
	ErrTransientNetwork  = errors.New("transient network error")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrStaleWork         = errors.New("stale work")
	ErrCryptoValidation  = errors.New("crypto validation failure")
	ErrConfiguration     = errors.New("configuration error")
	ErrDiskIO            = errors.New("disk io error")
)
