package kadence

import "errors"

// Sentinel errors surfaced by the protocol core. Callers classify failures
// with errors.Is; wrapped variants carry call-site context.
var (
	// ErrInvalidKey reports a key that is not a 160-bit hex value.
	ErrInvalidKey = errors.New("invalid 160-bit hex key")

	// ErrKeyHashMismatch reports a STORE whose key does not equal the
	// content hash of the blob.
	ErrKeyHashMismatch = errors.New("key does not match blob hash")

	// ErrTransport reports a failed outbound RPC. Within a lookup it is
	// treated as a probe miss and never retried.
	ErrTransport = errors.New("transport failure")

	// ErrNoStorageTargets reports an iterative store that achieved zero
	// confirmed stores.
	ErrNoStorageTargets = errors.New("no storage targets confirmed")

	// ErrJoinFailed reports a failed network join.
	ErrJoinFailed = errors.New("join failed")

	// ErrNotFound reports a missing value in a Storage implementation.
	ErrNotFound = errors.New("not found")

	// ErrStorage reports a Storage failure other than a missing value.
	ErrStorage = errors.New("storage failure")
)
