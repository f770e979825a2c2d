package kadence

import "context"

// Storage is the value persistence contract. The engine of record is an
// external collaborator; the core only reads and writes StoredItem records
// and drives maintenance scans. Get returns ErrNotFound for a missing key.
type Storage interface {
	Get(ctx context.Context, key NodeID) (StoredItem, error)
	Put(ctx context.Context, key NodeID, item StoredItem) error
	Delete(ctx context.Context, key NodeID) error

	// Scan streams every stored item through fn, one at a time; the
	// producer advances only after fn returns, which gives the replicate
	// and expire passes per-item backpressure. A non-nil error from fn
	// aborts the scan and is returned unchanged.
	Scan(ctx context.Context, fn func(key NodeID, item StoredItem) error) error
}
