package kadence

import "context"

// FindValueResult is the reply to a FIND_VALUE: either the stored item, or
// the closest contacts the responder knows when it does not hold the value.
type FindValueResult struct {
	Item     *StoredItem
	Contacts []Contact
}

// Transport delivers outbound RPCs. Implementations own serialization, the
// wire protocol, and per-RPC timeouts; each call completes exactly once.
// To the core, a timeout is indistinguishable from any other delivery
// failure. The from contact is the local node and travels inside the
// request so the receiver can learn the caller.
type Transport interface {
	// Ping delivers a PING and returns the responder's timestamp in
	// milliseconds since the epoch.
	Ping(ctx context.Context, target, from Contact) (int64, error)

	// Store delivers a STORE of item under the hex key.
	Store(ctx context.Context, target Contact, key string, item StoredItem, from Contact) error

	// FindNode delivers a FIND_NODE for the hex key and returns the
	// responder's closest contacts.
	FindNode(ctx context.Context, target Contact, key string, from Contact) ([]Contact, error)

	// FindValue delivers a FIND_VALUE for the hex key.
	FindValue(ctx context.Context, target Contact, key string, from Contact) (*FindValueResult, error)
}
