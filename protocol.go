package kadence

import (
	"context"
	"fmt"
)

// Protocol is the set of inbound request handlers the transport layer
// dispatches into. Every handler first learns the sender's contact, then
// validates and serves the request; the returned error is what the
// transport relays back to the caller. Handlers may be invoked from any
// goroutine.
type Protocol struct {
	node *Node
}

// Ping acknowledges liveness with the current timestamp in milliseconds.
func (p *Protocol) Ping(ctx context.Context, sender Contact) (int64, error) {
	p.node.updateContact(ctx, sender)
	return nowMillis(), nil
}

// Store persists an item published by sender. The key must be the content
// hash of the blob; a mismatch fails with ErrKeyHashMismatch and nothing is
// written.
func (p *Protocol) Store(ctx context.Context, key string, item StoredItem, sender Contact) error {
	p.node.updateContact(ctx, sender)

	id, err := ParseNodeID(key)
	if err != nil {
		return err
	}
	if HashKey(item.Blob) != id {
		return fmt.Errorf("%w: %s", ErrKeyHashMismatch, key)
	}

	if err := p.node.storage.Put(ctx, id, item); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	p.node.metrics.incStorageOp("put")
	p.node.events.emitStoragePut(id)
	return nil
}

// FindNode returns up to K contacts closest to the key.
func (p *Protocol) FindNode(ctx context.Context, key string, sender Contact) ([]Contact, error) {
	p.node.updateContact(ctx, sender)

	id, err := ParseNodeID(key)
	if err != nil {
		return nil, err
	}
	return p.node.router.ClosestContacts(id, p.node.cfg.BucketSize, false), nil
}

// FindValue returns the stored item for the key when the local storage
// holds it, and falls back to FindNode semantics otherwise. A storage
// failure is treated as a miss.
func (p *Protocol) FindValue(ctx context.Context, key string, sender Contact) (*FindValueResult, error) {
	p.node.updateContact(ctx, sender)

	id, err := ParseNodeID(key)
	if err != nil {
		return nil, err
	}

	item, err := p.node.storage.Get(ctx, id)
	if err == nil {
		p.node.metrics.incStorageOp("get")
		p.node.events.emitStorageGet(id)
		return &FindValueResult{Item: &item}, nil
	}

	return &FindValueResult{
		Contacts: p.node.router.ClosestContacts(id, p.node.cfg.BucketSize, false),
	}, nil
}
