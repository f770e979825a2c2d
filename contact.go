package kadence

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Contact binds an opaque transport address to a fingerprint. The address is
// whatever the Transport implementation understands (host:port, onion
// address, ...); the core only requires that it round-trips through the
// binary codec. A contact's fingerprint is stable; its address may be
// rewritten in place when a node moves.
type Contact struct {
	ID      NodeID
	Address string
}

// contactWire is the serialized shape; the fingerprint travels in hex so the
// encoding is independent of the in-memory array representation.
type contactWire struct {
	ID      string `msgpack:"id"`
	Address string `msgpack:"address"`
}

// ToBinary encodes the contact with msgpack.
func (c Contact) ToBinary() ([]byte, error) {
	return msgpack.Marshal(contactWire{ID: c.ID.String(), Address: c.Address})
}

// ContactFromBinary decodes a contact previously encoded with ToBinary.
func ContactFromBinary(raw []byte) (Contact, error) {
	var w contactWire
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return Contact{}, fmt.Errorf("decoding contact: %w", err)
	}
	id, err := ParseNodeID(w.ID)
	if err != nil {
		return Contact{}, err
	}
	return Contact{ID: id, Address: w.Address}, nil
}

// Meta carries the replication metadata of a stored value.
type Meta struct {
	// Timestamp is the publication time in milliseconds since the epoch.
	Timestamp int64 `msgpack:"timestamp"`

	// Publisher is the hex fingerprint of the publishing node.
	Publisher string `msgpack:"publisher"`
}

// StoredItem is the unit of value storage. The core treats the blob as
// opaque and only inspects Meta for the replicate/expire decisions.
type StoredItem struct {
	Blob []byte `msgpack:"blob"`
	Meta Meta   `msgpack:"meta"`
}

// ToBinary encodes the item with msgpack.
func (i StoredItem) ToBinary() ([]byte, error) {
	return msgpack.Marshal(i)
}

// ItemFromBinary decodes an item previously encoded with ToBinary.
func ItemFromBinary(raw []byte) (StoredItem, error) {
	var i StoredItem
	if err := msgpack.Unmarshal(raw, &i); err != nil {
		return StoredItem{}, fmt.Errorf("decoding stored item: %w", err)
	}
	return i, nil
}
