package kadence

import "github.com/google/uuid"

// Method names the four protocol RPCs.
type Method string

const (
	MethodPing      Method = "PING"
	MethodStore     Method = "STORE"
	MethodFindNode  Method = "FIND_NODE"
	MethodFindValue Method = "FIND_VALUE"
)

// MessageEvent describes an outbound RPC handed to the Transport.
type MessageEvent struct {
	// ID correlates the event with transport-side logs.
	ID uuid.UUID

	// Method is the RPC being dispatched.
	Method Method

	// Target is the contact the message is addressed to.
	Target Contact
}

// Events is the set of observability hooks emitted by the core. All fields
// are optional; callbacks are invoked synchronously from the emitting
// goroutine and must not block.
type Events struct {
	ContactAdded   func(NodeID)
	ContactDeleted func(NodeID)
	MessageQueued  func(MessageEvent)
	StoragePut     func(NodeID)
	StorageGet     func(NodeID)
	StorageDelete  func(NodeID)
}

func (e *Events) emitContactAdded(id NodeID) {
	if e != nil && e.ContactAdded != nil {
		e.ContactAdded(id)
	}
}

func (e *Events) emitContactDeleted(id NodeID) {
	if e != nil && e.ContactDeleted != nil {
		e.ContactDeleted(id)
	}
}

func (e *Events) emitMessageQueued(ev MessageEvent) {
	if e != nil && e.MessageQueued != nil {
		e.MessageQueued(ev)
	}
}

func (e *Events) emitStoragePut(id NodeID) {
	if e != nil && e.StoragePut != nil {
		e.StoragePut(id)
	}
}

func (e *Events) emitStorageGet(id NodeID) {
	if e != nil && e.StorageGet != nil {
		e.StorageGet(id)
	}
}

func (e *Events) emitStorageDelete(id NodeID) {
	if e != nil && e.StorageDelete != nil {
		e.StorageDelete(id)
	}
}
