package kadence

import "sort"

// Bucket is a capacity-bounded, insertion-ordered set of contacts. The head
// (index 0) is the probe target for the eviction discipline; touched
// contacts move to the tail. A Bucket never evicts on its own: Set reports
// a full bucket and leaves the eviction decision to the caller.
type Bucket struct {
	contacts []Contact
	capacity int
}

// NewBucket returns an empty bucket holding up to capacity contacts.
func NewBucket(capacity int) *Bucket {
	if capacity <= 0 {
		capacity = K
	}
	return &Bucket{
		contacts: make([]Contact, 0, capacity),
		capacity: capacity,
	}
}

// Set inserts or touches a contact and returns its resulting position:
// an existing contact is reinserted at the tail (its new index), a new
// contact is prepended at the head (index 0) when there is room, and -1
// signals a full bucket with no mutation.
func (b *Bucket) Set(c Contact) int {
	if i := b.IndexOf(c.ID); i >= 0 {
		b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
		b.contacts = append(b.contacts, c)
		return len(b.contacts) - 1
	}
	if len(b.contacts) < b.capacity {
		b.contacts = append([]Contact{c}, b.contacts...)
		return 0
	}
	return -1
}

// Head returns the contact at index 0, the probe target. New contacts are
// prepended, so this is the most recent insertion that has not been touched
// since.
func (b *Bucket) Head() (Contact, bool) {
	if len(b.contacts) == 0 {
		return Contact{}, false
	}
	return b.contacts[0], true
}

// Tail returns the last contact: the most recently touched one, or the
// oldest insertion when no contact has been touched.
func (b *Bucket) Tail() (Contact, bool) {
	if len(b.contacts) == 0 {
		return Contact{}, false
	}
	return b.contacts[len(b.contacts)-1], true
}

// Get returns the contact with the given fingerprint.
func (b *Bucket) Get(id NodeID) (Contact, bool) {
	if i := b.IndexOf(id); i >= 0 {
		return b.contacts[i], true
	}
	return Contact{}, false
}

// IndexOf returns the position of a fingerprint, or -1.
func (b *Bucket) IndexOf(id NodeID) int {
	for i, c := range b.contacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Remove deletes the contact with the given fingerprint.
func (b *Bucket) Remove(id NodeID) bool {
	i := b.IndexOf(id)
	if i < 0 {
		return false
	}
	b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
	return true
}

// Len returns the number of contacts held.
func (b *Bucket) Len() int {
	return len(b.contacts)
}

// Contacts returns a copy of the contents in insertion order, head first.
func (b *Bucket) Contacts() []Contact {
	out := make([]Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}

// ClosestToKey returns up to count contacts ordered ascending by XOR
// distance to key. With exclusive set, a contact whose fingerprint equals
// the key itself is omitted.
func (b *Bucket) ClosestToKey(key NodeID, count int, exclusive bool) []Contact {
	if count <= 0 {
		count = b.capacity
	}
	out := make([]Contact, 0, len(b.contacts))
	for _, c := range b.contacts {
		if exclusive && c.ID == key {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID.Distance(key).Less(out[j].ID.Distance(key))
	})
	if len(out) > count {
		out = out[:count]
	}
	return out
}
