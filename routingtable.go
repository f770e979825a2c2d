package kadence

import (
	"sort"
	"sync"
)

// RoutingTable maps the identifier space into B buckets keyed by the
// position of the most significant bit differing from the local identity.
// The local fingerprint itself is never stored. Mutations are serialized
// behind a write lock; closest-contact scans take the read side.
type RoutingTable struct {
	mu      sync.RWMutex
	local   NodeID
	buckets [B]*Bucket
	events  Events
}

// NewRoutingTable returns a table of B empty buckets with the given
// capacity. The events hooks fire on successful insertions and deletions.
func NewRoutingTable(local NodeID, bucketSize int, events Events) *RoutingTable {
	rt := &RoutingTable{local: local, events: events}
	for i := range rt.buckets {
		rt.buckets[i] = NewBucket(bucketSize)
	}
	return rt
}

// Local returns the identity the table is keyed against.
func (rt *RoutingTable) Local() NodeID {
	return rt.local
}

// AddContact routes the contact to its bucket and applies Bucket.Set. It
// returns the bucket index and the contact's resulting position; a position
// of -1 is the bucket-full signal to the caller, which owns the head-probe
// eviction decision. The local identity is rejected with the sentinel index
// B. ContactAdded fires on any successful set.
func (rt *RoutingTable) AddContact(c Contact) (int, int) {
	index := BucketIndexOf(rt.local, c.ID)
	if index >= B {
		return B, -1
	}

	rt.mu.Lock()
	pos := rt.buckets[index].Set(c)
	rt.mu.Unlock()

	if pos >= 0 {
		rt.events.emitContactAdded(c.ID)
	}
	return index, pos
}

// RemoveContact deletes the contact from its bucket. ContactDeleted fires
// when something was actually removed.
func (rt *RoutingTable) RemoveContact(id NodeID) bool {
	index := BucketIndexOf(rt.local, id)
	if index >= B {
		return false
	}

	rt.mu.Lock()
	removed := rt.buckets[index].Remove(id)
	rt.mu.Unlock()

	if removed {
		rt.events.emitContactDeleted(id)
	}
	return removed
}

// Contact returns the stored contact with the given fingerprint.
func (rt *RoutingTable) Contact(id NodeID) (Contact, bool) {
	index := BucketIndexOf(rt.local, id)
	if index >= B {
		return Contact{}, false
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.buckets[index].Get(id)
}

// IndexOf returns the contact's position within its bucket, or -1.
func (rt *RoutingTable) IndexOf(id NodeID) int {
	index := BucketIndexOf(rt.local, id)
	if index >= B {
		return -1
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.buckets[index].IndexOf(id)
}

// Head returns the probe target of the given bucket.
func (rt *RoutingTable) Head(bucketIndex int) (Contact, bool) {
	if bucketIndex < 0 || bucketIndex >= B {
		return Contact{}, false
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.buckets[bucketIndex].Head()
}

// BucketLen returns the number of contacts in the given bucket.
func (rt *RoutingTable) BucketLen(bucketIndex int) int {
	if bucketIndex < 0 || bucketIndex >= B {
		return 0
	}
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.buckets[bucketIndex].Len()
}

// Size returns the total number of contacts across all buckets.
func (rt *RoutingTable) Size() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	total := 0
	for _, b := range rt.buckets {
		total += b.Len()
	}
	return total
}

// Length returns the number of buckets.
func (rt *RoutingTable) Length() int {
	return B
}

// ClosestBucket returns the lowest-index non-empty bucket, or B-1 when the
// table is empty.
func (rt *RoutingTable) ClosestBucket() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	for i, b := range rt.buckets {
		if b.Len() > 0 {
			return i
		}
	}
	return B - 1
}

// ClosestContacts returns up to n contacts ordered ascending by XOR
// distance to key. The target bucket is scanned first, then the walk moves
// outward through descending and then ascending indices until n candidates
// are gathered or the table is exhausted. With exclusive set, a contact
// whose fingerprint equals the key is omitted.
func (rt *RoutingTable) ClosestContacts(key NodeID, n int, exclusive bool) []Contact {
	if n <= 0 {
		n = K
	}
	index := BucketIndexOf(rt.local, key)
	if index >= B {
		index = B - 1
	}

	rt.mu.RLock()
	candidates := make([]Contact, 0, n)
	gather := func(bucketIndex int) {
		for _, c := range rt.buckets[bucketIndex].contacts {
			if exclusive && c.ID == key {
				continue
			}
			candidates = append(candidates, c)
		}
	}

	gather(index)
	for i := index - 1; i >= 0 && len(candidates) < n; i-- {
		gather(i)
	}
	for i := index + 1; i < B && len(candidates) < n; i++ {
		gather(i)
	}
	rt.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ID.Distance(key).Less(candidates[j].ID.Distance(key))
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
