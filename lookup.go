package kadence

import (
	"context"

	"go.uber.org/zap"
)

type lookupMethod int

const (
	lookupFindNode lookupMethod = iota
	lookupFindValue
)

// lookupResult carries either a found item (FIND_VALUE success) or the
// closest active contacts.
type lookupResult struct {
	item     *StoredItem
	contacts []Contact
}

// probeResult is one RPC outcome within a wave.
type probeResult struct {
	from     Contact
	contacts []Contact
	item     *StoredItem
	err      error
}

// lookup is the shared iterative search core. It probes waves of Alpha
// uncontacted contacts in parallel, merges replies into the shortlist in
// arrival order, and terminates when K contacts have responded, after the
// finishing trip that follows a wave bringing no closer contact, or when the
// candidate pool is exhausted. Transport failures are probe misses; the lookup itself only
// fails on context cancellation.
func (n *Node) lookup(ctx context.Context, key NodeID, method lookupMethod) (*lookupResult, error) {
	n.metrics.incLookups()
	if index := BucketIndexOf(n.id, key); index < B {
		n.stampLookup(index)
	}

	shortlist := NewContactList(key, n.router.ClosestContacts(key, n.cfg.Alpha, false))
	closest, haveClosest := shortlist.Closest()

	finishing := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		limit := n.cfg.Alpha
		if finishing {
			limit = n.cfg.BucketSize
		}
		batch := shortlist.Uncontacted()
		if len(batch) > limit {
			batch = batch[:limit]
		}
		if len(batch) == 0 {
			return resolveLookup(shortlist, n.cfg.BucketSize), nil
		}

		results := make(chan probeResult, len(batch))
		for _, target := range batch {
			shortlist.Contacted(target)
			go n.probe(ctx, method, key, target, results)
		}

		var found *StoredItem
		var foundFrom Contact
		for i := 0; i < len(batch); i++ {
			r := <-results
			if r.err != nil {
				n.logger.Debug("lookup probe missed",
					zap.String("key", key.String()),
					zap.String("target", r.from.ID.String()),
					zap.Error(r.err))
				continue
			}
			shortlist.Responded(r.from)
			if r.item != nil {
				found = r.item
				foundFrom = r.from
				continue
			}
			learned := make([]Contact, 0, len(r.contacts))
			for _, c := range r.contacts {
				if c.ID == n.id {
					continue
				}
				learned = append(learned, c)
			}
			for _, c := range shortlist.Add(learned) {
				n.updateContact(ctx, c)
			}
		}

		if found != nil {
			// Seed the region around the key: the closest contact that
			// answered without the value receives a copy.
			if target, ok := closestActiveExcept(shortlist, foundFrom.ID); ok {
				go n.storeBack(target, key, *found)
			}
			return &lookupResult{item: found}, nil
		}

		if shortlist.ActiveCount() >= n.cfg.BucketSize || finishing {
			return resolveLookup(shortlist, n.cfg.BucketSize), nil
		}

		current, ok := shortlist.Closest()
		improved := ok && (!haveClosest || current.ID.Distance(key).Less(closest.ID.Distance(key)))
		if !improved {
			finishing = true
			continue
		}
		closest, haveClosest = current, true
	}
}

func (n *Node) probe(ctx context.Context, method lookupMethod, key NodeID, target Contact, results chan<- probeResult) {
	if method == lookupFindValue {
		n.emitMessage(MethodFindValue, target)
		res, err := n.transport.FindValue(ctx, target, key.String(), n.contact)
		if err != nil {
			results <- probeResult{from: target, err: err}
			return
		}
		if res != nil && res.Item != nil {
			results <- probeResult{from: target, item: res.Item}
			return
		}
		var contacts []Contact
		if res != nil {
			contacts = res.Contacts
		}
		results <- probeResult{from: target, contacts: contacts}
		return
	}

	n.emitMessage(MethodFindNode, target)
	contacts, err := n.transport.FindNode(ctx, target, key.String(), n.contact)
	results <- probeResult{from: target, contacts: contacts, err: err}
}

// storeBack is the fire-and-forget STORE issued after a FIND_VALUE hit; the
// lookup does not wait for it.
func (n *Node) storeBack(target Contact, key NodeID, item StoredItem) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultResponseTimeout)
	defer cancel()
	n.emitMessage(MethodStore, target)
	if err := n.transport.Store(ctx, target, key.String(), item, n.contact); err != nil {
		n.logger.Debug("store-back rejected",
			zap.String("key", key.String()),
			zap.String("target", target.ID.String()),
			zap.Error(err))
	}
}

func resolveLookup(shortlist *ContactList, k int) *lookupResult {
	active := shortlist.Active()
	if len(active) > k {
		active = active[:k]
	}
	return &lookupResult{contacts: active}
}

func closestActiveExcept(shortlist *ContactList, except NodeID) (Contact, bool) {
	for _, c := range shortlist.Active() {
		if c.ID != except {
			return c, true
		}
	}
	return Contact{}, false
}
