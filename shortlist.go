package kadence

import "sort"

// ContactList is the shortlist of a single iterative lookup: contacts
// ordered ascending by XOR distance to the target key, partitioned into
// contacted and active subsets. Fingerprints are never duplicated; contacts
// at equal distance keep insertion order. The active set is always a subset
// of the contacted set.
type ContactList struct {
	key       NodeID
	contacts  []Contact
	present   map[NodeID]struct{}
	contacted map[NodeID]struct{}
	active    map[NodeID]struct{}
}

// NewContactList builds a shortlist for key seeded with an initial set.
func NewContactList(key NodeID, seed []Contact) *ContactList {
	l := &ContactList{
		key:       key,
		present:   make(map[NodeID]struct{}),
		contacted: make(map[NodeID]struct{}),
		active:    make(map[NodeID]struct{}),
	}
	l.Add(seed)
	return l
}

// Key returns the lookup target.
func (l *ContactList) Key() NodeID {
	return l.key
}

// Closest returns the minimum-distance contact.
func (l *ContactList) Closest() (Contact, bool) {
	if len(l.contacts) == 0 {
		return Contact{}, false
	}
	return l.contacts[0], true
}

// Farthest returns the maximum-distance contact.
func (l *ContactList) Farthest() (Contact, bool) {
	if len(l.contacts) == 0 {
		return Contact{}, false
	}
	return l.contacts[len(l.contacts)-1], true
}

// Add inserts the contacts whose fingerprints are not already present,
// restores distance order, and returns the newly inserted subset.
func (l *ContactList) Add(contacts []Contact) []Contact {
	var added []Contact
	for _, c := range contacts {
		if _, ok := l.present[c.ID]; ok {
			continue
		}
		l.present[c.ID] = struct{}{}
		l.contacts = append(l.contacts, c)
		added = append(added, c)
	}
	if len(added) > 0 {
		sort.SliceStable(l.contacts, func(i, j int) bool {
			return l.contacts[i].ID.Distance(l.key).Less(l.contacts[j].ID.Distance(l.key))
		})
	}
	return added
}

// Contacted marks the contact as probed.
func (l *ContactList) Contacted(c Contact) {
	l.contacted[c.ID] = struct{}{}
}

// Responded marks the contact as having answered; it implies Contacted.
func (l *ContactList) Responded(c Contact) {
	l.contacted[c.ID] = struct{}{}
	l.active[c.ID] = struct{}{}
}

// Active returns the responded contacts in distance order.
func (l *ContactList) Active() []Contact {
	out := make([]Contact, 0, len(l.active))
	for _, c := range l.contacts {
		if _, ok := l.active[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Uncontacted returns the not-yet-probed contacts in distance order.
func (l *ContactList) Uncontacted() []Contact {
	var out []Contact
	for _, c := range l.contacts {
		if _, ok := l.contacted[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of distinct contacts seen.
func (l *ContactList) Len() int {
	return len(l.contacts)
}

// ActiveCount returns the size of the active subset.
func (l *ContactList) ActiveCount() int {
	return len(l.active)
}
