package kadence

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeTransport is a scriptable in-memory Transport. Behavior is injected
// through the *Fn fields; every call is recorded for assertions. The zero
// value answers every RPC successfully with empty results.
type fakeTransport struct {
	mu sync.Mutex

	PingFn      func(target Contact) (int64, error)
	StoreFn     func(target Contact, key string, item StoredItem) error
	FindNodeFn  func(target Contact, key string) ([]Contact, error)
	FindValueFn func(target Contact, key string) (*FindValueResult, error)

	pings      []Contact
	stores     []storeCall
	findNodes  []findCall
	findValues []findCall
}

type storeCall struct {
	Target Contact
	Key    string
	Item   StoredItem
}

type findCall struct {
	Target Contact
	Key    string
}

func (t *fakeTransport) Ping(_ context.Context, target, _ Contact) (int64, error) {
	t.mu.Lock()
	t.pings = append(t.pings, target)
	fn := t.PingFn
	t.mu.Unlock()
	if fn != nil {
		return fn(target)
	}
	return nowMillis(), nil
}

func (t *fakeTransport) Store(_ context.Context, target Contact, key string, item StoredItem, _ Contact) error {
	t.mu.Lock()
	t.stores = append(t.stores, storeCall{Target: target, Key: key, Item: item})
	fn := t.StoreFn
	t.mu.Unlock()
	if fn != nil {
		return fn(target, key, item)
	}
	return nil
}

func (t *fakeTransport) FindNode(_ context.Context, target Contact, key string, _ Contact) ([]Contact, error) {
	t.mu.Lock()
	t.findNodes = append(t.findNodes, findCall{Target: target, Key: key})
	fn := t.FindNodeFn
	t.mu.Unlock()
	if fn != nil {
		return fn(target, key)
	}
	return nil, nil
}

func (t *fakeTransport) FindValue(_ context.Context, target Contact, key string, _ Contact) (*FindValueResult, error) {
	t.mu.Lock()
	t.findValues = append(t.findValues, findCall{Target: target, Key: key})
	fn := t.FindValueFn
	t.mu.Unlock()
	if fn != nil {
		return fn(target, key)
	}
	return &FindValueResult{}, nil
}

func (t *fakeTransport) pingCalls() []Contact {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Contact, len(t.pings))
	copy(out, t.pings)
	return out
}

func (t *fakeTransport) storeCalls() []storeCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]storeCall, len(t.stores))
	copy(out, t.stores)
	return out
}

func (t *fakeTransport) findNodeCalls() []findCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]findCall, len(t.findNodes))
	copy(out, t.findNodes)
	return out
}

// fakeStorage is a map-backed Storage with injectable failures, used where
// tests need to script storage behavior or observe deletions directly.
type fakeStorage struct {
	mu      sync.Mutex
	items   map[NodeID]StoredItem
	deleted []NodeID

	GetErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{items: make(map[NodeID]StoredItem)}
}

func (s *fakeStorage) Get(_ context.Context, key NodeID) (StoredItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return StoredItem{}, s.GetErr
	}
	item, ok := s.items[key]
	if !ok {
		return StoredItem{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return item, nil
}

func (s *fakeStorage) Put(_ context.Context, key NodeID, item StoredItem) error {
	s.mu.Lock()
	s.items[key] = item
	s.mu.Unlock()
	return nil
}

func (s *fakeStorage) Delete(_ context.Context, key NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(s.items, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStorage) Scan(ctx context.Context, fn func(key NodeID, item StoredItem) error) error {
	s.mu.Lock()
	snapshot := make(map[NodeID]StoredItem, len(s.items))
	for k, v := range s.items {
		snapshot[k] = v
	}
	s.mu.Unlock()

	for k, v := range snapshot {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeStorage) deletedKeys() []NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]NodeID, len(s.deleted))
	copy(out, s.deleted)
	return out
}

// newTestNode wires a node against a fakeTransport and the given storage;
// nil storage gets a fakeStorage.
func newTestNode(t *testing.T, cfg Config, storage Storage) (*Node, *fakeTransport) {
	t.Helper()
	transport := &fakeTransport{}
	if storage == nil {
		storage = newFakeStorage()
	}
	node, err := NewNode(zaptest.NewLogger(t), cfg, transport, storage)
	require.NoError(t, err)
	return node, transport
}

func mustID(t *testing.T, hexID string) NodeID {
	t.Helper()
	id, err := ParseNodeID(hexID)
	require.NoError(t, err)
	return id
}

// distinctIDsInBucket generates count distinct fingerprints that land in
// the given bucket relative to local.
func distinctIDsInBucket(t *testing.T, local NodeID, index, count int) []NodeID {
	t.Helper()
	seen := map[NodeID]struct{}{}
	out := make([]NodeID, 0, count)
	for len(out) < count {
		id := RandomIDInBucketRange(local, index)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
