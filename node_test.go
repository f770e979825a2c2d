package kadence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeIdentity(t *testing.T) {
	t.Parallel()

	node, _ := newTestNode(t, Config{
		NodeID:  "ea48d3f07a5241291ed0b4cab6483fa8b8fcc126",
		Address: "127.0.0.1:8080",
	}, nil)
	assert.Equal(t, "ea48d3f07a5241291ed0b4cab6483fa8b8fcc126", node.ID().String())
	assert.Equal(t, "127.0.0.1:8080", node.Contact().Address)

	generated, _ := newTestNode(t, Config{}, nil)
	assert.NotEqual(t, NodeID{}, generated.ID())
}

func TestNewNodeRejectsBadIdentity(t *testing.T) {
	t.Parallel()

	_, err := NewNode(nil, Config{NodeID: "nope"}, &fakeTransport{}, newFakeStorage())
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewNode(nil, Config{}, nil, newFakeStorage())
	assert.Error(t, err)

	_, err = NewNode(nil, Config{}, &fakeTransport{}, nil)
	assert.Error(t, err)
}

func TestNodePing(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)
	target := Contact{ID: GenerateNodeID(), Address: "127.0.0.1:4001"}

	rtt, err := node.Ping(context.Background(), target)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rtt, time.Duration(0))
	assert.Equal(t, []Contact{target}, transport.pingCalls())

	transport.PingFn = func(Contact) (int64, error) { return 0, errors.New("unreachable") }
	_, err = node.Ping(context.Background(), target)
	assert.ErrorIs(t, err, ErrTransport)
}

// A full bucket whose head fails its probe evicts the head in favor of the
// newcomer.
func TestUpdateContactEvictsDeadHead(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{
		NodeID: "aa48d3f07a5241291ed0b4cab6483fa8b8fcc128",
	}, nil)
	const bucket = 100

	for _, id := range distinctIDsInBucket(t, node.ID(), bucket, K) {
		node.Router().AddContact(Contact{ID: id, Address: "127.0.0.1:4000"})
	}
	head, ok := node.Router().Head(bucket)
	require.True(t, ok)

	transport.PingFn = func(Contact) (int64, error) { return 0, errors.New("timeout") }
	newcomer := Contact{ID: distinctIDsInBucket(t, node.ID(), bucket, 1)[0], Address: "127.0.0.1:5000"}
	node.updateContact(context.Background(), newcomer)

	_, ok = node.Router().Contact(head.ID)
	assert.False(t, ok, "dead head is evicted")
	_, ok = node.Router().Contact(newcomer.ID)
	assert.True(t, ok, "newcomer takes the slot")

	rec, ok := node.pingState(head.ID)
	require.True(t, ok)
	assert.False(t, rec.Responded)
	assert.Greater(t, rec.Timestamp, int64(0))
}

// A full bucket whose head answers its probe keeps the head and drops the
// newcomer; subsequent inserts within the ping cache TTL skip the probe.
func TestUpdateContactKeepsHealthyHead(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{
		NodeID: "aa48d3f07a5241291ed0b4cab6483fa8b8fcc128",
	}, nil)
	const bucket = 100

	for _, id := range distinctIDsInBucket(t, node.ID(), bucket, K) {
		node.Router().AddContact(Contact{ID: id, Address: "127.0.0.1:4000"})
	}
	head, ok := node.Router().Head(bucket)
	require.True(t, ok)
	sizeBefore := node.Router().Size()

	newcomer := Contact{ID: distinctIDsInBucket(t, node.ID(), bucket, 1)[0], Address: "127.0.0.1:5000"}
	node.updateContact(context.Background(), newcomer)

	_, ok = node.Router().Contact(head.ID)
	assert.True(t, ok, "healthy head is retained")
	_, ok = node.Router().Contact(newcomer.ID)
	assert.False(t, ok, "newcomer is dropped")
	assert.Equal(t, sizeBefore, node.Router().Size())

	rec, ok := node.pingState(head.ID)
	require.True(t, ok)
	assert.True(t, rec.Responded)

	// The cached probe shields the head from another ping.
	probes := len(transport.pingCalls())
	other := Contact{ID: distinctIDsInBucket(t, node.ID(), bucket, 1)[0]}
	node.updateContact(context.Background(), other)
	assert.Equal(t, probes, len(transport.pingCalls()))
}

func TestIterativeFindNodeConverges(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)
	key := GenerateNodeID()

	entry := Contact{ID: RandomIDInBucketRange(key, 140), Address: "127.0.0.1:4000"}
	middle := Contact{ID: RandomIDInBucketRange(key, 80), Address: "127.0.0.1:4001"}
	nearest := Contact{ID: RandomIDInBucketRange(key, 10), Address: "127.0.0.1:4002"}
	node.Router().AddContact(entry)

	transport.FindNodeFn = func(target Contact, _ string) ([]Contact, error) {
		switch target.ID {
		case entry.ID:
			return []Contact{middle}, nil
		case middle.ID:
			return []Contact{nearest}, nil
		default:
			return nil, nil
		}
	}

	contacts, err := node.IterativeFindNode(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, contacts, 3)
	assert.Equal(t, nearest.ID, contacts[0].ID, "results are ordered by distance to the key")
	assert.Equal(t, middle.ID, contacts[1].ID)
	assert.Equal(t, entry.ID, contacts[2].ID)
}

func TestIterativeFindNodeSwallowsTransportErrors(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)
	key := GenerateNodeID()

	good := Contact{ID: RandomIDInBucketRange(key, 50), Address: "127.0.0.1:4000"}
	dead := Contact{ID: RandomIDInBucketRange(key, 51), Address: "127.0.0.1:4001"}
	node.Router().AddContact(good)
	node.Router().AddContact(dead)

	transport.FindNodeFn = func(target Contact, _ string) ([]Contact, error) {
		if target.ID == dead.ID {
			return nil, errors.New("connection refused")
		}
		return nil, nil
	}

	contacts, err := node.IterativeFindNode(context.Background(), key)
	require.NoError(t, err, "a lookup never fails wholesale from transport errors")
	require.Len(t, contacts, 1)
	assert.Equal(t, good.ID, contacts[0].ID)
}

func TestIterativeFindNodeNeverReturnsLocal(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{Address: "127.0.0.1:9999"}, nil)

	peer := Contact{ID: GenerateNodeID(), Address: "127.0.0.1:4000"}
	node.Router().AddContact(peer)

	// Peers echo our own contact back at us.
	transport.FindNodeFn = func(Contact, string) ([]Contact, error) {
		return []Contact{node.Contact(), peer}, nil
	}

	contacts, err := node.IterativeFindNode(context.Background(), node.ID())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(contacts), K)
	for _, c := range contacts {
		assert.NotEqual(t, node.ID(), c.ID)
	}
}

func TestIterativeFindValue(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)

	blob := []byte("the payload")
	key := HashKey(blob)
	holder := Contact{ID: RandomIDInBucketRange(key, 5), Address: "127.0.0.1:4001"}
	relay := Contact{ID: RandomIDInBucketRange(key, 120), Address: "127.0.0.1:4000"}
	node.Router().AddContact(relay)

	item := StoredItem{Blob: blob, Meta: Meta{Timestamp: nowMillis(), Publisher: holder.ID.String()}}
	transport.FindValueFn = func(target Contact, _ string) (*FindValueResult, error) {
		if target.ID == holder.ID {
			return &FindValueResult{Item: &item}, nil
		}
		return &FindValueResult{Contacts: []Contact{holder}}, nil
	}

	got, contacts, err := node.IterativeFindValue(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, blob, got.Blob)
	assert.Empty(t, contacts)

	// The closest active contact that answered without the value receives
	// a fire-and-forget copy.
	require.Eventually(t, func() bool {
		for _, call := range transport.storeCalls() {
			if call.Target.ID == relay.ID && call.Key == key.String() {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestIterativeFindValueMiss(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)
	key := GenerateNodeID()

	peer := Contact{ID: RandomIDInBucketRange(key, 40), Address: "127.0.0.1:4000"}
	node.Router().AddContact(peer)
	transport.FindValueFn = func(Contact, string) (*FindValueResult, error) {
		return &FindValueResult{}, nil
	}

	item, contacts, err := node.IterativeFindValue(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, item)
	require.Len(t, contacts, 1)
	assert.Equal(t, peer.ID, contacts[0].ID)
	assert.Empty(t, transport.storeCalls(), "no store-back without a hit")
}

func TestIterativeStoreCountsConfirmations(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)

	blob := []byte("replicate me")
	key := HashKey(blob)

	targets := make([]Contact, 0, K)
	for _, id := range distinctIDsInBucket(t, key, 100, K) {
		targets = append(targets, Contact{ID: id, Address: "127.0.0.1:4000"})
	}
	node.Router().AddContact(targets[0])
	transport.FindNodeFn = func(Contact, string) ([]Contact, error) {
		return targets, nil
	}

	// One target rejects its STORE; the remaining 19 confirm.
	rejected := targets[0].ID
	transport.StoreFn = func(target Contact, _ string, _ StoredItem) error {
		if target.ID == rejected {
			return errors.New("disk full")
		}
		return nil
	}

	stored, err := node.IterativeStore(context.Background(), key, blob)
	require.NoError(t, err)
	assert.Equal(t, K-1, stored)
}

func TestIterativeStoreNoTargets(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)
	peer := Contact{ID: GenerateNodeID(), Address: "127.0.0.1:4000"}
	node.Router().AddContact(peer)
	transport.StoreFn = func(Contact, string, StoredItem) error {
		return errors.New("rejected")
	}

	blob := []byte("unwanted")
	_, err := node.IterativeStore(context.Background(), HashKey(blob), blob)
	assert.ErrorIs(t, err, ErrNoStorageTargets)
}

func TestIterativeStoreStampsMetadata(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)
	peer := Contact{ID: GenerateNodeID(), Address: "127.0.0.1:4000"}
	node.Router().AddContact(peer)

	blob := []byte("fresh publication")
	key := HashKey(blob)
	before := nowMillis()

	_, err := node.IterativeStore(context.Background(), key, blob)
	require.NoError(t, err)

	calls := transport.storeCalls()
	require.NotEmpty(t, calls)
	assert.Equal(t, node.ID().String(), calls[0].Item.Meta.Publisher)
	assert.GreaterOrEqual(t, calls[0].Item.Meta.Timestamp, before)

	// Republishing an existing item refreshes the timestamp and keeps the
	// original publisher in canonical hex.
	other := GenerateNodeID()
	item := StoredItem{Blob: blob, Meta: Meta{Timestamp: 1, Publisher: other.String()}}
	_, err = node.IterativeStoreItem(context.Background(), key, item)
	require.NoError(t, err)

	calls = transport.storeCalls()
	last := calls[len(calls)-1]
	assert.Equal(t, other.String(), last.Item.Meta.Publisher)
	assert.GreaterOrEqual(t, last.Item.Meta.Timestamp, before)
}

func TestJoin(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)

	seed := Contact{ID: GenerateNodeID(), Address: "127.0.0.1:4000"}
	peers := []Contact{
		{ID: GenerateNodeID(), Address: "127.0.0.1:4001"},
		{ID: GenerateNodeID(), Address: "127.0.0.1:4002"},
	}
	transport.FindNodeFn = func(Contact, string) ([]Contact, error) {
		return peers, nil
	}

	require.NoError(t, node.Join(context.Background(), seed))
	assert.GreaterOrEqual(t, node.Router().Size(), 3,
		"join populates the table with the seed and discovered peers")
}

func TestJoinFailsWhenSeedUnreachable(t *testing.T) {
	t.Parallel()

	node, transport := newTestNode(t, Config{}, nil)
	transport.FindNodeFn = func(Contact, string) ([]Contact, error) {
		return nil, errors.New("no route to host")
	}

	seed := Contact{ID: GenerateNodeID(), Address: "10.0.0.1:4000"}
	err := node.Join(context.Background(), seed)
	assert.ErrorIs(t, err, ErrJoinFailed)
}

func TestNodeStats(t *testing.T) {
	t.Parallel()

	node, _ := newTestNode(t, Config{}, nil)
	node.Router().AddContact(Contact{ID: GenerateNodeID()})

	stats := node.Stats()
	assert.Equal(t, node.ID().String(), stats.NodeID)
	assert.Equal(t, 1, stats.Contacts)
}
