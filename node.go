package kadence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// pingRecord throttles head probes: a head that responded within the ping
// cache TTL is treated as healthy without another probe.
type pingRecord struct {
	Timestamp int64
	Responded bool
}

// Node is the protocol orchestrator: it owns the routing table, drives the
// iterative lookups, and runs the maintenance loops. Outbound RPCs go
// through the Transport; values go through the Storage.
type Node struct {
	logger    *zap.Logger
	cfg       Config
	id        NodeID
	contact   Contact
	router    *RoutingTable
	transport Transport
	storage   Storage
	protocol  *Protocol
	events    Events
	metrics   *Metrics

	pingMu sync.Mutex
	pings  map[NodeID]pingRecord

	lookupMu sync.Mutex
	lookups  map[int]int64

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode builds a node from its collaborators. A nil logger falls back to
// a no-op logger; transport and storage are required. The configured
// identity is parsed when set and generated otherwise.
func NewNode(logger *zap.Logger, cfg Config, transport Transport, storage Storage) (*Node, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if transport == nil {
		return nil, errors.New("kadence: transport is required")
	}
	if storage == nil {
		return nil, errors.New("kadence: storage is required")
	}
	cfg.normalize()

	var id NodeID
	if cfg.NodeID != "" {
		parsed, err := ParseNodeID(cfg.NodeID)
		if err != nil {
			return nil, fmt.Errorf("invalid node_id: %w", err)
		}
		id = parsed
	} else {
		id = GenerateNodeID()
	}

	n := &Node{
		logger:    logger,
		cfg:       cfg,
		id:        id,
		contact:   Contact{ID: id, Address: cfg.Address},
		transport: transport,
		storage:   storage,
		pings:     make(map[NodeID]pingRecord),
		lookups:   make(map[int]int64),
	}
	n.router = NewRoutingTable(id, cfg.BucketSize, Events{
		ContactAdded: func(id NodeID) {
			n.metrics.incContactsAdded()
			n.events.emitContactAdded(id)
		},
		ContactDeleted: func(id NodeID) {
			n.metrics.incContactsDeleted()
			n.events.emitContactDeleted(id)
		},
	})
	n.protocol = &Protocol{node: n}
	return n, nil
}

// ID returns the local fingerprint.
func (n *Node) ID() NodeID {
	return n.id
}

// Contact returns the local contact announced to peers.
func (n *Node) Contact() Contact {
	return n.contact
}

// Router returns the routing table.
func (n *Node) Router() *RoutingTable {
	return n.router
}

// Protocol returns the inbound request handlers for the transport layer to
// dispatch into.
func (n *Node) Protocol() *Protocol {
	return n.protocol
}

// SetEvents installs the observability hooks. Call before Start and before
// handing the Protocol to a transport.
func (n *Node) SetEvents(e Events) {
	n.events = e
}

// SetMetrics installs the prometheus collectors. Call before Start.
func (n *Node) SetMetrics(m *Metrics) {
	n.metrics = m
}

// Ping probes a contact and returns the round-trip time.
func (n *Node) Ping(ctx context.Context, target Contact) (time.Duration, error) {
	start := time.Now()
	n.emitMessage(MethodPing, target)
	if _, err := n.transport.Ping(ctx, target, n.contact); err != nil {
		return 0, fmt.Errorf("%w: ping %s: %v", ErrTransport, target.ID, err)
	}
	return time.Since(start), nil
}

// Join bootstraps the node through a seed contact: the seed is inserted,
// the node looks up its own identity to populate the table, and every
// bucket strictly further than the closest non-empty one is refreshed.
func (n *Node) Join(ctx context.Context, seed Contact) error {
	n.router.AddContact(seed)

	found, err := n.IterativeFindNode(ctx, n.id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}
	if len(found) == 0 {
		return fmt.Errorf("%w: no contacts responded", ErrJoinFailed)
	}

	return n.Refresh(ctx, n.router.ClosestBucket()+1)
}

// IterativeFindNode resolves up to K active contacts closest to key.
func (n *Node) IterativeFindNode(ctx context.Context, key NodeID) ([]Contact, error) {
	res, err := n.lookup(ctx, key, lookupFindNode)
	if err != nil {
		return nil, err
	}
	return res.contacts, nil
}

// IterativeFindValue resolves either the stored item for key or, when no
// contacted node holds it, up to K active contacts closest to key.
func (n *Node) IterativeFindValue(ctx context.Context, key NodeID) (*StoredItem, []Contact, error) {
	res, err := n.lookup(ctx, key, lookupFindValue)
	if err != nil {
		return nil, nil, err
	}
	return res.item, res.contacts, nil
}

// IterativeStore publishes a blob under key: the K closest contacts are
// resolved and each receives a STORE. It returns the number of confirmed
// stores and fails with ErrNoStorageTargets when that number is zero.
func (n *Node) IterativeStore(ctx context.Context, key NodeID, blob []byte) (int, error) {
	return n.iterativeStore(ctx, key, StoredItem{Blob: blob})
}

// IterativeStoreItem republishes an existing item under key. The timestamp
// is refreshed and the publisher normalized to canonical hex; an empty
// publisher becomes the local identity.
func (n *Node) IterativeStoreItem(ctx context.Context, key NodeID, item StoredItem) (int, error) {
	return n.iterativeStore(ctx, key, item)
}

func (n *Node) iterativeStore(ctx context.Context, key NodeID, item StoredItem) (int, error) {
	item.Meta.Timestamp = nowMillis()
	if item.Meta.Publisher == "" {
		item.Meta.Publisher = n.id.String()
	} else if pid, err := ParseNodeID(item.Meta.Publisher); err == nil {
		item.Meta.Publisher = pid.String()
	}

	targets, err := n.IterativeFindNode(ctx, key)
	if err != nil {
		return 0, err
	}

	queue := make(chan Contact, len(targets))
	for _, c := range targets {
		queue <- c
	}
	close(queue)

	var stored atomic.Int64
	g := new(errgroup.Group)
	for i := 0; i < n.cfg.Alpha; i++ {
		g.Go(func() error {
			for target := range queue {
				n.emitMessage(MethodStore, target)
				if err := n.transport.Store(ctx, target, key.String(), item, n.contact); err != nil {
					n.logger.Debug("store rejected",
						zap.String("key", key.String()),
						zap.String("target", target.ID.String()),
						zap.Error(err))
					continue
				}
				stored.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	count := int(stored.Load())
	if count == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoStorageTargets, key)
	}
	n.metrics.addStoresConfirmed(count)
	return count, nil
}

// updateContact learns a contact with the head-probe eviction discipline:
// the bucket takes it directly when it has room, a healthy head shields a
// full bucket, and an unresponsive head is evicted in favor of the
// newcomer.
func (n *Node) updateContact(ctx context.Context, c Contact) {
	if c.ID == n.id {
		return
	}
	bucketIndex, pos := n.router.AddContact(c)
	if pos >= 0 || bucketIndex >= B {
		return
	}

	head, ok := n.router.Head(bucketIndex)
	if !ok {
		return
	}
	now := nowMillis()
	if rec, ok := n.pingState(head.ID); ok && rec.Responded &&
		now-rec.Timestamp < n.cfg.PingCacheTTL.Milliseconds() {
		return
	}

	if _, err := n.Ping(ctx, head); err == nil {
		n.setPingState(head.ID, pingRecord{Timestamp: nowMillis(), Responded: true})
		return
	}
	n.setPingState(head.ID, pingRecord{Timestamp: nowMillis(), Responded: false})
	n.router.RemoveContact(head.ID)
	n.router.AddContact(c)
}

func (n *Node) pingState(id NodeID) (pingRecord, bool) {
	n.pingMu.Lock()
	defer n.pingMu.Unlock()
	rec, ok := n.pings[id]
	return rec, ok
}

func (n *Node) setPingState(id NodeID, rec pingRecord) {
	n.pingMu.Lock()
	n.pings[id] = rec
	n.pingMu.Unlock()
}

func (n *Node) stampLookup(bucketIndex int) {
	n.lookupMu.Lock()
	n.lookups[bucketIndex] = nowMillis()
	n.lookupMu.Unlock()
}

func (n *Node) lookupTime(bucketIndex int) (int64, bool) {
	n.lookupMu.Lock()
	defer n.lookupMu.Unlock()
	t, ok := n.lookups[bucketIndex]
	return t, ok
}

func (n *Node) emitMessage(method Method, target Contact) {
	n.metrics.incMessage(method)
	n.events.emitMessageQueued(MessageEvent{
		ID:     uuid.New(),
		Method: method,
		Target: target,
	})
}

// Stats is a point-in-time snapshot of the node's view of the network.
type Stats struct {
	NodeID        string
	Contacts      int
	ClosestBucket int
}

// Stats returns a snapshot for logging and diagnostics.
func (n *Node) Stats() Stats {
	return Stats{
		NodeID:        n.id.String(),
		Contacts:      n.router.Size(),
		ClosestBucket: n.router.ClosestBucket(),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
