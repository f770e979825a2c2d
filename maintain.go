package kadence

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Refresh walks the buckets at or beyond startIndex in random order and,
// for every bucket whose last lookup is older than the refresh interval,
// looks up a random key in that bucket's distance range. The pass stops
// early after MaxUnimprovedRefreshes consecutive lookups that discovered no
// new fingerprints.
func (n *Node) Refresh(ctx context.Context, startIndex int) error {
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= B {
		return nil
	}

	indices := make([]int, 0, B-startIndex)
	for i := startIndex; i < B; i++ {
		indices = append(indices, i)
	}
	rand.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	refreshMs := n.cfg.RefreshInterval.Milliseconds()
	discovered := make(map[NodeID]struct{})
	unimproved := 0

	for _, index := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}
		if unimproved >= n.cfg.MaxUnimprovedRefreshes {
			n.logger.Debug("refresh converged", zap.Int("unimproved", unimproved))
			break
		}
		if last, ok := n.lookupTime(index); ok && nowMillis()-last < refreshMs {
			continue
		}

		target := RandomIDInBucketRange(n.id, index)
		contacts, err := n.IterativeFindNode(ctx, target)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			n.logger.Warn("refresh lookup failed", zap.Int("bucket", index), zap.Error(err))
			continue
		}

		improved := false
		for _, c := range contacts {
			if _, seen := discovered[c.ID]; !seen {
				discovered[c.ID] = struct{}{}
				improved = true
			}
			n.updateContact(ctx, c)
		}
		if improved {
			unimproved = 0
		} else {
			unimproved++
		}
	}
	return nil
}

// Replicate streams the stored items and republishes the ones that are
// due: the node's own publications after the republish interval, everything
// else after the replicate interval. Individual store failures are logged
// and do not abort the pass.
func (n *Node) Replicate(ctx context.Context) error {
	republishMs := n.cfg.RepublishInterval.Milliseconds()
	replicateMs := n.cfg.ReplicateInterval.Milliseconds()
	self := n.id.String()

	err := n.storage.Scan(ctx, func(key NodeID, item StoredItem) error {
		now := nowMillis()
		mine := item.Meta.Publisher == self
		switch {
		case mine && item.Meta.Timestamp+republishMs <= now:
		case !mine && item.Meta.Timestamp+replicateMs <= now:
		default:
			return nil
		}
		if _, err := n.IterativeStoreItem(ctx, key, item); err != nil {
			n.logger.Warn("replication failed",
				zap.String("key", key.String()),
				zap.Error(err))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Expire streams the stored items and deletes every one older than the
// expiration interval.
func (n *Node) Expire(ctx context.Context) error {
	expireMs := n.cfg.ExpireInterval.Milliseconds()

	var expired []NodeID
	err := n.storage.Scan(ctx, func(key NodeID, item StoredItem) error {
		if item.Meta.Timestamp+expireMs <= nowMillis() {
			expired = append(expired, key)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	for _, key := range expired {
		if err := n.storage.Delete(ctx, key); err != nil {
			n.logger.Warn("expiration delete failed",
				zap.String("key", key.String()),
				zap.Error(err))
			continue
		}
		n.metrics.incStorageOp("delete")
		n.events.emitStorageDelete(key)
	}
	return nil
}

// Start launches the maintenance loops: a refresh pass every refresh
// interval and a replicate pass followed by an expire pass every replicate
// interval. Every firing is delayed by an extra uniform random jitter to
// keep a fleet of nodes from converging on the same schedule; timers re-arm
// edge-triggered after each pass completes.
func (n *Node) Start(ctx context.Context) error {
	n.runMu.Lock()
	defer n.runMu.Unlock()
	if n.cancel != nil {
		return errors.New("kadence: already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.wg.Add(2)
	go n.refreshLoop(runCtx)
	go n.replicateLoop(runCtx)

	n.logger.Info("node started",
		zap.String("node_id", n.id.String()),
		zap.Duration("refresh_interval", n.cfg.RefreshInterval),
		zap.Duration("replicate_interval", n.cfg.ReplicateInterval))
	return nil
}

// Stop cancels the maintenance loops and waits for them to drain.
func (n *Node) Stop() {
	n.runMu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	n.wg.Wait()
	n.logger.Info("node stopped", zap.String("node_id", n.id.String()))
}

func (n *Node) refreshLoop(ctx context.Context) {
	defer n.wg.Done()
	for {
		timer := time.NewTimer(n.cfg.RefreshInterval + n.jitter())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := n.Refresh(ctx, 0); err != nil && ctx.Err() == nil {
			n.logger.Warn("refresh pass failed", zap.Error(err))
		}
	}
}

func (n *Node) replicateLoop(ctx context.Context) {
	defer n.wg.Done()
	for {
		timer := time.NewTimer(n.cfg.ReplicateInterval + n.jitter())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := n.Replicate(ctx); err != nil && ctx.Err() == nil {
			n.logger.Warn("replicate pass failed", zap.Error(err))
		}
		if err := n.Expire(ctx); err != nil && ctx.Err() == nil {
			n.logger.Warn("expire pass failed", zap.Error(err))
		}
	}
}

func (n *Node) jitter() time.Duration {
	if n.cfg.MaxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(n.cfg.MaxJitter)))
}
