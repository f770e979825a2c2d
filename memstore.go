package kadence

import (
	"context"
	"errors"
	"fmt"

	"github.com/allegro/bigcache/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// MemoryStorage is the bundled in-memory Storage implementation, backed by
// bigcache. Entries live until the expire pass deletes them; the cache's own
// life window is a backstop aligned with the default expiration interval.
type MemoryStorage struct {
	cache *bigcache.BigCache
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() (*MemoryStorage, error) {
	cfg := bigcache.DefaultConfig(DefaultExpireInterval)
	cfg.CleanWindow = 0
	cfg.Verbose = false
	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &MemoryStorage{cache: cache}, nil
}

// Get implements Storage.
func (s *MemoryStorage) Get(_ context.Context, key NodeID) (StoredItem, error) {
	raw, err := s.cache.Get(key.String())
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return StoredItem{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return StoredItem{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	item, err := ItemFromBinary(raw)
	if err != nil {
		return StoredItem{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return item, nil
}

// Put implements Storage.
func (s *MemoryStorage) Put(_ context.Context, key NodeID, item StoredItem) error {
	raw, err := msgpack.Marshal(item)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.cache.Set(key.String(), raw); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Delete implements Storage.
func (s *MemoryStorage) Delete(_ context.Context, key NodeID) error {
	err := s.cache.Delete(key.String())
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Scan implements Storage using the cache iterator. Entries that fail to
// decode are skipped rather than aborting the pass.
func (s *MemoryStorage) Scan(ctx context.Context, fn func(key NodeID, item StoredItem) error) error {
	it := s.cache.Iterator()
	for it.SetNext() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		info, err := it.Value()
		if err != nil {
			continue
		}
		key, err := ParseNodeID(info.Key())
		if err != nil {
			continue
		}
		item, err := ItemFromBinary(info.Value())
		if err != nil {
			continue
		}
		if err := fn(key, item); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStorage) Len() int {
	return s.cache.Len()
}

// Close releases the backing cache.
func (s *MemoryStorage) Close() error {
	return s.cache.Close()
}

// interface guard
var _ Storage = (*MemoryStorage)(nil)
