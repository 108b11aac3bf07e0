package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	badgerGCInterval     = 10 * time.Minute
	badgerGCDiscardRatio = 0.5
)

// Badger is a persistent cache backed by badger. Entry TTLs are enforced by badger.
type Badger struct {
	db         *badger.DB
	defaultTTL time.Duration
	inMemory   bool
	closed     atomic.Bool
	stop       chan struct{}
	wg         sync.WaitGroup
}

// NewBadger opens a badger cache at path, or an in-memory one when inMemory is set.
func NewBadger(path string, inMemory bool, defaultTTL time.Duration) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, backendError(err, BackendBadger, "open")
	}

	b := &Badger{
		db:         db,
		defaultTTL: defaultTTL,
		inMemory:   inMemory,
		stop:       make(chan struct{}),
	}
	if !inMemory {
		b.wg.Add(1)
		go b.runGC()
	}
	return b, nil
}

// runGC periodically reclaims value log space.
func (b *Badger) runGC() {
	defer b.wg.Done()
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			for b.db.RunValueLogGC(badgerGCDiscardRatio) == nil {
			}
		}
	}
}

// Get implements Cache.
func (b *Badger) Get(_ context.Context, key string) ([]byte, bool, error) {
	if b.closed.Load() {
		return nil, false, ErrClosed
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendError(err, BackendBadger, "get")
	}
	return value, true, nil
}

// Set implements Cache.
func (b *Badger) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
	if err != nil {
		return backendError(err, BackendBadger, "set")
	}
	return nil
}

// Delete implements Cache.
func (b *Badger) Delete(_ context.Context, key string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return backendError(err, BackendBadger, "delete")
	}
	return nil
}

// Clear implements Cache.
func (b *Badger) Clear(_ context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if err := b.db.DropAll(); err != nil {
		return backendError(err, BackendBadger, "clear")
	}
	return nil
}

// Close implements Cache.
func (b *Badger) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	close(b.stop)
	b.wg.Wait()
	if err := b.db.Close(); err != nil {
		return backendError(err, BackendBadger, "close")
	}
	return nil
}

// Backend implements Cache.
func (b *Badger) Backend() string {
	return BackendBadger
}
