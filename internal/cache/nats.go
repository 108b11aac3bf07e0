package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const natsConnectTimeout = 5 * time.Second

// natsEnvelope carries the value with its absolute expiry. The bucket has no
// bucket-wide TTL so entries with different lifetimes can share it.
type natsEnvelope struct {
	ExpiresAt int64  `json:"e"`
	Value     []byte `json:"v"`
}

// NATS is a distributed cache stored in a JetStream key-value bucket.
type NATS struct {
	nc         *nats.Conn
	kv         jetstream.KeyValue
	bucket     string
	defaultTTL time.Duration
	closed     atomic.Bool
	now        func() time.Time
}

// NewNATS connects to url and opens (or creates) the key-value bucket.
func NewNATS(ctx context.Context, url, bucket string, defaultTTL time.Duration) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("parkpulse-cache"),
		nats.Timeout(natsConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, backendError(err, BackendNATS, "connect")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, backendError(err, BackendNATS, "jetstream")
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "ParkPulse result cache",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, backendError(err, BackendNATS, "create_bucket")
	}

	return &NATS{
		nc:         nc,
		kv:         kv,
		bucket:     bucket,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// encodeKey maps arbitrary cache keys onto the NATS key alphabet.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Get implements Cache. Expired entries are purged lazily.
func (n *NATS) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if n.closed.Load() {
		return nil, false, ErrClosed
	}
	entry, err := n.kv.Get(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, backendError(err, BackendNATS, "get")
	}

	var env natsEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		_ = n.kv.Purge(ctx, encodeKey(key))
		return nil, false, nil
	}
	if n.now().UnixNano() >= env.ExpiresAt {
		_ = n.kv.Purge(ctx, encodeKey(key))
		return nil, false, nil
	}
	return env.Value, true, nil
}

// Set implements Cache.
func (n *NATS) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if n.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		ttl = n.defaultTTL
	}
	data, err := json.Marshal(natsEnvelope{
		ExpiresAt: n.now().Add(ttl).UnixNano(),
		Value:     value,
	})
	if err != nil {
		return backendError(err, BackendNATS, "marshal")
	}
	if _, err := n.kv.Put(ctx, encodeKey(key), data); err != nil {
		return backendError(err, BackendNATS, "put")
	}
	return nil
}

// Delete implements Cache.
func (n *NATS) Delete(ctx context.Context, key string) error {
	if n.closed.Load() {
		return ErrClosed
	}
	if err := n.kv.Purge(ctx, encodeKey(key)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return backendError(err, BackendNATS, "delete")
	}
	return nil
}

// Clear implements Cache.
func (n *NATS) Clear(ctx context.Context) error {
	if n.closed.Load() {
		return ErrClosed
	}
	lister, err := n.kv.ListKeys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil
	}
	if err != nil {
		return backendError(err, BackendNATS, "list_keys")
	}
	defer func() { _ = lister.Stop() }()

	for k := range lister.Keys() {
		if err := n.kv.Purge(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return backendError(err, BackendNATS, "clear")
		}
	}
	return nil
}

// Close implements Cache.
func (n *NATS) Close() error {
	if n.closed.Swap(true) {
		return nil
	}
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		return backendError(err, BackendNATS, "close")
	}
	return nil
}

// Backend implements Cache.
func (n *NATS) Backend() string {
	return BackendNATS
}
