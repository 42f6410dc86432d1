package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mcq-trainer/internal/app"
)

// CachedBlobStore keeps recently read blobs in memory with a TTL to avoid
// repeated round trips to a remote backend. Writes go straight through and
// refresh the cached copy. Each write bumps a per-key version so a backend
// read that started earlier cannot replace the fresher entry.
type CachedBlobStore struct {
	backend app.BlobStore
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu       sync.RWMutex
	cache    map[string]cachedBlob
	versions map[string]uint64
}

type cachedBlob struct {
	data      []byte
	found     bool
	expiresAt time.Time
}

func NewCachedBlobStore(backend app.BlobStore, ttl time.Duration) *CachedBlobStore {
	return &CachedBlobStore{
		backend: backend,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedBlob),
		versions: make(map[string]uint64),
	}
}

func (c *CachedBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if entry, ok := c.lookup(key); ok {
		return entry.data, entry.found, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if entry, ok := c.lookup(key); ok {
			return entry, nil
		}

		version := c.version(key)
		data, found, err := c.backend.Get(ctx, key)
		if err != nil {
			return cachedBlob{}, err
		}
		return c.storeIfCurrent(key, version, data, found), nil
	})
	if err != nil {
		return nil, false, err
	}
	entry := result.(cachedBlob)
	return append([]byte(nil), entry.data...), entry.found, nil
}

func (c *CachedBlobStore) Set(ctx context.Context, key string, data []byte) error {
	if err := c.backend.Set(ctx, key, data); err != nil {
		c.invalidate(key)
		return err
	}
	c.replace(key, append([]byte(nil), data...), true)
	return nil
}

func (c *CachedBlobStore) Delete(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.invalidate(key)
		return err
	}
	c.replace(key, nil, false)
	return nil
}

func (c *CachedBlobStore) lookup(key string) (cachedBlob, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return cachedBlob{}, false
	}
	entry.data = append([]byte(nil), entry.data...)
	return entry, true
}

func (c *CachedBlobStore) version(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[key]
}

// storeIfCurrent caches a backend read unless a write happened since version was taken.
func (c *CachedBlobStore) storeIfCurrent(key string, version uint64, data []byte, found bool) cachedBlob {
	entry := cachedBlob{data: data, found: found, expiresAt: c.clock().Add(c.ttlWithJitter())}
	c.mu.Lock()
	if c.versions[key] == version {
		c.cache[key] = entry
	}
	c.mu.Unlock()
	return entry
}

func (c *CachedBlobStore) replace(key string, data []byte, found bool) {
	entry := cachedBlob{data: data, found: found, expiresAt: c.clock().Add(c.ttlWithJitter())}
	c.mu.Lock()
	c.versions[key]++
	c.cache[key] = entry
	c.mu.Unlock()
}

func (c *CachedBlobStore) invalidate(key string) {
	c.mu.Lock()
	c.versions[key]++
	delete(c.cache, key)
	c.mu.Unlock()
}

func (c *CachedBlobStore) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
