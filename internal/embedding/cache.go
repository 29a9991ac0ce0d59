// VectorCache is the persistent text → vector cache interface. Chunk texts
// recur across reconciliation passes (most files do not change between two
// passes) and query texts repeat across chat sessions, so a cache hit saves
// a full round trip to the embeddings endpoint.
//
// Two backing stores are provided:
//   - memoryCache: in-memory only, used in tests and when no path is configured.
//   - bboltCache: embedded key-value store (bbolt), survives restarts.
//
// Both are wrapped in an S3-FIFO eviction layer (s3fifo_cache.go) that bounds
// the resident set.
package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"llm-privacy-gateway/internal/logger"
)

// VectorCache stores text → embedding vector mappings. Implementations must
// be safe for concurrent use.
type VectorCache interface {
	// Get returns the cached vector for text, if present.
	Get(text string) (vector []float32, ok bool)

	// Set stores text → vector. Overwrites any existing entry silently.
	Set(text string, vector []float32)

	// Delete removes text from the cache. A no-op for unknown keys.
	Delete(text string)

	// Close releases any resources held by the cache (e.g. file handles).
	Close() error
}

// defaultCacheCapacity bounds the in-memory hot set of the eviction layer.
const defaultCacheCapacity = 4096

// NewCache returns a bounded vector cache. With a non-empty path the backing
// store is a bbolt database at that path; otherwise entries live in memory
// only and are lost on restart.
func NewCache(path string) (VectorCache, error) {
	var backing VectorCache
	if path == "" {
		backing = newMemoryCache()
	} else {
		var err error
		backing, err = newBboltCache(path)
		if err != nil {
			return nil, err
		}
	}
	return newS3FIFOCache(backing, defaultCacheCapacity), nil
}

// --- memoryCache ---------------------------------------------------------

type memoryCache struct {
	mu    sync.RWMutex
	store map[string][]float32
}

func newMemoryCache() VectorCache {
	return &memoryCache{store: make(map[string][]float32)}
}

func (c *memoryCache) Get(text string) ([]float32, bool) {
	c.mu.RLock()
	v, ok := c.store[text]
	c.mu.RUnlock()
	return v, ok
}

func (c *memoryCache) Set(text string, vector []float32) {
	c.mu.Lock()
	c.store[text] = vector
	c.mu.Unlock()
}

func (c *memoryCache) Delete(text string) {
	c.mu.Lock()
	delete(c.store, text)
	c.mu.Unlock()
}

func (c *memoryCache) Close() error { return nil }

// --- bboltCache ----------------------------------------------------------

const bboltBucket = "embedding_cache"

// bboltCache is a VectorCache backed by an embedded bbolt database. Vectors
// are stored as little-endian float32 sequences.
type bboltCache struct {
	db  *bolt.DB
	log zerolog.Logger
}

// newBboltCache opens (or creates) the bbolt database at path and ensures
// the bucket exists.
func newBboltCache(path string) (VectorCache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bbolt cache %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bboltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create bbolt bucket: %w", err)
	}

	log := logger.Component("embedding")
	log.Info().Str("path", path).Msg("persistent embedding cache opened")
	return &bboltCache{db: db, log: log}, nil
}

func (c *bboltCache) Get(text string) ([]float32, bool) {
	var vector []float32
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(text)); v != nil {
			vector = decodeVector(v)
		}
		return nil
	})
	if err != nil {
		c.log.Error().Err(err).Msg("bbolt get failed")
		return nil, false
	}
	return vector, vector != nil
}

func (c *bboltCache) Set(text string, vector []float32) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", bboltBucket)
		}
		return b.Put([]byte(text), encodeVector(vector))
	}); err != nil {
		c.log.Error().Err(err).Msg("bbolt set failed")
	}
}

func (c *bboltCache) Delete(text string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(text))
	}); err != nil {
		c.log.Error().Err(err).Msg("bbolt delete failed")
	}
}

func (c *bboltCache) Close() error {
	return c.db.Close()
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vector
}
