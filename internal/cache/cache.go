package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/nhle/mailterm/internal/model"
)

var bucketBodies = []byte("bodies")

// BodyCache keeps parsed message bodies so reopening a message does not
// hit the server again. With an empty path it runs memory-only.
type BodyCache struct {
	db *bolt.DB
	mu sync.RWMutex

	// Hot entries promoted on access.
	mem map[string][]byte
}

// Open opens (or creates) the body cache at path.
func Open(path string) (*BodyCache, error) {
	if path == "" {
		return &BodyCache{mem: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBodies)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BodyCache{db: db, mem: make(map[string][]byte)}, nil
}

// Close releases the underlying database.
func (c *BodyCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the cached body for a message ID.
func (c *BodyCache) Get(messageID string) (*model.MessageBody, bool) {
	c.mu.RLock()
	data, ok := c.mem[messageID]
	c.mu.RUnlock()

	if !ok && c.db != nil {
		c.db.View(func(tx *bolt.Tx) error {
			if v := tx.Bucket(bucketBodies).Get([]byte(messageID)); v != nil {
				data = make([]byte, len(v))
				copy(data, v)
			}
			return nil
		})
		if data != nil {
			c.mu.Lock()
			c.mem[messageID] = data
			c.mu.Unlock()
		}
	}

	if data == nil {
		return nil, false
	}

	var body model.MessageBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, false
	}
	return &body, true
}

// Put stores a body under its message ID.
func (c *BodyCache) Put(messageID string, body *model.MessageBody) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling body %s: %w", messageID, err)
	}

	if c.db != nil {
		err = c.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketBodies).Put([]byte(messageID), data)
		})
		if err != nil {
			return fmt.Errorf("storing body %s: %w", messageID, err)
		}
	}

	c.mu.Lock()
	c.mem[messageID] = data
	c.mu.Unlock()
	return nil
}

// Delete drops a cached body. Missing entries are ignored.
func (c *BodyCache) Delete(messageID string) error {
	c.mu.Lock()
	delete(c.mem, messageID)
	c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBodies).Delete([]byte(messageID))
	})
}
