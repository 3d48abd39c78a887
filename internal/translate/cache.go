package translate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketTerms   = []byte("terms")
	bucketReverse = []byte("reverse")
)

// Entry is one cached translation.
type Entry struct {
	Term        string    `json:"term"`
	Translation string    `json:"translation"`
	Engine      string    `json:"engine"`
	Mode        string    `json:"mode"`
	CachedAt    time.Time `json:"cached_at"`
}

// Cache is the persistent translation cache, partitioned by target language.
type Cache struct {
	db     *bolt.DB
	target string
}

// OpenCache opens (or creates) the bbolt cache at path.
func OpenCache(path, target string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("translate: ensure cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("translate: open cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTerms, bucketReverse} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("translate: create buckets: %w", err)
	}
	return &Cache{db: db, target: strings.ToLower(strings.TrimSpace(target))}, nil
}

// Close releases the database file.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) key(s string) []byte {
	return []byte(c.target + "\x00" + strings.TrimSpace(s))
}

// Get returns the cached entry for term.
func (c *Cache) Get(term string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketTerms).Get(c.key(term))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &entry)
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("translate: read cache: %w", err)
	}
	return entry, found, nil
}

// Put stores entry and its reverse mapping.
func (c *Cache) Put(entry Entry) error {
	if strings.TrimSpace(entry.Term) == "" || strings.TrimSpace(entry.Translation) == "" {
		return nil
	}
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("translate: encode entry: %w", err)
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketTerms).Put(c.key(entry.Term), payload); err != nil {
			return err
		}
		return tx.Bucket(bucketReverse).Put(c.key(entry.Translation), []byte(strings.TrimSpace(entry.Term)))
	})
	if err != nil {
		return fmt.Errorf("translate: write cache: %w", err)
	}
	return nil
}

// Reverse maps a translated string back to the term it was produced from.
func (c *Cache) Reverse(translation string) (string, bool, error) {
	var term string
	err := c.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketReverse).Get(c.key(translation)); raw != nil {
			term = string(raw)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("translate: read reverse cache: %w", err)
	}
	return term, term != "", nil
}

// Len counts cached terms for the cache's target language.
func (c *Cache) Len() (int, error) {
	prefix := []byte(c.target + "\x00")
	count := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketTerms).Cursor()
		for k, _ := cursor.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = cursor.Next() {
			count++
		}
		return nil
	})
	return count, err
}
