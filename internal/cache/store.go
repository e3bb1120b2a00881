package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/agenthands/anatomy-eval/internal/core/model"
)

const (
	evidencePrefix = "evidence:"
	responsePrefix = "response:"
)

// Store is a JSON document store over a BadgerDB handle. Keys are hashed so
// arbitrary prompt text can be used as a key.
type Store struct {
	db *badger.DB
}

func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// get decodes the value at key into v and reports whether it was found.
func (s *Store) get(key string, v any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache read %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	return nil
}

// count returns the number of keys under prefix.
func (s *Store) count(prefix string) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func hashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// EvidenceCache maps a symptom query to the evidence retrieved for it.
type EvidenceCache struct {
	store *Store
}

func NewEvidenceCache(s *Store) *EvidenceCache {
	return &EvidenceCache{store: s}
}

func evidenceKey(query string) string {
	return evidencePrefix + hashKey(strings.TrimSpace(query))
}

func (c *EvidenceCache) Get(query string) ([]model.EvidenceUnit, bool, error) {
	var units []model.EvidenceUnit
	ok, err := c.store.get(evidenceKey(query), &units)
	if !ok || err != nil {
		return nil, false, err
	}
	if units == nil {
		units = []model.EvidenceUnit{}
	}
	return units, true, nil
}

func (c *EvidenceCache) Put(query string, units []model.EvidenceUnit) error {
	if units == nil {
		units = []model.EvidenceUnit{}
	}
	return c.store.put(evidenceKey(query), units)
}

func (c *EvidenceCache) Len() (int, error) {
	return c.store.count(evidencePrefix)
}

// ResponseCache keeps raw model replies keyed by API name and prompt.
type ResponseCache struct {
	store *Store
}

func NewResponseCache(s *Store) *ResponseCache {
	return &ResponseCache{store: s}
}

func responseKey(api, prompt string) string {
	return responsePrefix + hashKey(api, prompt)
}

func (c *ResponseCache) Lookup(api, prompt string) (string, bool, error) {
	var resp string
	ok, err := c.store.get(responseKey(api, prompt), &resp)
	return resp, ok, err
}

func (c *ResponseCache) Save(api, prompt, response string) error {
	return c.store.put(responseKey(api, prompt), response)
}

func (c *ResponseCache) Len() (int, error) {
	return c.store.count(responsePrefix)
}
