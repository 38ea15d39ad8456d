package repository

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/noah-isme/syllabus-portal/pkg/storage"
)

// ErrKeyNotFound is returned by KeyValueStore.Get for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore persists opaque values for drafts and sessions.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Scope prefixes every key of store, e.g. per actor.
func Scope(store KeyValueStore, prefix string) KeyValueStore {
	if prefix == "" {
		return store
	}
	return &scopedStore{inner: store, prefix: prefix + ":"}
}

type scopedStore struct {
	inner  KeyValueStore
	prefix string
}

func (s *scopedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scopedStore) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scopedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, s.prefix+key)
}

// MemoryKVStore keeps values in process memory.
type MemoryKVStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryKVStore builds an empty store.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{values: make(map[string][]byte)}
}

func (s *MemoryKVStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryKVStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryKVStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryKVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// FileKVStore writes one file per key on local disk.
type FileKVStore struct {
	files *storage.LocalStorage
	ttl   time.Duration
}

// NewFileKVStore stores values under files. A positive ttl makes stale
// files read as absent.
func NewFileKVStore(files *storage.LocalStorage, ttl time.Duration) *FileKVStore {
	return &FileKVStore{files: files, ttl: ttl}
}

func fileName(key string) string {
	return url.PathEscape(key) + ".json"
}

func (s *FileKVStore) Get(_ context.Context, key string) ([]byte, error) {
	name := fileName(key)
	if s.ttl > 0 {
		if _, err := s.files.CleanupOlderThan(s.ttl); err != nil {
			return nil, err
		}
	}
	data, err := s.files.Read(name)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, ErrKeyNotFound
	}
	return data, err
}

func (s *FileKVStore) Set(_ context.Context, key string, value []byte) error {
	_, err := s.files.Save(fileName(key), value)
	return err
}

func (s *FileKVStore) Remove(_ context.Context, key string) error {
	return s.files.Delete(fileName(key))
}
