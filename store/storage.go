package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("key not found")
	ErrUnavailable = errors.New("storage unavailable")
)

// Storage is the key-value persistence boundary the token store writes
// through. Implementations must treat each Set as one atomic write.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// FileStorage persists keys as a single JSON document on disk, the
// process-restart-surviving analogue of browser local storage. Writes go
// through a temp file and rename so a concurrent reader never observes a
// partially written document.
type FileStorage struct {
	path string
	lock sync.Mutex
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates storage rooted at dir. The directory is created
// if missing.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStorage] create storage dir")
	}
	return &FileStorage{path: filepath.Join(dir, "keystore.json")}, nil
}

func (fs *FileStorage) Get(key string) (string, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (fs *FileStorage) Set(key, value string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return err
	}
	values[key] = value
	return fs.save(values)
}

func (fs *FileStorage) Delete(key string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	values, err := fs.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return fs.save(values)
}

func (fs *FileStorage) load() (map[string]string, error) {
	raw, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStorage.load] read keystore")
	}

	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		// A corrupt keystore is treated as empty rather than fatal.
		return map[string]string{}, nil
	}
	return values, nil
}

func (fs *FileStorage) save(values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "[FileStorage.save] marshal keystore")
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, "[FileStorage.save] write keystore")
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return errors.Wrap(err, "[FileStorage.save] rename keystore")
	}
	return nil
}

// MemoryStorage keeps values in process memory. Used by tests and by
// runtimes that should not persist credentials.
type MemoryStorage struct {
	values map[string]string
	lock   sync.RWMutex
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (ms *MemoryStorage) Get(key string) (string, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	value, ok := ms.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (ms *MemoryStorage) Set(key, value string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.values[key] = value
	return nil
}

func (ms *MemoryStorage) Delete(key string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	delete(ms.values, key)
	return nil
}

// Unavailable returns storage for runtimes without any persistence; every
// read reports nothing stored and every write reports ErrUnavailable.
func Unavailable() Storage {
	return unavailableStorage{}
}

type unavailableStorage struct{}

func (unavailableStorage) Get(string) (string, error) { return "", ErrUnavailable }
func (unavailableStorage) Set(string, string) error   { return ErrUnavailable }
func (unavailableStorage) Delete(string) error        { return ErrUnavailable }
