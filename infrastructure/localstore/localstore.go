// Package localstore is the device-local key-value store. It stands in
// for the browser's localStorage: a handful of well-known keys holding
// JSON blobs, owned by a single process.
//
// The KV interface is the injection point; File is the real store and
// Memory backs tests.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known keys, mirroring the persisted layout: one key for the full
// task set across all dates, one for notification settings, one for the
// one-time notification prompt flag.
const (
	KeyTasks                = "lexprep_tasks"
	KeyNotificationSettings = "notificationSettings"
	KeyNotificationPrompt   = "hasSeenNotificationPrompt"
)

// KV is the storage port. Values are opaque JSON blobs.
type KV interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// File is a KV backed by a single JSON file on disk. Every mutation
// rewrites the whole file; the store is a single-writer resource.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file-backed store at path, creating parent
// directories as needed.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &File{path: path}, nil
}

func (f *File) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

func (f *File) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	entries[key] = json.RawMessage(value)
	return f.save(entries)
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return f.save(entries)
}

func (f *File) load() (map[string]json.RawMessage, error) {
	bs, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading local store: %w", err)
	}
	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(bs, &entries); err != nil {
		return nil, fmt.Errorf("decoding local store: %w", err)
	}
	return entries, nil
}

func (f *File) save(entries map[string]json.RawMessage) error {
	bs, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding local store: %w", err)
	}
	// Write-then-rename so a crash mid-write never clobbers the store.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, bs, 0o644); err != nil {
		return fmt.Errorf("writing local store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing local store: %w", err)
	}
	return nil
}

// Memory is an in-memory KV used by tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte

	// FailWrites makes Set and Delete return an error. Tests use it to
	// simulate a full or broken device store.
	FailWrites bool
}

func NewMemory() *Memory {
	return &Memory{entries: map[string][]byte{}}
}

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("local store write failed")
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.entries[key] = cp
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("local store write failed")
	}
	delete(m.entries, key)
	return nil
}
