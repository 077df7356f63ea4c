package autosave

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrQuotaExceeded is returned by Slots.Put when the write would take the
	// store past its size limit.
	ErrQuotaExceeded = errors.New("autosave quota exceeded")
	// ErrSlotNotFound is returned when a key has no stored data.
	ErrSlotNotFound = errors.New("autosave slot not found")
)

// Slots is a size-bounded key/value store for snapshots.
type Slots interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Keys() ([]string, error)
	Usage() int64
}

// MemorySlots keeps snapshots in memory.
type MemorySlots struct {
	quota int64

	mu    sync.Mutex
	data  map[string][]byte
	usage int64
}

// NewMemorySlots creates a store holding at most quota bytes. A quota of 0
// or less means unlimited.
func NewMemorySlots(quota int64) *MemorySlots {
	return &MemorySlots{quota: quota, data: make(map[string][]byte)}
}

func (m *MemorySlots) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.usage - int64(len(m.data[key])) + int64(len(data))
	if m.quota > 0 && next > m.quota {
		return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, next, m.quota)
	}
	m.data[key] = append([]byte(nil), data...)
	m.usage = next
	return nil
}

func (m *MemorySlots) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemorySlots) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.data[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, key)
	}
	m.usage -= int64(len(data))
	delete(m.data, key)
	return nil
}

func (m *MemorySlots) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemorySlots) Usage() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

const slotExt = ".json"

// DirSlots keeps one file per snapshot in a directory. Sizes are indexed when
// the store is opened and kept current on every write, so files added behind
// its back are not counted until the next open.
type DirSlots struct {
	dir   string
	quota int64

	mu    sync.Mutex
	sizes map[string]int64
	usage int64
}

// NewDirSlots opens dir, creating it if needed, and indexes the snapshots
// already in it. A quota of 0 or less means unlimited.
func NewDirSlots(dir string, quota int64) (*DirSlots, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create autosave directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read autosave directory: %w", err)
	}

	d := &DirSlots{dir: dir, quota: quota, sizes: make(map[string]int64)}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, slotExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		d.sizes[strings.TrimSuffix(name, slotExt)] = info.Size()
		d.usage += info.Size()
	}
	return d, nil
}

func (d *DirSlots) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("bad autosave key %q", key)
	}
	return filepath.Join(d.dir, key+slotExt), nil
}

// Put writes the snapshot through a temporary file so a failed write never
// leaves a truncated snapshot behind.
func (d *DirSlots) Put(key string, data []byte) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.usage - d.sizes[key] + int64(len(data))
	if d.quota > 0 && next > d.quota {
		return fmt.Errorf("%w: %d of %d bytes", ErrQuotaExceeded, next, d.quota)
	}

	tmp, err := os.CreateTemp(d.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	d.sizes[key] = int64(len(data))
	d.usage = next
	return nil
}

func (d *DirSlots) Get(key string) ([]byte, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return data, nil
}

func (d *DirSlots) Delete(key string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSlotNotFound, key)
		}
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	d.usage -= d.sizes[key]
	delete(d.sizes, key)
	return nil
}

func (d *DirSlots) Keys() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]string, 0, len(d.sizes))
	for k := range d.sizes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *DirSlots) Usage() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.usage
}
