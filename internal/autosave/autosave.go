// Package autosave periodically writes the open project to a size-bounded
// snapshot store. Write failures are logged and retried after evicting old
// snapshots; they never touch the project being edited.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pitchside/playbook/internal/config"
	"github.com/pitchside/playbook/internal/queue"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 30 * time.Second

// Source supplies the project to snapshot.
type Source interface {
	Project() core.Project
}

// Autosaver snapshots a Source into Slots.
type Autosaver struct {
	src    Source
	slots  Slots
	cfg    config.AutosaveConfig
	logger *slog.Logger

	mu        sync.Mutex
	lastSaved map[string]time.Time
	snapshots map[string]*queue.Queue[string]

	saves     metric.Int64Counter
	evictions metric.Int64Counter

	stop chan struct{}
	done chan struct{}
}

// New creates an autosaver and indexes the snapshots already in slots.
func New(src Source, slots Slots, cfg config.AutosaveConfig, logger *slog.Logger) (*Autosaver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Autosaver{
		src:       src,
		slots:     slots,
		cfg:       cfg,
		logger:    logger,
		lastSaved: make(map[string]time.Time),
		snapshots: make(map[string]*queue.Queue[string]),
	}

	var err error
	m := meter()
	if a.saves, err = m.Int64Counter("autosave.saves",
		metric.WithDescription("Autosave attempts by outcome")); err != nil {
		logger.Warn("creating autosave counter", "error", err)
	}
	if a.evictions, err = m.Int64Counter("autosave.evictions",
		metric.WithDescription("Snapshots evicted to make room")); err != nil {
		logger.Warn("creating eviction counter", "error", err)
	}

	keys, err := slots.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list autosave snapshots: %w", err)
	}
	// keys are sorted, and one project's keys sort by time
	for _, key := range keys {
		id, at, ok := parseKey(key)
		if !ok {
			continue
		}
		for _, old := range a.queueLocked(id).Push(key) {
			a.dropLocked(old)
		}
		if at.After(a.lastSaved[id]) {
			a.lastSaved[id] = at
		}
	}
	return a, nil
}

// snapshotKey names a snapshot by project and modification time.
func snapshotKey(projectID string, updatedAt time.Time) string {
	ns := updatedAt.UnixNano()
	if ns < 0 {
		ns = 0
	}
	return fmt.Sprintf("%s.%020d", projectID, ns)
}

func parseKey(key string) (string, time.Time, bool) {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 {
		return "", time.Time{}, false
	}
	ns, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return key[:i], time.Unix(0, ns), true
}

func (a *Autosaver) queueLocked(projectID string) *queue.Queue[string] {
	q, ok := a.snapshots[projectID]
	if !ok {
		q = queue.New[string](a.cfg.MaxSnapshots)
		a.snapshots[projectID] = q
	}
	return q
}

// SaveNow snapshots the project if it changed since the last snapshot.
func (a *Autosaver) SaveNow() error {
	p := a.src.Project()

	a.mu.Lock()
	defer a.mu.Unlock()

	if last, ok := a.lastSaved[p.ID]; ok && last.Equal(p.UpdatedAt) {
		return nil
	}

	raw, err := storage.Encode(&p, 0)
	if err != nil {
		a.count(a.saves, "failed")
		return fmt.Errorf("autosave: %w", err)
	}

	key := snapshotKey(p.ID, p.UpdatedAt)
	if err := a.putLocked(key, raw); err != nil {
		a.count(a.saves, "failed")
		return err
	}

	for _, old := range a.queueLocked(p.ID).Push(key) {
		a.dropLocked(old)
	}

	a.lastSaved[p.ID] = p.UpdatedAt
	a.count(a.saves, "ok")
	a.logger.Debug("Autosaved project", "projectId", p.ID, "key", key, "bytes", len(raw))
	return nil
}

// putLocked writes the snapshot, evicting the oldest snapshots while the
// store reports it is full.
func (a *Autosaver) putLocked(key string, raw []byte) error {
	for {
		err := a.slots.Put(key, raw)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrQuotaExceeded) {
			return fmt.Errorf("autosave %s: %w", key, err)
		}

		victim, ok := a.oldestLocked(key)
		if !ok {
			return fmt.Errorf("autosave %s: nothing left to evict: %w", key, err)
		}
		a.logger.Warn("Autosave quota exceeded, evicting oldest snapshot",
			"key", key, "evicted", victim, "usage", a.slots.Usage())
		if err := a.evictLocked(victim); err != nil {
			return err
		}
	}
}

// oldestLocked finds the oldest snapshot of any project other than key.
func (a *Autosaver) oldestLocked(key string) (string, bool) {
	var (
		best   string
		bestAt time.Time
		found  bool
	)
	for _, q := range a.snapshots {
		items := q.Items()
		for len(items) > 0 && items[0] == key {
			items = items[1:]
		}
		if len(items) == 0 {
			continue
		}
		k := items[0]
		_, at, _ := parseKey(k)
		if !found || at.Before(bestAt) || (at.Equal(bestAt) && k < best) {
			best, bestAt, found = k, at, true
		}
	}
	return best, found
}

// dropLocked deletes a snapshot that fell off its project's history.
func (a *Autosaver) dropLocked(key string) {
	if err := a.slots.Delete(key); err != nil && !errors.Is(err, ErrSlotNotFound) {
		a.logger.Warn("Failed to drop old snapshot", "key", key, "error", err)
	}
}

func (a *Autosaver) evictLocked(key string) error {
	if id, _, ok := parseKey(key); ok {
		if q, ok := a.snapshots[id]; ok {
			q.Remove(key)
		}
	}
	if err := a.slots.Delete(key); err != nil && !errors.Is(err, ErrSlotNotFound) {
		return fmt.Errorf("failed to evict %s: %w", key, err)
	}
	if a.evictions != nil {
		a.evictions.Add(context.Background(), 1)
	}
	return nil
}

// Snapshots returns the stored snapshot keys for a project, oldest first.
func (a *Autosaver) Snapshots(projectID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if q, ok := a.snapshots[projectID]; ok {
		return q.Items()
	}
	return []string{}
}

// Latest returns the newest snapshot of a project.
func (a *Autosaver) Latest(projectID string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	q, ok := a.snapshots[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, projectID)
	}
	key, ok := q.Newest()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, projectID)
	}
	return a.slots.Get(key)
}

// Start snapshots on every interval until Stop is called.
func (a *Autosaver) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		return
	}

	interval := a.cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(interval, a.stop, a.done)
}

func (a *Autosaver) run(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := a.SaveNow(); err != nil {
				a.logger.Warn("Autosave failed", "error", err)
			}
		}
	}
}

// Stop ends the background loop and takes a final snapshot.
func (a *Autosaver) Stop() error {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return a.SaveNow()
}

func (a *Autosaver) count(c metric.Int64Counter, outcome string) {
	if c != nil {
		c.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
