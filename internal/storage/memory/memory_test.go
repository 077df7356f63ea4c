// internal/storage/memory/memory_test.go
package memory

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pitchside/playbook/internal/config"
	"github.com/pitchside/playbook/internal/storage"
	"github.com/pitchside/playbook/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

func testProject(id string, updated time.Time) *core.Project {
	return &core.Project{
		ID:    id,
		Name:  "Play " + id,
		Sport: core.SportRugbyUnion,
		Frames: []core.Frame{{
			ID:       "f0",
			Duration: 2000,
			Entities: map[string]core.Entity{
				"p1": {ID: "p1", Type: core.EntityPlayer, Team: core.TeamAttack, X: 10, Y: 20},
			},
			Annotations: []core.Annotation{},
		}},
		Settings:  core.DefaultSettings(),
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg, 1024)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if !b.cfg.CompressOutput {
		t.Error("expected CompressOutput=true")
	}
	if b.projects == nil {
		t.Error("projects map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{}, 0)

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSaveLoadInMemory(t *testing.T) {
	b := New(config.MemoryConfig{}, 0)

	id, err := b.Save(testProject("abc", time.Now()))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id != "abc" {
		t.Errorf("expected id abc, got %s", id)
	}

	raw, err := b.Load("abc")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.Contains(string(raw), `"name":"Play abc"`) {
		t.Errorf("unexpected document: %s", raw)
	}
	if b.LastExportPath() != "" {
		t.Errorf("expected no export without OutputDir, got %s", b.LastExportPath())
	}
}

func TestLoadMissing(t *testing.T) {
	b := New(config.MemoryConfig{}, 0)

	_, err := b.Load("nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRejectsBadInput(t *testing.T) {
	b := New(config.MemoryConfig{}, 200)

	if _, err := b.Save(&core.Project{}); !errors.Is(err, storage.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument for project without id, got %v", err)
	}

	big := testProject("big", time.Now())
	big.Name = strings.Repeat("x", 500)
	if _, err := b.Save(big); !errors.Is(err, storage.ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}

	if _, err := b.Load("../etc/passwd"); !errors.Is(err, storage.ErrInvalidDocument) {
		t.Errorf("expected path ids to be rejected, got %v", err)
	}
}

func TestExportRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := config.MemoryConfig{OutputDir: dir, CompressOutput: compress}

			b := New(cfg, 0)
			if err := b.Init(); err != nil {
				t.Fatalf("Init failed: %v", err)
			}
			if _, err := b.Save(testProject("disk", time.Now())); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			want := filepath.Join(dir, "disk.json")
			if compress {
				want += ".gz"
			}
			if b.LastExportPath() != want {
				t.Errorf("expected export at %s, got %s", want, b.LastExportPath())
			}
			if _, err := os.Stat(want); err != nil {
				t.Fatalf("export file missing: %v", err)
			}

			// a fresh backend only has the file
			fresh := New(cfg, 0)
			raw, err := fresh.Load("disk")
			if err != nil {
				t.Fatalf("Load from disk failed: %v", err)
			}
			if !strings.Contains(string(raw), `"id":"disk"`) {
				t.Errorf("unexpected document: %s", raw)
			}

			if err := fresh.Delete("disk"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := os.Stat(want); !os.IsNotExist(err) {
				t.Errorf("expected export removed, stat err=%v", err)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	b := New(config.MemoryConfig{}, 0)
	if _, err := b.Save(testProject("gone", time.Now())); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := b.Delete("gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := b.Delete("gone"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	b := New(config.MemoryConfig{}, 0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		offset := map[string]time.Duration{"old": 0, "mid": time.Hour, "new": 2 * time.Hour}[id]
		if _, err := b.Save(testProject(id, base.Add(offset))); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	list, err := b.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(list))
	}
	got := []string{list[0].ID, list[1].ID, list[2].ID}
	if strings.Join(got, ",") != "new,mid,old" {
		t.Errorf("unexpected order %v", got)
	}
	if list[0].EntityCount != 1 || list[0].FrameCount != 1 {
		t.Errorf("unexpected summary %+v", list[0])
	}
}

func TestConcurrentSaves(t *testing.T) {
	b := New(config.MemoryConfig{}, 0)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if _, err := b.Save(testProject(id, time.Now())); err != nil {
				t.Errorf("Save %s failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	list, _ := b.List()
	if len(list) != 20 {
		t.Errorf("expected 20 projects, got %d", len(list))
	}
}

func TestInitIndexesExports(t *testing.T) {
	dir := t.TempDir()
	cfg := config.MemoryConfig{OutputDir: dir, CompressOutput: true}

	first := New(cfg, 0)
	if err := first.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := first.Save(testProject("kept", time.Now())); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "junk.json"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{"id":"elsewhere"}`), 0644); err != nil {
		t.Fatal(err)
	}

	second := New(cfg, 0)
	if err := second.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	list, err := second.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "kept" {
		t.Fatalf("expected only the saved project, got %+v", list)
	}
	if list[0].FrameCount != 1 || list[0].EntityCount != 1 {
		t.Errorf("unexpected summary %+v", list[0])
	}
}

func TestSaveKeepsPreviousCopyWhenExportFails(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir}, 0)
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	first := testProject("drill", time.Now())
	if _, err := b.Save(first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// a directory where the export file belongs makes the next write fail
	path := filepath.Join(dir, "drill.json")
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	second := testProject("drill", time.Now().Add(time.Minute))
	second.Name = "Renamed"
	if _, err := b.Save(second); err == nil {
		t.Fatal("expected Save to fail when the export cannot be written")
	}

	raw, err := b.Load("drill")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.Contains(string(raw), `"name":"Play drill"`) {
		t.Errorf("expected the previous copy to survive, got %s", raw)
	}
	list, err := b.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Play drill" {
		t.Errorf("unexpected listing after failed save: %+v", list)
	}
}
