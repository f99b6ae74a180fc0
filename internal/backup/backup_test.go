package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauern/amsync/internal/util"
)

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// newTestManager returns a manager over a temp dir with a controllable clock
// and the path of a rules file beside it.
func newTestManager(t *testing.T, maxBackups int) (*Manager, *testClock, string) {
	t.Helper()
	root := util.CreateTempDir(t)
	clock := &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager(filepath.Join(root, "backups"), maxBackups)
	m.now = clock.now
	return m, clock, filepath.Join(root, "rules.yaml")
}

func TestCreate(t *testing.T) {
	m, _, rules := newTestManager(t, 0)
	content := "working_set: [foo]\n---\ntype: comment\n"
	util.WriteFile(t, rules, content)

	meta, err := m.Create(rules)
	util.AssertNoError(t, err)

	util.AssertEqual(t, meta.SourcePath, rules)
	util.AssertEqual(t, meta.Size, int64(len(content)))
	util.AssertEqual(t, len(meta.Hash), 64)
	util.AssertEqual(t, meta.ID, "20240501-120000-"+meta.Hash[:8])
	util.AssertEqual(t, filepath.Ext(meta.BackupPath), ".yaml")
	util.AssertEqual(t, util.ReadFile(t, meta.BackupPath), content)

	if _, err := os.Stat(filepath.Join(m.Dir(), IndexFilename)); err != nil {
		t.Errorf("index not written: %v", err)
	}
}

func TestCreate_MissingSource(t *testing.T) {
	m, _, rules := newTestManager(t, 0)

	if _, err := m.Create(rules); err == nil {
		t.Fatal("expected an error for a missing source file")
	}
}

func TestList_NewestFirst(t *testing.T) {
	m, clock, rules := newTestManager(t, 0)

	var ids []string
	for _, content := range []string{"one", "two", "three"} {
		util.WriteFile(t, rules, content)
		meta, err := m.Create(rules)
		util.AssertNoError(t, err)
		ids = append(ids, meta.ID)
		clock.advance(time.Minute)
	}

	backups, err := m.List()
	util.AssertNoError(t, err)
	util.AssertEqual(t, len(backups), 3)
	util.AssertEqual(t, backups[0].ID, ids[2])
	util.AssertEqual(t, backups[2].ID, ids[0])
}

func TestList_Empty(t *testing.T) {
	m, _, _ := newTestManager(t, 0)

	backups, err := m.List()
	util.AssertNoError(t, err)
	util.AssertEqual(t, len(backups), 0)
}

func TestList_MalformedIndex(t *testing.T) {
	m, _, _ := newTestManager(t, 0)
	util.WriteFile(t, filepath.Join(m.Dir(), IndexFilename), "{not json")

	if _, err := m.List(); err == nil {
		t.Fatal("expected an error for a malformed index")
	}
}

func TestRestore(t *testing.T) {
	m, clock, rules := newTestManager(t, 0)
	util.WriteFile(t, rules, "original")
	meta, err := m.Create(rules)
	util.AssertNoError(t, err)

	clock.advance(time.Minute)
	util.WriteFile(t, rules, "changed")

	restored, err := m.Restore(meta.ID, rules)
	util.AssertNoError(t, err)
	util.AssertEqual(t, restored.ID, meta.ID)
	util.AssertEqual(t, util.ReadFile(t, rules), "original")

	// The overwritten content was backed up first.
	backups, err := m.List()
	util.AssertNoError(t, err)
	util.AssertEqual(t, len(backups), 2)
	util.AssertEqual(t, util.ReadFile(t, backups[0].BackupPath), "changed")
}

func TestRestore_NewTarget(t *testing.T) {
	m, _, rules := newTestManager(t, 0)
	util.WriteFile(t, rules, "original")
	meta, err := m.Create(rules)
	util.AssertNoError(t, err)

	target := filepath.Join(filepath.Dir(rules), "nested", "restored.yaml")
	_, err = m.Restore(meta.ID, target)
	util.AssertNoError(t, err)
	util.AssertEqual(t, util.ReadFile(t, target), "original")
}

func TestRestore_Errors(t *testing.T) {
	tests := map[string]struct {
		corrupt func(t *testing.T, meta *Metadata)
		id      func(meta *Metadata) string
		want    error
	}{
		"unknown id": {
			corrupt: func(*testing.T, *Metadata) {},
			id:      func(*Metadata) string { return "no-such-backup" },
			want:    ErrNotFound,
		},
		"corrupted": {
			corrupt: func(t *testing.T, meta *Metadata) { util.WriteFile(t, meta.BackupPath, "tampered") },
			id:      func(meta *Metadata) string { return meta.ID },
			want:    ErrCorrupted,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m, _, rules := newTestManager(t, 0)
			util.WriteFile(t, rules, "original")
			meta, err := m.Create(rules)
			util.AssertNoError(t, err)
			tt.corrupt(t, meta)

			util.WriteFile(t, rules, "current")
			_, err = m.Restore(tt.id(meta), rules)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Restore() error = %v, want %v", err, tt.want)
			}
			util.AssertEqual(t, util.ReadFile(t, rules), "current")
			if verr := m.Verify(tt.id(meta)); !errors.Is(verr, tt.want) {
				t.Errorf("Verify() error = %v, want %v", verr, tt.want)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	m, _, rules := newTestManager(t, 0)
	util.WriteFile(t, rules, "original")
	meta, err := m.Create(rules)
	util.AssertNoError(t, err)

	util.AssertNoError(t, m.Delete(meta.ID))

	if _, err := os.Stat(meta.BackupPath); !os.IsNotExist(err) {
		t.Errorf("backup file should be removed, stat error: %v", err)
	}
	backups, err := m.List()
	util.AssertNoError(t, err)
	util.AssertEqual(t, len(backups), 0)

	if err := m.Delete(meta.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestBackup_PrunesToMax(t *testing.T) {
	m, clock, rules := newTestManager(t, 2)

	for _, content := range []string{"one", "two", "three", "four"} {
		util.WriteFile(t, rules, content)
		util.AssertNoError(t, m.Backup(rules))
		clock.advance(time.Minute)
	}

	backups, err := m.List()
	util.AssertNoError(t, err)
	util.AssertEqual(t, len(backups), 2)
	util.AssertEqual(t, util.ReadFile(t, backups[0].BackupPath), "four")
	util.AssertEqual(t, util.ReadFile(t, backups[1].BackupPath), "three")
}
