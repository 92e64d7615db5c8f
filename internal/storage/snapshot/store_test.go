package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subman/internal/lib/metrics"
)

type item struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags,omitempty"`
}

func (i item) Clone() item {
	i.Tags = append([]string(nil), i.Tags...)
	return i
}

func itemID(i *item) *int64 { return &i.ID }

func openTestStore(t *testing.T, path string, opts ...Option) *Store[item] {
	t.Helper()
	s, err := Open("items", path, itemID, opts...)
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "items.json")

	s := openTestStore(t, path)
	assert.Equal(t, 0, s.Len())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestOpen_EmptyFileIsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	s := openTestStore(t, path)
	assert.Equal(t, 0, s.Len())
}

func TestOpen_CorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{not json"},
		{name: "object instead of array", content: `{"id": 1}`},
		{name: "record without id", content: `[{"name": "x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "items.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			s, err := Open("items", path, itemID)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrPersistence)
		})
	}
}

func TestSave_AssignsSequentialIDs(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))

	first, err := s.Save(item{Name: "a"})
	require.NoError(t, err)
	second, err := s.Save(item{Name: "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	require.NoError(t, s.DeleteByID(second.ID))
	third, err := s.Save(item{Name: "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), third.ID, "ids are never reused")
}

func TestSave_UpsertByID(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))

	saved, err := s.Save(item{Name: "old"})
	require.NoError(t, err)

	saved.Name = "new"
	_, err = s.Save(saved)
	require.NoError(t, err)

	got, ok := s.FindByID(saved.ID)
	require.True(t, ok)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, 1, s.Len())
}

func TestSave_ExplicitIDRaisesCounter(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))

	_, err := s.Save(item{ID: 10, Name: "explicit"})
	require.NoError(t, err)

	next, err := s.Save(item{Name: "auto"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), next.ID)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))

	in := item{Name: "a", Tags: []string{"x"}}
	saved, err := s.Save(in)
	require.NoError(t, err)

	in.Tags[0] = "mutated input"
	saved.Tags[0] = "mutated result"

	got, ok := s.FindByID(saved.ID)
	require.True(t, ok)
	got.Tags[0] = "mutated read"

	again, _ := s.FindByID(saved.ID)
	assert.Equal(t, []string{"x"}, again.Tags)
}

func TestSaveUnique(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))
	sameName := func(name string) func(item) bool {
		return func(existing item) bool { return strings.EqualFold(existing.Name, name) }
	}

	a, err := s.SaveUnique(item{Name: "alpha"}, sameName("alpha"))
	require.NoError(t, err)

	_, err = s.SaveUnique(item{Name: "ALPHA"}, sameName("ALPHA"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, s.Len())

	// сама сущность не конфликтует с собой при обновлении
	a.Name = "Alpha"
	_, err = s.SaveUnique(a, sameName(a.Name))
	assert.NoError(t, err)
}

func TestUpdate_ConcurrentChangesAreNotLost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	s := openTestStore(t, path)
	seed, err := s.Save(item{Name: "seed"})
	require.NoError(t, err)

	const workers = 30
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(seed.ID, func(it *item) error {
				it.Tags = append(it.Tags, fmt.Sprintf("t%d", i))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, ok := s.FindByID(seed.ID)
	require.True(t, ok)
	assert.Len(t, got.Tags, workers)

	reopened := openTestStore(t, path)
	got, _ = reopened.FindByID(seed.ID)
	assert.Len(t, got.Tags, workers)
}

func TestUpdate_Errors(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))
	a, err := s.Save(item{Name: "alpha"})
	require.NoError(t, err)

	_, err = s.Update(42, func(*item) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	denied := errors.New("denied")
	_, err = s.Update(a.ID, func(it *item) error {
		it.Name = "changed"
		return denied
	})
	assert.ErrorIs(t, err, denied)
	got, _ := s.FindByID(a.ID)
	assert.Equal(t, "alpha", got.Name, "rejected change is not applied")

	// id внутри change поменять нельзя
	moved, err := s.Update(a.ID, func(it *item) error {
		it.ID = 77
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, a.ID, moved.ID)
	assert.Equal(t, 1, s.Len())
}

func TestUpdate_DoesNotResurrectDeleted(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))
	a, err := s.Save(item{Name: "alpha"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteByID(a.ID))

	_, err = s.Update(a.ID, func(it *item) error {
		it.Name = "zombie"
		return nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.Len())
}

func TestUpdateUnique(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))
	a, err := s.Save(item{Name: "alpha"})
	require.NoError(t, err)
	_, err = s.Save(item{Name: "beta"})
	require.NoError(t, err)

	sameName := func(updated, existing item) bool { return strings.EqualFold(updated.Name, existing.Name) }
	rename := func(name string) func(*item) error {
		return func(it *item) error {
			it.Name = name
			return nil
		}
	}

	_, err = s.UpdateUnique(a.ID, rename("BETA"), sameName)
	assert.ErrorIs(t, err, ErrConflict)
	got, _ := s.FindByID(a.ID)
	assert.Equal(t, "alpha", got.Name)

	got, err = s.UpdateUnique(a.ID, rename("Alpha"), sameName)
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)
}

func TestFindAndFirst(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))
	for _, name := range []string{"bob", "alice", "bob"} {
		_, err := s.Save(item{Name: name})
		require.NoError(t, err)
	}

	bobs := s.Find(func(i item) bool { return i.Name == "bob" })
	require.Len(t, bobs, 2)
	assert.Equal(t, int64(1), bobs[0].ID)
	assert.Equal(t, int64(3), bobs[1].ID)

	first, ok := s.First(func(i item) bool { return i.Name == "bob" })
	require.True(t, ok)
	assert.Equal(t, int64(1), first.ID)

	_, ok = s.First(func(i item) bool { return i.Name == "carol" })
	assert.False(t, ok)

	assert.Len(t, s.FindAll(), 3)
}

func TestDeleteByID_MissingIsNotAnError(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"))
	assert.NoError(t, s.DeleteByID(42))
}

func TestRestartDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	s := openTestStore(t, path)

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Save(item{Name: name, Tags: []string{name}})
		require.NoError(t, err)
	}
	require.NoError(t, s.DeleteByID(2))
	before := s.FindAll()
	require.NoError(t, s.Flush())

	reopened := openTestStore(t, path)
	assert.Equal(t, before, reopened.FindAll())

	next, err := reopened.Save(item{Name: "d"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.ID)
}

func TestSnapshotFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	s := openTestStore(t, path)

	_, err := s.Save(item{ID: 5, Name: "five"})
	require.NoError(t, err)
	_, err = s.Save(item{ID: 2, Name: "two"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []item
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
	assert.Equal(t, int64(5), records[1].ID)

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	s := openTestStore(t, path)

	_, err := s.Save(item{ID: 100, Name: "seed"})
	require.NoError(t, err)

	const workers = 50
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saved, err := s.Save(item{Name: "concurrent"})
			assert.NoError(t, err)
			ids[i] = saved.ID
			_ = s.FindAll()
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, workers)
	for _, id := range ids {
		assert.Greater(t, id, int64(100))
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	reopened := openTestStore(t, path)
	assert.Equal(t, workers+1, reopened.Len(), "last snapshot covers every completed save")
}

func TestWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewStore(reg)

	s := openTestStore(t, filepath.Join(t.TempDir(), "items.json"), WithMetrics(m))
	_, err := s.Save(item{Name: "a"})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "subman_snapshot_writes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSave_PersistenceFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	s := openTestStore(t, path)

	require.NoError(t, os.RemoveAll(dir))

	_, err := s.Save(item{Name: "lost"})
	assert.ErrorIs(t, err, ErrPersistence)
}
