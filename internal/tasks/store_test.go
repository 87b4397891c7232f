package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/domain"
	"daybook/internal/kv"
	"daybook/internal/remote"
	"daybook/internal/tasks"
)

type fakeSource struct {
	todos []remote.Todo
	err   error
	calls int
}

func (f *fakeSource) Todos(context.Context) ([]remote.Todo, error) {
	f.calls++
	return f.todos, f.err
}

var fixedNow = time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T, src tasks.Source) (*tasks.Store, *kv.Memory) {
	t.Helper()
	mem := kv.NewMemory()
	s := tasks.New(tasks.Options{
		KV:     mem,
		Remote: src,
		Now:    func() time.Time { return fixedNow },
	})
	return s, mem
}

func add(t *testing.T, s *tasks.Store, title string) domain.Task {
	t.Helper()
	task, err := s.Add(context.Background(), tasks.Input{Title: title, DueDate: fixedNow.Add(time.Hour)})
	require.NoError(t, err)
	return task
}

func TestHydrateFromRemoteDecoratesAndPersists(t *testing.T) {
	src := &fakeSource{todos: []remote.Todo{{ID: 1, Title: "A", Completed: false}}}
	s, mem := newStore(t, src)

	require.NoError(t, s.Hydrate(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	got := snap.Items[0]
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "A", got.Title)
	assert.False(t, got.Completed)
	assert.Equal(t, domain.PriorityLow, got.Priority)
	assert.Equal(t, domain.DefaultColor, got.Color)
	assert.Equal(t, domain.DefaultDescription, got.Description)
	assert.False(t, got.DueDate.IsZero())
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)

	var persisted []domain.Task
	require.NoError(t, json.Unmarshal(mem.Raw(tasks.StorageKey), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, "A", persisted[0].Title)
	assert.Equal(t, domain.PriorityLow, persisted[0].Priority)
}

func TestHydratePrefersStoredTasks(t *testing.T) {
	src := &fakeSource{todos: []remote.Todo{{ID: 1, Title: "remote"}}}
	s, mem := newStore(t, src)
	stored := []domain.Task{{ID: 7, Title: "stored", Priority: domain.PriorityHigh, DueDate: fixedNow}}
	require.NoError(t, mem.Save(context.Background(), tasks.StorageKey, stored))

	require.NoError(t, s.Hydrate(context.Background()))
	assert.Equal(t, 0, src.calls)
	items := s.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "stored", items[0].Title)
	assert.Equal(t, 1, mem.Writes(tasks.StorageKey))
}

func TestHydrateRunsOnce(t *testing.T) {
	src := &fakeSource{todos: []remote.Todo{{ID: 1, Title: "A"}}}
	s, _ := newStore(t, src)
	require.NoError(t, s.Hydrate(context.Background()))
	require.NoError(t, s.Hydrate(context.Background()))
	assert.Equal(t, 1, src.calls)
}

func TestHydrateFailsWhenBothSourcesFail(t *testing.T) {
	src := &fakeSource{err: errors.New("offline")}
	s, _ := newStore(t, src)

	err := s.Hydrate(context.Background())
	var herr *tasks.HydrationError
	require.True(t, errors.As(err, &herr))
	assert.ErrorIs(t, herr.Local, kv.ErrNotFound)
	assert.Error(t, herr.Remote)
	snap := s.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Error(t, snap.Err)

	// a retry succeeds once the remote is back
	src.err = nil
	src.todos = []remote.Todo{{ID: 2, Title: "B"}}
	require.NoError(t, s.Hydrate(context.Background()))
	assert.Len(t, s.Snapshot().Items, 1)
	assert.NoError(t, s.Snapshot().Err)
}

func TestHydrateStorageErrorKeepsStoredTasks(t *testing.T) {
	src := &fakeSource{todos: []remote.Todo{{ID: 1, Title: "seed"}}}
	s, mem := newStore(t, src)
	stored := []domain.Task{{ID: 42, Title: "user task", DueDate: fixedNow}}
	require.NoError(t, mem.Save(context.Background(), tasks.StorageKey, stored))
	before := mem.Raw(tasks.StorageKey)
	mem.LoadErr = errors.New("database is locked")

	err := s.Hydrate(context.Background())
	var herr *tasks.HydrationError
	require.True(t, errors.As(err, &herr))
	assert.NoError(t, herr.Remote)
	assert.Equal(t, 0, src.calls)
	assert.Empty(t, s.Snapshot().Items)
	assert.Error(t, s.Snapshot().Err)
	assert.Equal(t, before, mem.Raw(tasks.StorageKey))
	assert.Equal(t, 1, mem.Writes(tasks.StorageKey))

	// the stored list is adopted once the database is readable again
	mem.LoadErr = nil
	require.NoError(t, s.Hydrate(context.Background()))
	items := s.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, "user task", items[0].Title)
	assert.Equal(t, before, mem.Raw(tasks.StorageKey))
}

func TestAddPrependsWithDefaults(t *testing.T) {
	s, mem := newStore(t, nil)
	first := add(t, s, "first")
	second := add(t, s, "second")

	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.Completed)
	assert.Equal(t, domain.PriorityLow, second.Priority)
	assert.Equal(t, domain.DefaultColor, second.Color)

	items := s.Snapshot().Items
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Title)
	assert.Equal(t, "first", items[1].Title)
	assert.Equal(t, 2, mem.Writes(tasks.StorageKey))
}

func TestAddKeepsInputPriority(t *testing.T) {
	s, _ := newStore(t, nil)
	task, err := s.Add(context.Background(), tasks.Input{Title: "x", DueDate: fixedNow, Priority: domain.PriorityHigh, Color: "#00BFFF"})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityHigh, task.Priority)
	assert.Equal(t, "#00BFFF", task.Color)
}

func TestAddRejectsMissingFields(t *testing.T) {
	s, mem := newStore(t, nil)
	_, err := s.Add(context.Background(), tasks.Input{Title: "  ", DueDate: fixedNow})
	var verr *tasks.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")

	_, err = s.Add(context.Background(), tasks.Input{Title: "ok"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "dueDate")

	_, err = s.Add(context.Background(), tasks.Input{Title: "ok", DueDate: fixedNow, Priority: "urgent"})
	assert.Error(t, err)
	assert.Empty(t, s.Snapshot().Items)
	assert.Equal(t, 0, mem.Writes(tasks.StorageKey))
}

func TestUpdateThenToggleComposition(t *testing.T) {
	s, _ := newStore(t, nil)
	task := add(t, s, "compose")
	require.False(t, task.Completed)

	updated := task
	updated.Completed = true
	ok, err := s.Update(context.Background(), updated)
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := s.Get(task.ID)
	assert.True(t, got.Completed)

	toggled, ok := s.Toggle(context.Background(), task.ID)
	require.True(t, ok)
	assert.False(t, toggled.Completed)
	assert.Equal(t, task.Completed, toggled.Completed)
}

func TestDoubleToggleIsIdentity(t *testing.T) {
	s, _ := newStore(t, nil)
	task := add(t, s, "flip")
	s.Toggle(context.Background(), task.ID)
	s.Toggle(context.Background(), task.ID)
	got, _ := s.Get(task.ID)
	assert.Equal(t, task, got)
}

// Unknown ids are dropped silently rather than inserted or rejected.
func TestUpdateUnknownIDIsSilentNoop(t *testing.T) {
	s, mem := newStore(t, nil)
	add(t, s, "only")
	writes := mem.Writes(tasks.StorageKey)

	ok, err := s.Update(context.Background(), domain.Task{ID: 424242, Title: "ghost", DueDate: fixedNow})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, s.Snapshot().Items, 1)
	assert.Equal(t, writes, mem.Writes(tasks.StorageKey))
}

func TestToggleUnknownIDIsNoop(t *testing.T) {
	s, mem := newStore(t, nil)
	_, ok := s.Toggle(context.Background(), 99)
	assert.False(t, ok)
	assert.Equal(t, 0, mem.Writes(tasks.StorageKey))
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _ := newStore(t, nil)
	keep := add(t, s, "keep")
	drop := add(t, s, "drop")

	assert.True(t, s.Delete(context.Background(), drop.ID))
	assert.False(t, s.Delete(context.Background(), drop.ID))

	items := s.Snapshot().Items
	require.Len(t, items, 1)
	assert.Equal(t, keep.ID, items[0].ID)
}

func TestSetPriority(t *testing.T) {
	s, _ := newStore(t, nil)
	task := add(t, s, "p")
	ok, err := s.SetPriority(context.Background(), task.ID, domain.PriorityMedium)
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := s.Get(task.ID)
	assert.Equal(t, domain.PriorityMedium, got.Priority)
}

func TestFilterAndSortAreViewOnly(t *testing.T) {
	s, mem := newStore(t, nil)
	require.NoError(t, s.SetFilter(domain.FilterCompleted))
	require.NoError(t, s.SetSort(domain.SortPriority))
	assert.Error(t, s.SetFilter("done"))
	assert.Error(t, s.SetSort("alpha"))

	snap := s.Snapshot()
	assert.Equal(t, domain.FilterCompleted, snap.Filter)
	assert.Equal(t, domain.SortPriority, snap.Sort)
	assert.Equal(t, 0, mem.Writes(tasks.StorageKey))
}

func TestPersistFailureIsNotSurfaced(t *testing.T) {
	s, mem := newStore(t, nil)
	mem.SaveErr = errors.New("disk full")
	task, err := s.Add(context.Background(), tasks.Input{Title: "still here", DueDate: fixedNow})
	require.NoError(t, err)
	_, ok := s.Get(task.ID)
	assert.True(t, ok)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s, _ := newStore(t, nil)
	var ops []tasks.Op
	unsubscribe := s.Subscribe(func(c tasks.Change) {
		ops = append(ops, c.Op)
		// reading the store from a callback must not deadlock
		_ = s.Snapshot()
	})
	task := add(t, s, "watched")
	s.Toggle(context.Background(), task.ID)
	unsubscribe()
	s.Delete(context.Background(), task.ID)

	assert.Equal(t, []tasks.Op{tasks.OpAdd, tasks.OpToggle}, ops)
}

func TestIDsStayUniqueWithFrozenClock(t *testing.T) {
	s, _ := newStore(t, nil)
	seen := map[int64]bool{}
	for i := 0; i < 20; i++ {
		task := add(t, s, "same tick")
		require.False(t, seen[task.ID])
		seen[task.ID] = true
	}
}

func TestValidateSubmission(t *testing.T) {
	now := fixedNow
	assert.NoError(t, tasks.ValidateSubmission("ok", now, now))
	assert.NoError(t, tasks.ValidateSubmission("ok", now.Add(time.Minute), now))

	err := tasks.ValidateSubmission("", time.Time{}, now)
	var verr *tasks.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Title is required", verr.Fields["title"])
	assert.Equal(t, "Due date is required", verr.Fields["dueDate"])

	err = tasks.ValidateSubmission("ok", now.Add(-time.Second), now)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Due date cannot be in the past", verr.Fields["dueDate"])
}
