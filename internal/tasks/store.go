package tasks

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"daybook/internal/domain"
	"daybook/internal/kv"
	"daybook/internal/remote"
)

// StorageKey is the persistence key holding the task collection.
const StorageKey = "tasks"

// Op names the mutation carried by a Change.
type Op string

const (
	OpHydrate Op = "hydrate"
	OpAdd     Op = "add"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpToggle  Op = "toggle"
	OpFilter  Op = "filter"
	OpSort    Op = "sort"
)

// Source supplies the remote todo list used when nothing is stored locally.
type Source interface {
	Todos(ctx context.Context) ([]remote.Todo, error)
}

type Options struct {
	KV     kv.Store
	Remote Source
	Logger *log.Logger
	Now    func() time.Time
}

// Snapshot is a copy of the store state; callers may keep it.
type Snapshot struct {
	Items    []domain.Task
	Loading  bool
	Err      error
	Filter   domain.Filter
	Sort     domain.SortKey
	Revision uint64
}

type Change struct {
	Op       Op
	TaskID   int64
	Snapshot Snapshot
}

// Input is a task submission.
type Input struct {
	Title       string
	Description string
	DueDate     time.Time
	Priority    domain.Priority
	Color       string
}

// Store owns the task collection and writes it through on every mutation.
type Store struct {
	kv     kv.Store
	remote Source
	logger *log.Logger
	now    func() time.Time

	hydrateMu sync.Mutex

	mu       sync.Mutex
	items    []domain.Task
	loading  bool
	err      error
	hydrated bool
	filter   domain.Filter
	sort     domain.SortKey
	lastID   int64
	revision uint64
	subs     []subscriber
	nextSub  int
}

type subscriber struct {
	id int
	fn func(Change)
}

func New(opts Options) *Store {
	s := &Store{
		kv:     opts.KV,
		remote: opts.Remote,
		logger: opts.Logger,
		now:    opts.Now,
		filter: domain.FilterAll,
		sort:   domain.SortDate,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Hydrate loads the collection once: stored tasks win, otherwise the remote
// todos are decorated with defaults, persisted and adopted. The remote seed is
// only used when nothing is stored; any other storage error fails hydration.
func (s *Store) Hydrate(ctx context.Context) error {
	s.hydrateMu.Lock()
	defer s.hydrateMu.Unlock()

	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	items, persist, err := s.load(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.items = nil
		s.err = err
	} else {
		s.items = items
		s.hydrated = true
		if persist {
			s.persistLocked(ctx)
		}
	}
	change := s.changeLocked(OpHydrate, 0)
	s.mu.Unlock()

	s.notify(change)
	return err
}

func (s *Store) load(ctx context.Context) ([]domain.Task, bool, error) {
	var localErr error
	if s.kv != nil {
		var stored []domain.Task
		err := s.kv.Load(ctx, StorageKey, &stored)
		switch {
		case err == nil:
			return stored, false, nil
		case errors.Is(err, kv.ErrNotFound):
			localErr = err
		default:
			// Stored tasks may exist; seeding here would overwrite them.
			s.logger.Printf("tasks: load stored tasks failed: %v", err)
			return nil, false, &HydrationError{Local: err}
		}
	} else {
		localErr = errors.New("no local storage configured")
	}
	if s.remote == nil {
		return nil, false, &HydrationError{Local: localErr, Remote: errors.New("no remote source configured")}
	}
	todos, err := s.remote.Todos(ctx)
	if err != nil {
		s.logger.Printf("tasks: fetch remote todos failed: %v", err)
		return nil, false, &HydrationError{Local: localErr, Remote: err}
	}
	now := s.now()
	items := make([]domain.Task, 0, len(todos))
	for _, td := range todos {
		items = append(items, domain.Task{
			ID:          td.ID,
			Title:       td.Title,
			Completed:   td.Completed,
			Description: domain.DefaultDescription,
			Color:       domain.DefaultColor,
			Priority:    domain.PriorityLow,
			DueDate:     now,
		})
	}
	return items, true, nil
}

// Add prepends a new task with a fresh id.
func (s *Store) Add(ctx context.Context, in Input) (domain.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Task{}, invalid("title", "Title is required")
	}
	if in.DueDate.IsZero() {
		return domain.Task{}, invalid("dueDate", "Due date is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityLow
	}
	if !priority.Valid() {
		return domain.Task{}, invalid("priority", "Unknown priority "+string(priority))
	}
	color := in.Color
	if color == "" {
		color = domain.DefaultColor
	}

	s.mu.Lock()
	t := domain.Task{
		ID:          s.nextIDLocked(),
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Completed:   false,
		Priority:    priority,
		Color:       color,
	}
	s.items = append([]domain.Task{t}, s.items...)
	s.persistLocked(ctx)
	change := s.changeLocked(OpAdd, t.ID)
	s.mu.Unlock()

	s.notify(change)
	return t, nil
}

// nextIDLocked derives an id from the clock, bumping past collisions.
func (s *Store) nextIDLocked() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	for s.indexLocked(id) >= 0 {
		id++
	}
	s.lastID = id
	return id
}

// Update replaces the task with the same id. Unknown ids are dropped
// silently and report false.
func (s *Store) Update(ctx context.Context, t domain.Task) (bool, error) {
	if t.Priority == "" {
		t.Priority = domain.PriorityLow
	}
	if !t.Priority.Valid() {
		return false, invalid("priority", "Unknown priority "+string(t.Priority))
	}
	if t.Color == "" {
		t.Color = domain.DefaultColor
	}

	s.mu.Lock()
	i := s.indexLocked(t.ID)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	s.items[i] = t
	s.persistLocked(ctx)
	change := s.changeLocked(OpUpdate, t.ID)
	s.mu.Unlock()

	s.notify(change)
	return true, nil
}

// SetPriority updates only the priority of an existing task.
func (s *Store) SetPriority(ctx context.Context, id int64, p domain.Priority) (bool, error) {
	t, ok := s.Get(id)
	if !ok {
		return false, nil
	}
	t.Priority = p
	return s.Update(ctx, t)
}

// Delete removes the task if present and always writes the collection.
func (s *Store) Delete(ctx context.Context, id int64) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
	}
	s.persistLocked(ctx)
	change := s.changeLocked(OpDelete, id)
	s.mu.Unlock()

	s.notify(change)
	return i >= 0
}

// Toggle flips completion on the matching task.
func (s *Store) Toggle(ctx context.Context, id int64) (domain.Task, bool) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Task{}, false
	}
	s.items[i].Completed = !s.items[i].Completed
	t := s.items[i]
	s.persistLocked(ctx)
	change := s.changeLocked(OpToggle, id)
	s.mu.Unlock()

	s.notify(change)
	return t, true
}

func (s *Store) SetFilter(f domain.Filter) error {
	if !f.Valid() {
		return invalid("filter", "Unknown filter "+string(f))
	}
	s.mu.Lock()
	s.filter = f
	change := s.changeLocked(OpFilter, 0)
	s.mu.Unlock()
	s.notify(change)
	return nil
}

func (s *Store) SetSort(k domain.SortKey) error {
	if !k.Valid() {
		return invalid("sort", "Unknown sort "+string(k))
	}
	s.mu.Lock()
	s.sort = k
	change := s.changeLocked(OpSort, 0)
	s.mu.Unlock()
	s.notify(change)
	return nil
}

func (s *Store) Get(id int64) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return domain.Task{}, false
	}
	return s.items[i], true
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every change; the returned func unregisters it.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) indexLocked(id int64) int {
	for i, t := range s.items {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() Snapshot {
	items := make([]domain.Task, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Items:    items,
		Loading:  s.loading,
		Err:      s.err,
		Filter:   s.filter,
		Sort:     s.sort,
		Revision: s.revision,
	}
}

// persistLocked writes the whole collection; failures are logged only.
func (s *Store) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	items := s.items
	if items == nil {
		items = []domain.Task{}
	}
	if err := s.kv.Save(ctx, StorageKey, items); err != nil {
		s.logger.Printf("tasks: persist failed: %v", err)
	}
}

type pending struct {
	change Change
	fns    []func(Change)
}

func (s *Store) changeLocked(op Op, id int64) pending {
	s.revision++
	fns := make([]func(Change), 0, len(s.subs))
	for _, sub := range s.subs {
		fns = append(fns, sub.fn)
	}
	return pending{change: Change{Op: op, TaskID: id, Snapshot: s.snapshotLocked()}, fns: fns}
}

// notify runs subscribers outside the lock so they may read the store.
func (s *Store) notify(p pending) {
	for _, fn := range p.fns {
		fn(p.change)
	}
}
