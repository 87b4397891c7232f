// Package view derives what the agenda and the video list show. Every
// function is pure: inputs are never mutated.
package view

import (
	"sort"
	"sync"
	"time"

	"daybook/internal/domain"
)

// MonthGrid returns the calendar page for anchor's month. Weeks start on
// Sunday; the page is padded with neighbouring-month days so its length is
// a multiple of 7. Dates are midnight in anchor's location.
func MonthGrid(anchor time.Time) []time.Time {
	loc := anchor.Location()
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, loc)
	lead := int(first.Weekday())
	days := first.AddDate(0, 1, -1).Day()

	total := lead + days
	if rem := total % 7; rem != 0 {
		total += 7 - rem
	}
	grid := make([]time.Time, 0, total)
	for i := 0; i < total; i++ {
		grid = append(grid, first.AddDate(0, 0, i-lead))
	}
	return grid
}

// SameDay compares calendar dates in b's location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Matches reports whether t passes the completion filter.
func Matches(t domain.Task, filter domain.Filter) bool {
	switch filter {
	case domain.FilterCompleted:
		return t.Completed
	case domain.FilterIncomplete:
		return !t.Completed
	}
	return true
}

// FilterTasks keeps the tasks that pass filter, in order.
func FilterTasks(tasks []domain.Task, filter domain.Filter) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if Matches(t, filter) {
			out = append(out, t)
		}
	}
	return out
}

// AgendaFor keeps tasks due on selected's calendar day that pass filter.
func AgendaFor(tasks []domain.Task, selected time.Time, filter domain.Filter) []domain.Task {
	out := make([]domain.Task, 0)
	for _, t := range tasks {
		if t.DueDate.IsZero() || !SameDay(t.DueDate, selected) || !Matches(t, filter) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// SortAgenda returns a stably sorted copy: by due date ascending, or by
// priority rank descending.
func SortAgenda(tasks []domain.Task, key domain.SortKey) []domain.Task {
	out := append([]domain.Task(nil), tasks...)
	switch key {
	case domain.SortPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].DueDate.Before(out[j].DueDate)
		})
	}
	return out
}

func Agenda(tasks []domain.Task, selected time.Time, filter domain.Filter, key domain.SortKey) []domain.Task {
	return SortAgenda(AgendaFor(tasks, selected, filter), key)
}

// Memo caches the last agenda per selection. Revision must change whenever
// the task list does.
type Memo struct {
	mu    sync.Mutex
	key   memoKey
	value []domain.Task
	ok    bool
	hits  int
}

type memoKey struct {
	revision uint64
	day      string
	filter   domain.Filter
	sort     domain.SortKey
}

func (m *Memo) Agenda(revision uint64, tasks []domain.Task, selected time.Time, filter domain.Filter, key domain.SortKey) []domain.Task {
	k := memoKey{revision: revision, day: selected.Format("2006-01-02") + selected.Location().String(), filter: filter, sort: key}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ok && m.key == k {
		m.hits++
		return append([]domain.Task(nil), m.value...)
	}
	m.value = Agenda(tasks, selected, filter, key)
	m.key = k
	m.ok = true
	return append([]domain.Task(nil), m.value...)
}

// Hits reports cache hits since creation.
func (m *Memo) Hits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}
