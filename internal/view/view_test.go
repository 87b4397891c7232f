package view_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daybook/internal/domain"
	"daybook/internal/view"
)

var est = time.FixedZone("EST", -5*3600)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, est)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMonthGridWednesdayStart(t *testing.T) {
	// May 2024 starts on a Wednesday.
	grid := view.MonthGrid(at("2024-05-17T10:00:00"))
	require.Equal(t, 0, len(grid)%7)
	assert.Len(t, grid, 35)
	for i := 0; i < 3; i++ {
		assert.Equal(t, time.April, grid[i].Month())
	}
	assert.Equal(t, 28, grid[0].Day())
	assert.Equal(t, time.Sunday, grid[0].Weekday())
	assert.Equal(t, 1, grid[3].Day())
	assert.Equal(t, time.May, grid[3].Month())
	assert.Equal(t, time.June, grid[34].Month())
	assert.Equal(t, 0, grid[10].Hour())
}

func TestMonthGridNoExtraWeek(t *testing.T) {
	// August 2024 ends on a Saturday; no trailing padding is needed.
	grid := view.MonthGrid(at("2024-08-05T00:00:00"))
	assert.Len(t, grid, 35)
	last := grid[len(grid)-1]
	assert.Equal(t, time.August, last.Month())
	assert.Equal(t, 31, last.Day())
}

func TestMonthGridSundayStartFebruary(t *testing.T) {
	// February 2015 starts on Sunday and has exactly four weeks.
	grid := view.MonthGrid(time.Date(2015, 2, 14, 12, 0, 0, 0, time.UTC))
	assert.Len(t, grid, 28)
	assert.Equal(t, 1, grid[0].Day())
}

func TestAgendaForMatchesCalendarDay(t *testing.T) {
	selected := at("2024-01-03T15:00:00")
	tasks := []domain.Task{
		{ID: 1, Title: "late prior day", DueDate: at("2024-01-02T23:59:00")},
		{ID: 2, Title: "just after midnight", DueDate: at("2024-01-03T00:05:00")},
		{ID: 3, Title: "utc evening before", DueDate: time.Date(2024, 1, 3, 4, 30, 0, 0, time.UTC)},
		{ID: 4, Title: "no date"},
	}
	got := view.AgendaFor(tasks, selected, domain.FilterAll)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestAgendaForFilters(t *testing.T) {
	day := at("2024-01-03T08:00:00")
	tasks := []domain.Task{
		{ID: 1, DueDate: day, Completed: true},
		{ID: 2, DueDate: day},
	}
	assert.Len(t, view.AgendaFor(tasks, day, domain.FilterAll), 2)

	done := view.AgendaFor(tasks, day, domain.FilterCompleted)
	require.Len(t, done, 1)
	assert.Equal(t, int64(1), done[0].ID)

	open := view.AgendaFor(tasks, day, domain.FilterIncomplete)
	require.Len(t, open, 1)
	assert.Equal(t, int64(2), open[0].ID)
}

func TestFilterTasksKeepsOrder(t *testing.T) {
	tasks := []domain.Task{
		{ID: 1, Completed: true},
		{ID: 2},
		{ID: 3, Completed: true},
	}
	assert.Len(t, view.FilterTasks(tasks, domain.FilterAll), 3)

	done := view.FilterTasks(tasks, domain.FilterCompleted)
	require.Len(t, done, 2)
	assert.Equal(t, int64(1), done[0].ID)
	assert.Equal(t, int64(3), done[1].ID)

	open := view.FilterTasks(tasks, domain.FilterIncomplete)
	require.Len(t, open, 1)
	assert.Equal(t, int64(2), open[0].ID)
	assert.Empty(t, view.FilterTasks(nil, domain.FilterCompleted))
}

func TestSortAgendaPriorityIsStable(t *testing.T) {
	in := []domain.Task{
		{ID: 1, Priority: domain.PriorityLow},
		{ID: 2, Priority: domain.PriorityHigh},
		{ID: 3, Priority: domain.PriorityMedium},
		{ID: 4, Priority: domain.PriorityHigh},
	}
	got := view.SortAgenda(in, domain.SortPriority)
	ids := make([]int64, 0, len(got))
	for _, t := range got {
		ids = append(ids, t.ID)
	}
	assert.Equal(t, []int64{2, 4, 3, 1}, ids)
	assert.Equal(t, int64(1), in[0].ID, "input must not be reordered")
}

func TestSortAgendaByDate(t *testing.T) {
	in := []domain.Task{
		{ID: 1, DueDate: at("2024-01-03T12:00:00")},
		{ID: 2, DueDate: at("2024-01-03T08:00:00")},
		{ID: 3, DueDate: at("2024-01-03T12:00:00")},
	}
	got := view.SortAgenda(in, domain.SortDate)
	assert.Equal(t, []int64{2, 1, 3}, []int64{got[0].ID, got[1].ID, got[2].ID})
}

func TestMemoAgenda(t *testing.T) {
	day := at("2024-01-03T08:00:00")
	tasks := []domain.Task{{ID: 1, DueDate: day}}
	var m view.Memo

	first := m.Agenda(1, tasks, day, domain.FilterAll, domain.SortDate)
	second := m.Agenda(1, tasks, day, domain.FilterAll, domain.SortDate)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.Hits())

	tasks = append(tasks, domain.Task{ID: 2, DueDate: day})
	third := m.Agenda(2, tasks, day, domain.FilterAll, domain.SortDate)
	assert.Len(t, third, 2)
	assert.Equal(t, 1, m.Hits())
}

func TestDownloadStatusAndPlayback(t *testing.T) {
	v1 := domain.Video{ID: "v1", VideoURL: "https://cdn/v1.mp4"}
	v2 := domain.Video{ID: "v2", VideoURL: "https://cdn/v2.mp4"}
	set := []domain.DownloadedVideo{{Video: v1, LocalPath: "/media/v1.mp4"}}

	assert.Equal(t, view.StatusDownloaded, view.DownloadStatus(v1, set))
	assert.Equal(t, view.StatusNotDownloaded, view.DownloadStatus(v2, set))

	assert.Equal(t, view.Source{Kind: view.SourceLocal, Location: "/media/v1.mp4"}, view.PlaybackSource(v1, set))
	assert.Equal(t, view.Source{Kind: view.SourceRemote, Location: "https://cdn/v2.mp4"}, view.PlaybackSource(v2, set))

	items := view.Catalog([]domain.Video{v1, v2}, set)
	require.Len(t, items, 2)
	assert.Equal(t, view.StatusDownloaded, items[0].Status)
	assert.Equal(t, "/media/v1.mp4", items[0].LocalPath)
	assert.Equal(t, view.StatusNotDownloaded, items[1].Status)
}
