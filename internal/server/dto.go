package server

import (
	"time"

	"daybook/internal/domain"
	"daybook/internal/download"
	"daybook/internal/view"
)

// Request payloads

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     string  `json:"dueDate" doc:"RFC 3339 timestamp or YYYY-MM-DD"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Color       *string `json:"color,omitempty"`
}

type UpdateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     string  `json:"dueDate" doc:"RFC 3339 timestamp or YYYY-MM-DD"`
	Completed   bool    `json:"completed,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high"`
	Color       *string `json:"color,omitempty"`
}

type SetViewRequest struct {
	Filter *string `json:"filter,omitempty" enum:"all,completed,incomplete"`
	Sort   *string `json:"sort,omitempty" enum:"date,priority"`
}

// Response payloads

type TaskListResponse struct {
	Items   []domain.Task `json:"items"`
	Filter  string        `json:"filter"`
	Sort    string        `json:"sort"`
	Loading bool          `json:"loading"`
	Error   string        `json:"error,omitempty"`
}

type ViewResponse struct {
	Filter string `json:"filter"`
	Sort   string `json:"sort"`
}

type AgendaResponse struct {
	Date   string        `json:"date" format:"date"`
	Filter string        `json:"filter"`
	Sort   string        `json:"sort"`
	Items  []domain.Task `json:"items"`
}

type CalendarDay struct {
	Date    string `json:"date" format:"date"`
	InMonth bool   `json:"in_month"`
	Tasks   int    `json:"tasks"`
}

type CalendarResponse struct {
	Month string        `json:"month" example:"2024-05"`
	Days  []CalendarDay `json:"days"`
}

type VideoListResponse struct {
	Items []view.VideoItem `json:"items"`
	Error string           `json:"error,omitempty"`
}

type DownloadResponse struct {
	VideoID string `json:"video_id"`
	download.Result
}

type SourceResponse struct {
	VideoID  string `json:"video_id"`
	Kind     string `json:"kind" enum:"local,remote"`
	Location string `json:"location"`
}

type EventListResponse struct {
	Items []domain.Event `json:"items"`
}

func taskListResponse(items []domain.Task, filter domain.Filter, sort domain.SortKey, loading bool, err error) TaskListResponse {
	if items == nil {
		items = []domain.Task{}
	}
	resp := TaskListResponse{Items: items, Filter: string(filter), Sort: string(sort), Loading: loading}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func calendarResponse(anchor time.Time, tasks []domain.Task) CalendarResponse {
	grid := view.MonthGrid(anchor)
	resp := CalendarResponse{Month: anchor.Format("2006-01"), Days: make([]CalendarDay, 0, len(grid))}
	for _, day := range grid {
		count := 0
		for _, t := range tasks {
			if !t.DueDate.IsZero() && view.SameDay(t.DueDate, day) {
				count++
			}
		}
		resp.Days = append(resp.Days, CalendarDay{
			Date:    day.Format(dateLayout),
			InMonth: day.Month() == anchor.Month() && day.Year() == anchor.Year(),
			Tasks:   count,
		})
	}
	return resp
}
