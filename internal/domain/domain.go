package domain

import (
	"fmt"
	"time"
)

// DefaultColor is the card swatch applied when a task has none.
const DefaultColor = "#FFF9C4"

// DefaultDescription decorates tasks hydrated from the remote todo source.
const DefaultDescription = "No description"

// ColorOptions are the swatches offered by the task form.
var ColorOptions = []string{"#FFF9C4", "#FFB6C1", "#00BFFF", "#B2FF59", "#6C63FF"}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities by severity; unknown values rank with low.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityLow, nil
	}
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q (low, medium, high)", s)
	}
	return p, nil
}

type Filter string

const (
	FilterAll        Filter = "all"
	FilterCompleted  Filter = "completed"
	FilterIncomplete Filter = "incomplete"
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterCompleted, FilterIncomplete:
		return true
	}
	return false
}

type SortKey string

const (
	SortDate     SortKey = "date"
	SortPriority SortKey = "priority"
)

func (s SortKey) Valid() bool {
	return s == SortDate || s == SortPriority
}

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"dueDate" format:"date-time"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority" enum:"low,medium,high"`
	Color       string    `json:"color,omitempty"`
}

type Video struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Duration     string `json:"duration"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoURL     string `json:"videoUrl"`
}

type DownloadedVideo struct {
	Video
	LocalPath string `json:"localPath"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
