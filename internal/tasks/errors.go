package tasks

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// HydrationError reports that no task list could be adopted: either stored
// tasks could not be read, or nothing was stored and the remote failed.
type HydrationError struct {
	Local  error
	Remote error
}

func (e *HydrationError) Error() string {
	if e.Remote == nil {
		return fmt.Sprintf("hydrate tasks: local: %v", e.Local)
	}
	return fmt.Sprintf("hydrate tasks: local: %v; remote: %v", e.Local, e.Remote)
}

func (e *HydrationError) Unwrap() []error {
	return []error{e.Local, e.Remote}
}

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// ValidateSubmission applies the task form rules. Callers run it before Add
// or a full Update so rejected input never reaches the store.
func ValidateSubmission(title string, due, now time.Time) error {
	fields := map[string]string{}
	if strings.TrimSpace(title) == "" {
		fields["title"] = "Title is required"
	}
	switch {
	case due.IsZero():
		fields["dueDate"] = "Due date is required"
	case due.Before(now):
		fields["dueDate"] = "Due date cannot be in the past"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
