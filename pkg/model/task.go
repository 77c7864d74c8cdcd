package model

import (
	"fmt"
	"strings"
	"time"
)

// Task status values as returned by the TickTick open API.
// Normal: 0, Completed: 2. Checklist items use 0/1 instead.
const (
	StatusNormal    = 0
	StatusCompleted = 2

	ItemStatusNormal    = 0
	ItemStatusCompleted = 1
)

// Priority values: None: 0, Low: 1, Medium: 3, High: 5.
const (
	PriorityNone   = 0
	PriorityLow    = 1
	PriorityMedium = 3
	PriorityHigh   = 5
)

// ticktickTimeLayout is the timestamp format used by the TickTick API,
// e.g. "2023-01-01T12:00:00.000+0000".
const ticktickTimeLayout = "2006-01-02T15:04:05.000-0700"

// APITime wraps time.Time to handle TickTick's JSON timestamp format.
type APITime struct {
	time.Time
}

// UnmarshalJSON implements the json.Unmarshaler interface for APITime.
func (t *APITime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := time.Parse(ticktickTimeLayout, s)
	if err != nil {
		// Some endpoints return plain RFC 3339.
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("failed to parse TickTick time string '%s': %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface for APITime.
func (t APITime) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + t.Time.Format(ticktickTimeLayout) + `"`), nil
}

// ChecklistItem is an embedded checklist entry inside a task.
type ChecklistItem struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Status        int      `json:"status"`
	StartDate     *APITime `json:"startDate,omitempty"`
	CompletedTime *APITime `json:"completedTime,omitempty"`
}

// Task is a validated task record from the remote API.
type Task struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"projectId"`
	ParentID      string          `json:"parentId,omitempty"`
	Title         string          `json:"title"`
	Desc          string          `json:"desc,omitempty"`
	Content       string          `json:"content,omitempty"`
	Status        int             `json:"status"`
	Priority      int             `json:"priority"`
	StartDate     *APITime        `json:"startDate,omitempty"`
	DueDate       *APITime        `json:"dueDate,omitempty"`
	CompletedTime *APITime        `json:"completedTime,omitempty"`
	RepeatFlag    string          `json:"repeatFlag,omitempty"`
	Items         []ChecklistItem `json:"items,omitempty"`

	// Children is filled in by the hierarchy resolver, never by the API.
	Children []*Task `json:"-"`
}

// Project is a remote grouping container, mapped to an output subdirectory.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
