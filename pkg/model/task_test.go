package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskUnmarshal(t *testing.T) {
	input := `{
		"id": "63b7bebb91c0a5474805fcd4",
		"projectId": "6226ff9877acee87727f6bca",
		"title": "Write report",
		"desc": "Quarterly numbers",
		"status": 0,
		"priority": 5,
		"parentId": "63b7bebb91c0a5474805fcd0",
		"dueDate": "2023-01-05T03:00:00.000+0000",
		"items": [
			{"id": "i1", "title": "Outline", "status": 1}
		]
	}`

	var task Task
	require.NoError(t, json.Unmarshal([]byte(input), &task))

	assert.Equal(t, "63b7bebb91c0a5474805fcd4", task.ID)
	assert.Equal(t, "6226ff9877acee87727f6bca", task.ProjectID)
	assert.Equal(t, "63b7bebb91c0a5474805fcd0", task.ParentID)
	assert.Equal(t, PriorityHigh, task.Priority)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, time.Date(2023, 1, 5, 3, 0, 0, 0, time.UTC), task.DueDate.Time.UTC())
	require.Len(t, task.Items, 1)
	assert.Equal(t, ItemStatusCompleted, task.Items[0].Status)
}

func TestAPITimeUnmarshal(t *testing.T) {
	var at APITime
	require.NoError(t, json.Unmarshal([]byte(`"2023-01-01T12:30:00.000+0000"`), &at))
	assert.Equal(t, time.Date(2023, 1, 1, 12, 30, 0, 0, time.UTC), at.Time.UTC())

	// RFC 3339 fallback.
	require.NoError(t, json.Unmarshal([]byte(`"2023-01-01T12:30:00Z"`), &at))
	assert.Equal(t, time.Date(2023, 1, 1, 12, 30, 0, 0, time.UTC), at.Time.UTC())

	// Empty and null decode to the zero time.
	require.NoError(t, json.Unmarshal([]byte(`""`), &at))
	assert.True(t, at.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`null`), &at))
	assert.True(t, at.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"not a date"`), &at))
}
