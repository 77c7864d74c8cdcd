package frontmatter

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tickdown/tickdown/pkg/model"
)

// dateLayout is the frontmatter timestamp format.
const dateLayout = "2006-01-02 15:04:05"

// Status and priority icons. Unrecognized values fall back to the defaults
// rather than failing.
const (
	IconOpen      = "⬜"
	IconCompleted = "✅"

	IconPriorityNone   = "⚪"
	IconPriorityLow    = "🟢"
	IconPriorityMedium = "🟡"
	IconPriorityHigh   = "🔴"
)

var priorityIcons = map[int]string{
	model.PriorityNone:   IconPriorityNone,
	model.PriorityLow:    IconPriorityLow,
	model.PriorityMedium: IconPriorityMedium,
	model.PriorityHigh:   IconPriorityHigh,
}

// Frontmatter is the normalized metadata record rendered at the top of each
// task file. Field order here fixes the key order in the output.
type Frontmatter struct {
	Title         string `yaml:"title"`
	Project       string `yaml:"project"`
	Icon          string `yaml:"icon"`
	Priority      string `yaml:"priority"`
	StartDate     string `yaml:"startDate,omitempty"`
	DueDate       string `yaml:"dueDate,omitempty"`
	CompletedTime string `yaml:"completedTime,omitempty"`
	RepeatFlag    string `yaml:"repeatFlag,omitempty"`
}

// Map converts a task's raw fields into a Frontmatter record. Title passes
// through verbatim (empty allowed); project is the owning project's display
// name; absent dates omit their key entirely.
func Map(task *model.Task, projectName string) Frontmatter {
	return Frontmatter{
		Title:         task.Title,
		Project:       projectName,
		Icon:          StatusIcon(task.Status),
		Priority:      PriorityIcon(task.Priority),
		StartDate:     FormatDate(task.StartDate),
		DueDate:       FormatDate(task.DueDate),
		CompletedTime: FormatDate(task.CompletedTime),
		RepeatFlag:    task.RepeatFlag,
	}
}

// Encode renders the record as a YAML document, trailing newline included.
func (f Frontmatter) Encode() (string, error) {
	b, err := yaml.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}
	return string(b), nil
}

// StatusIcon maps a task status to its presentational symbol.
func StatusIcon(status int) string {
	if status == model.StatusCompleted {
		return IconCompleted
	}
	return IconOpen
}

// PriorityIcon maps a priority value to its presentational symbol.
func PriorityIcon(priority int) string {
	if icon, ok := priorityIcons[priority]; ok {
		return icon
	}
	return IconPriorityNone
}

// ItemStatusIcon maps a checklist item status to its symbol. Items use a
// different completed value (1) than tasks (2).
func ItemStatusIcon(status int) string {
	if status == model.ItemStatusCompleted {
		return IconCompleted
	}
	return IconOpen
}

// FormatDate renders an optional timestamp as "YYYY-MM-DD HH:MM:SS", or ""
// when absent.
func FormatDate(t *model.APITime) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
