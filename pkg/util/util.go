package util

import (
	"regexp"
	"strings"

	"github.com/tickdown/tickdown/pkg/model"
)

// maxTitleStemLen limits the title portion of a filename stem.
const maxTitleStemLen = 50

var (
	invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscoreRuns   = regexp.MustCompile(`_+`)
)

// SanitizeName replaces characters that are illegal in filesystem paths with
// underscores, trims leading/trailing spaces and dots, and collapses runs of
// underscores. The result may be empty; callers choose their own fallback.
func SanitizeName(name string) string {
	sanitized := invalidPathChars.ReplaceAllString(name, "_")
	sanitized = strings.Trim(sanitized, " .")
	sanitized = underscoreRuns.ReplaceAllString(sanitized, "_")
	return sanitized
}

// FileStem returns the filename stem (without extension) for a task. The
// default policy is the task id alone. With includeTitle, the stem is the
// sanitized title truncated to 50 runes plus "-" plus the task id, so stems
// stay unique even when titles collide.
//
// The markdown renderer and the sync writer must both use this function so
// that subtask links always resolve to files the writer produces.
func FileStem(task *model.Task, includeTitle bool) string {
	if !includeTitle {
		return task.ID
	}
	title := SanitizeName(task.Title)
	if runes := []rune(title); len(runes) > maxTitleStemLen {
		title = string(runes[:maxTitleStemLen])
	}
	if title == "" {
		return task.ID
	}
	return title + "-" + task.ID
}

// ProjectDirNames maps each project id to its output directory name. Names
// that collide after sanitization are disambiguated by appending "-<id>" to
// every later project, which is deterministic because the fetch order is.
func ProjectDirNames(projects []model.Project) map[string]string {
	dirs := make(map[string]string, len(projects))
	taken := make(map[string]bool, len(projects))
	for _, p := range projects {
		name := SanitizeName(p.Name)
		if name == "" {
			name = "unnamed_project"
		}
		if taken[name] {
			name = name + "-" + p.ID
		}
		taken[name] = true
		dirs[p.ID] = name
	}
	return dirs
}
