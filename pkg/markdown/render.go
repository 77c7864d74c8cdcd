// Package markdown turns resolved task nodes into markdown documents.
// Rendering is pure: the same node always produces byte-identical output.
package markdown

import (
	"fmt"
	"strings"

	"github.com/tickdown/tickdown/pkg/frontmatter"
	"github.com/tickdown/tickdown/pkg/model"
)

// StemFunc resolves a task to its filename stem. It must be the same
// function the sync writer uses, so subtask links always point at files the
// writer actually produces.
type StemFunc func(*model.Task) string

// Render serializes one task node: YAML frontmatter block, then Description,
// Content, Subtasks and Checklist sections. Empty sections are omitted
// entirely.
func Render(task *model.Task, fm frontmatter.Frontmatter, stem StemFunc) (string, error) {
	head, err := fm.Encode()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString(head)
	b.WriteString("---\n")

	if task.Desc != "" {
		b.WriteString("\n## Description\n")
		writeBody(&b, task.Desc)
	}
	if task.Content != "" {
		b.WriteString("\n## Content\n")
		writeBody(&b, task.Content)
	}

	if len(task.Children) > 0 {
		b.WriteString("\n## Subtasks\n\n")
		for _, child := range task.Children {
			fmt.Fprintf(&b, "- [[%s|%s]]\n", stem(child), child.Title)
		}
	}

	if len(task.Items) > 0 {
		b.WriteString("\n## Checklist\n\n")
		for _, item := range task.Items {
			fmt.Fprintf(&b, "- %s %s\n", frontmatter.ItemStatusIcon(item.Status), item.Title)
			if d := frontmatter.FormatDate(item.StartDate); d != "" {
				fmt.Fprintf(&b, "  - Start: %s\n", d)
			}
			if d := frontmatter.FormatDate(item.CompletedTime); d != "" {
				fmt.Fprintf(&b, "  - Completed: %s\n", d)
			}
		}
	}

	return b.String(), nil
}

func writeBody(b *strings.Builder, text string) {
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n")
}
