// Package sync materializes rendered task trees under the export root and
// reconciles them with whatever a previous run left on disk.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tickdown/tickdown/pkg/frontmatter"
	"github.com/tickdown/tickdown/pkg/hierarchy"
	"github.com/tickdown/tickdown/pkg/markdown"
	"github.com/tickdown/tickdown/pkg/model"
	"github.com/tickdown/tickdown/pkg/util"
)

// Stats summarizes one writer run. Failed counts per-file errors; the run
// keeps going past them, but the process should exit non-zero when any
// occurred.
type Stats struct {
	Written   int
	Unchanged int
	Deleted   int
	Failed    int
}

// Syncer writes the rendered tree below Root.
type Syncer struct {
	Root         string
	IncludeTitle bool
	Logger       *zap.Logger
}

// NewSyncer creates a Syncer for the given export root.
func NewSyncer(root string, includeTitle bool, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{Root: root, IncludeTitle: includeTitle, Logger: logger}
}

// Run renders every task in every tree to <root>/<project-dir>/<stem>.md,
// rewriting a file only when its content actually changed, then removes
// files for tasks that no longer exist remotely along with directories left
// empty. An unwritable root is fatal; individual file failures are counted
// in Stats and logged.
func (s *Syncer) Run(ctx context.Context, trees []hierarchy.ProjectTree) (Stats, error) {
	var stats Stats

	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return stats, fmt.Errorf("failed to create export root %s: %w", s.Root, err)
	}

	projects := make([]model.Project, 0, len(trees))
	for _, tree := range trees {
		projects = append(projects, tree.Project)
	}
	dirNames := util.ProjectDirNames(projects)

	stem := func(t *model.Task) string {
		return util.FileStem(t, s.IncludeTitle)
	}

	expected := make(map[string]bool)
	for _, tree := range trees {
		projectDir := filepath.Join(s.Root, dirNames[tree.Project.ID])
		var walkErr error
		tree.Walk(func(task *model.Task) {
			if walkErr == nil {
				walkErr = ctx.Err()
			}
			if walkErr != nil {
				return
			}

			fm := frontmatter.Map(task, tree.Project.Name)
			content, err := markdown.Render(task, fm, stem)
			if err != nil {
				s.Logger.Warn("Failed to render task", zap.String("task", task.ID), zap.Error(err))
				stats.Failed++
				return
			}

			path := filepath.Join(projectDir, stem(task)+".md")
			expected[path] = true
			switch changed, err := s.writeFile(path, []byte(content)); {
			case err != nil:
				s.Logger.Warn("Failed to write task file", zap.String("path", path), zap.Error(err))
				stats.Failed++
			case changed:
				s.Logger.Debug("Wrote task file", zap.String("path", path))
				stats.Written++
			default:
				stats.Unchanged++
			}
		})
		if walkErr != nil {
			return stats, walkErr
		}
	}

	s.cleanOrphans(expected, &stats)
	return stats, nil
}

// writeFile writes content to path only if it differs from what is already
// on disk. Writes go to a temporary file first and are renamed into place,
// so a cancelled run never leaves a partially written file.
func (s *Syncer) writeFile(path string, content []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create project directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tickdown-*")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to rename temp file: %w", err)
	}
	return true, nil
}

// cleanOrphans deletes markdown files under the root that no current task
// produced, then prunes directories left empty. Files without the .md
// extension are never touched.
func (s *Syncer) cleanOrphans(expected map[string]bool, stats *Stats) {
	var dirs []string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.Logger.Warn("Failed to scan export root", zap.String("path", path), zap.Error(err))
			stats.Failed++
			return nil
		}
		if d.IsDir() {
			if path != s.Root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") || expected[path] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			s.Logger.Warn("Failed to delete orphaned file", zap.String("path", path), zap.Error(err))
			stats.Failed++
			return nil
		}
		s.Logger.Info("Deleted orphaned file", zap.String("path", path))
		stats.Deleted++
		return nil
	})
	if err != nil {
		stats.Failed++
		return
	}

	// Deepest directories first, so nested empties collapse upward.
	sort.Slice(dirs, func(i, j int) bool {
		return strings.Count(dirs[i], string(filepath.Separator)) > strings.Count(dirs[j], string(filepath.Separator))
	})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			s.Logger.Warn("Failed to remove empty directory", zap.String("path", dir), zap.Error(err))
			continue
		}
		s.Logger.Info("Removed empty directory", zap.String("path", dir))
	}
}
