package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tickdown/tickdown/pkg/hierarchy"
	"github.com/tickdown/tickdown/pkg/model"
)

func resolve(t *testing.T, projects []model.Project, tasks []model.Task) []hierarchy.ProjectTree {
	t.Helper()
	trees, skipped := hierarchy.Resolve(projects, tasks, zap.NewNop())
	require.Zero(t, skipped)
	return trees
}

func workFixture() ([]model.Project, []model.Task) {
	projects := []model.Project{{ID: "p1", Name: "Work"}}
	tasks := []model.Task{
		{ID: "t1", ProjectID: "p1", Title: "Report", Priority: model.PriorityHigh},
		{ID: "t2", ProjectID: "p1", Title: "Draft", ParentID: "t1"},
	}
	return projects, tasks
}

func TestRunWritesScenario(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tasks")
	projects, tasks := workFixture()

	syncer := NewSyncer(root, false, zap.NewNop())
	stats, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Written)
	assert.Zero(t, stats.Failed)

	parent, err := os.ReadFile(filepath.Join(root, "Work", "t1.md"))
	require.NoError(t, err)
	assert.Contains(t, string(parent), "title: Report")
	assert.Contains(t, string(parent), "project: Work")
	assert.Contains(t, string(parent), "priority: 🔴")
	assert.Contains(t, string(parent), "## Subtasks")
	assert.Contains(t, string(parent), "[[t2|Draft]]")

	child, err := os.ReadFile(filepath.Join(root, "Work", "t2.md"))
	require.NoError(t, err)
	assert.Contains(t, string(child), "title: Draft")
	assert.NotContains(t, string(child), "## Subtasks")
}

func TestRunIsIdempotent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tasks")
	projects, tasks := workFixture()

	syncer := NewSyncer(root, false, zap.NewNop())
	_, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)

	// Resolve again from fresh task values: the second run must not touch
	// anything.
	projects, tasks = workFixture()
	stats, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)
	assert.Zero(t, stats.Written)
	assert.Equal(t, 2, stats.Unchanged)
	assert.Zero(t, stats.Deleted)
}

func TestRunMinimalDiff(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tasks")
	projects, tasks := workFixture()

	syncer := NewSyncer(root, false, zap.NewNop())
	_, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)

	projects, tasks = workFixture()
	tasks[1].Title = "Final Draft"
	stats, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)

	// t2's content changed; t1's subtask link title changed with it. In id
	// filename mode no other file is affected.
	assert.Equal(t, 2, stats.Written)
	assert.Zero(t, stats.Deleted)

	// Changing nothing but an unrelated field of the fetch leaves t2 alone.
	projects, tasks = workFixture()
	tasks[1].Title = "Final Draft"
	stats, err = syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)
	assert.Zero(t, stats.Written)
}

func TestRunRemovesOrphans(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tasks")
	projects := []model.Project{
		{ID: "p1", Name: "Work"},
		{ID: "p2", Name: "Home"},
	}
	tasks := []model.Task{
		{ID: "t1", ProjectID: "p1", Title: "Report"},
		{ID: "t2", ProjectID: "p2", Title: "Groceries"},
	}

	syncer := NewSyncer(root, false, zap.NewNop())
	_, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(root, "Home", "t2.md"))

	// t2 disappears from the fetch; its file and the now-empty Home
	// directory must go with it.
	stats, err := syncer.Run(context.Background(), resolve(t,
		projects,
		[]model.Task{{ID: "t1", ProjectID: "p1", Title: "Report"}}))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)
	assert.NoFileExists(t, filepath.Join(root, "Home", "t2.md"))
	assert.NoDirExists(t, filepath.Join(root, "Home"))
	assert.FileExists(t, filepath.Join(root, "Work", "t1.md"))
}

func TestRunLeavesForeignFilesAlone(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tasks")
	projects, tasks := workFixture()

	syncer := NewSyncer(root, false, zap.NewNop())
	_, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)

	foreign := filepath.Join(root, "Work", "notes.txt")
	require.NoError(t, os.WriteFile(foreign, []byte("keep me"), 0644))

	projects, tasks = workFixture()
	_, err = syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)
	assert.FileExists(t, foreign)
}

func TestRunTitleInFilenameLinksResolve(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tasks")
	projects, tasks := workFixture()

	syncer := NewSyncer(root, true, zap.NewNop())
	stats, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Written)

	parentPath := filepath.Join(root, "Work", "Report-t1.md")
	childPath := filepath.Join(root, "Work", "Draft-t2.md")
	require.FileExists(t, parentPath)
	require.FileExists(t, childPath)

	// The subtask link stem must match the filename the writer produced.
	parent, err := os.ReadFile(parentPath)
	require.NoError(t, err)
	assert.Contains(t, string(parent), "[[Draft-t2|Draft]]")
}

func TestRunUnwritableRootIsFatal(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks are a no-op")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0500))
	t.Cleanup(func() { os.Chmod(dir, 0700) })

	syncer := NewSyncer(filepath.Join(dir, "tasks"), false, zap.NewNop())
	projects, tasks := workFixture()
	_, err := syncer.Run(context.Background(), resolve(t, projects, tasks))
	assert.Error(t, err)
}
