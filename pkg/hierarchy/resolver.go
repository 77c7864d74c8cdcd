package hierarchy

import (
	"go.uber.org/zap"

	"github.com/tickdown/tickdown/pkg/model"
)

// ProjectTree is one project with its fully resolved task forest. Roots and
// every Children slice preserve the order tasks were received from the API,
// so output is deterministic across runs when remote order is stable.
type ProjectTree struct {
	Project model.Project
	Roots   []*model.Task
}

// Resolve reconstructs parent/child and project/task relationships from the
// flat fetch result. It returns one tree per project (in project fetch
// order) and the number of tasks skipped because their project is unknown.
//
// Dangling parent references degrade to top-level. Cycles in the parent
// graph are broken at the most recently discovered back edge, so cyclic
// input can never cause unbounded recursion.
func Resolve(projects []model.Project, tasks []model.Task, logger *zap.Logger) ([]ProjectTree, int) {
	if logger == nil {
		logger = zap.NewNop()
	}

	knownProjects := make(map[string]bool, len(projects))
	for _, p := range projects {
		knownProjects[p.ID] = true
	}

	// Keep only tasks that belong to a known project, preserving order.
	skipped := 0
	kept := make([]*model.Task, 0, len(tasks))
	byID := make(map[string]*model.Task, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if !knownProjects[t.ProjectID] {
			logger.Warn("Skipping task with unknown project",
				zap.String("task", t.ID), zap.String("project", t.ProjectID))
			skipped++
			continue
		}
		t.Children = nil
		kept = append(kept, t)
		byID[t.ID] = t
	}

	breakCycles(kept, byID, logger)

	// Invert parentId into Children and collect roots per project.
	roots := make(map[string][]*model.Task, len(projects))
	for _, t := range kept {
		parent, ok := byID[t.ParentID]
		if t.ParentID == "" || !ok {
			if t.ParentID != "" {
				logger.Warn("Task has dangling parent reference, treating as top-level",
					zap.String("task", t.ID), zap.String("parent", t.ParentID))
			}
			roots[t.ProjectID] = append(roots[t.ProjectID], t)
			continue
		}
		parent.Children = append(parent.Children, t)
	}

	trees := make([]ProjectTree, 0, len(projects))
	for _, p := range projects {
		trees = append(trees, ProjectTree{Project: p, Roots: roots[p.ID]})
	}
	return trees, skipped
}

// breakCycles severs the parent link of any task whose ancestor chain loops
// back on itself. Walking from each task, the first ancestor whose parent is
// already on the chain is the back edge; that ancestor is promoted to
// top-level.
func breakCycles(tasks []*model.Task, byID map[string]*model.Task, logger *zap.Logger) {
	for _, t := range tasks {
		seen := map[string]bool{t.ID: true}
		cur := t
		for cur.ParentID != "" {
			parent, ok := byID[cur.ParentID]
			if !ok {
				break
			}
			if seen[parent.ID] {
				logger.Warn("Cycle detected in parent/child graph, breaking link",
					zap.String("task", cur.ID), zap.String("parent", parent.ID))
				cur.ParentID = ""
				break
			}
			seen[parent.ID] = true
			cur = parent
		}
	}
}

// Walk visits every task in the tree in depth-first order, parents before
// children.
func (pt ProjectTree) Walk(visit func(*model.Task)) {
	var walk func(nodes []*model.Task)
	walk = func(nodes []*model.Task) {
		for _, n := range nodes {
			visit(n)
			walk(n.Children)
		}
	}
	walk(pt.Roots)
}
