// Package queue orders a project's tasks when the server builds a run list
// itself: most urgent first, then board position, then creation time.
package queue

import (
	"sort"

	"github.com/agentboard/agentboard/internal/task/models"
)

// Order returns tasks sorted for execution. Ties on priority, position and
// creation time keep input order. Duplicate IDs keep their first occurrence.
func Order(tasks []*models.Task) []*models.Task {
	seen := make(map[string]bool, len(tasks))
	ordered := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		ordered = append(ordered, t)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return ordered
}
