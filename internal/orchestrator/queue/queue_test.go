package queue

import (
	"testing"
	"time"

	"github.com/agentboard/agentboard/internal/task/models"
	v1 "github.com/agentboard/agentboard/pkg/api/v1"
)

var baseTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// createTestTask creates a task for testing with the given parameters
func createTestTask(id string, priority v1.TaskPriority, position int) *models.Task {
	return &models.Task{
		ID:        id,
		ProjectID: "test-project",
		Title:     "Test Task " + id,
		Priority:  priority,
		Position:  position,
		Status:    v1.TaskStatusTodo,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func ids(tasks []*models.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.ID
	}
	return out
}

func assertOrder(t *testing.T, got []*models.Task, want ...string) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s (order %v)", i, want[i], gotIDs[i], gotIDs)
		}
	}
}

func TestOrderEmpty(t *testing.T) {
	if got := Order(nil); len(got) != 0 {
		t.Errorf("expected no tasks, got %d", len(got))
	}
}

func TestPriorityOrdering(t *testing.T) {
	got := Order([]*models.Task{
		createTestTask("none", v1.PriorityNone, 0),
		createTestTask("low", v1.PriorityLow, 1),
		createTestTask("urgent", v1.PriorityUrgent, 2),
		createTestTask("medium", v1.PriorityMedium, 3),
		createTestTask("high", v1.PriorityHigh, 4),
	})
	assertOrder(t, got, "urgent", "high", "medium", "low", "none")
}

func TestUnknownPriorityRanksAsMedium(t *testing.T) {
	got := Order([]*models.Task{
		createTestTask("low", v1.PriorityLow, 0),
		createTestTask("unset", "", 1),
	})
	assertOrder(t, got, "unset", "low")
}

func TestSamePriorityFollowsBoardPosition(t *testing.T) {
	got := Order([]*models.Task{
		createTestTask("third", v1.PriorityHigh, 2),
		createTestTask("first", v1.PriorityHigh, 0),
		createTestTask("second", v1.PriorityHigh, 1),
	})
	assertOrder(t, got, "first", "second", "third")
}

func TestSamePositionFallsBackToCreationThenInput(t *testing.T) {
	older := createTestTask("older", v1.PriorityMedium, 0)
	older.CreatedAt = baseTime.Add(-time.Minute)
	a := createTestTask("a", v1.PriorityMedium, 0)
	b := createTestTask("b", v1.PriorityMedium, 0)

	assertOrder(t, Order([]*models.Task{a, b, older}), "older", "a", "b")
	assertOrder(t, Order([]*models.Task{b, a, older}), "older", "b", "a")
}

func TestOrderDropsDuplicates(t *testing.T) {
	task := createTestTask("dup", v1.PriorityMedium, 0)
	got := Order([]*models.Task{task, createTestTask("other", v1.PriorityLow, 1), task})
	assertOrder(t, got, "dup", "other")
}

func TestOrderDoesNotModifyInput(t *testing.T) {
	input := []*models.Task{
		createTestTask("low", v1.PriorityLow, 0),
		createTestTask("urgent", v1.PriorityUrgent, 1),
	}
	_ = Order(input)
	if input[0].ID != "low" || input[1].ID != "urgent" {
		t.Errorf("input reordered: %v", ids(input))
	}
}
