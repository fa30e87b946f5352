package contextmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openmargin/margin/internal/domain"
)

func task(desc string, status domain.TaskStatus, priority domain.TaskPriority) domain.Task {
	return domain.Task{ID: "task-" + desc, Description: desc, Status: status, Priority: priority}
}

func TestInsightsEmptyContext(t *testing.T) {
	e := NewExtractor()
	got := e.Insights(newContext())

	assert.Equal(t, 0, got.TaskSummary.Total)
	assert.Equal(t, 0.0, got.ProgressPercentage)
	assert.Empty(t, got.NextSuggestedAction)
	assert.Equal(t, "simple", got.EstimatedComplexity)
}

func TestInsightsProgressAndCounts(t *testing.T) {
	chatCtx := newContext()
	chatCtx.Tasks = []domain.Task{
		task("a", domain.TaskCompleted, domain.PriorityMedium),
		task("b", domain.TaskCompleted, domain.PriorityHigh),
		task("c", domain.TaskPending, domain.PriorityMedium),
		task("d", domain.TaskPending, domain.PriorityLow),
	}

	e := NewExtractor()
	got := e.Insights(chatCtx)

	assert.Equal(t, 4, got.TaskSummary.Total)
	assert.Equal(t, 2, got.TaskSummary.Completed)
	assert.Equal(t, 2, got.TaskSummary.Pending)
	assert.Equal(t, 1, got.TaskSummary.HighPriority)
	assert.Equal(t, 50.0, got.ProgressPercentage)
	assert.Equal(t, "medium", got.EstimatedComplexity)
}

func TestInsightsNextActionPrefersHighPriority(t *testing.T) {
	chatCtx := newContext()
	chatCtx.Tasks = []domain.Task{
		task("first pending", domain.TaskPending, domain.PriorityMedium),
		task("urgent one", domain.TaskPending, domain.PriorityHigh),
		task("done already", domain.TaskCompleted, domain.PriorityHigh),
	}

	e := NewExtractor()
	assert.Equal(t, "urgent one", e.Insights(chatCtx).NextSuggestedAction)
}

func TestInsightsNextActionFallsBackToFirstPending(t *testing.T) {
	chatCtx := newContext()
	chatCtx.Tasks = []domain.Task{
		task("done", domain.TaskCompleted, domain.PriorityHigh),
		task("waiting", domain.TaskPending, domain.PriorityLow),
	}

	e := NewExtractor()
	assert.Equal(t, "waiting", e.Insights(chatCtx).NextSuggestedAction)
}

func TestInsightsComplexityBuckets(t *testing.T) {
	e := NewExtractor()
	chatCtx := newContext()

	for i := 0; i < 6; i++ {
		chatCtx.Tasks = append(chatCtx.Tasks, task(string(rune('a'+i)), domain.TaskPending, domain.PriorityMedium))
		got := e.Insights(chatCtx)
		switch {
		case len(chatCtx.Tasks) <= 2:
			assert.Equal(t, "simple", got.EstimatedComplexity)
		case len(chatCtx.Tasks) <= 5:
			assert.Equal(t, "medium", got.EstimatedComplexity)
		default:
			assert.Equal(t, "complex", got.EstimatedComplexity)
		}
	}
}
