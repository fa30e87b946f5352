package contextmgr

import "github.com/openmargin/margin/internal/domain"

// TaskSummary aggregates task counts for a context
type TaskSummary struct {
	Total        int `json:"total"`
	Completed    int `json:"completed"`
	Pending      int `json:"pending"`
	HighPriority int `json:"high_priority"`
}

// Insights is a derived, read-only view over a context. It is computed
// on demand and never persisted.
type Insights struct {
	TaskSummary         TaskSummary `json:"task_summary"`
	ProgressPercentage  float64     `json:"progress_percentage"`
	NextSuggestedAction string      `json:"next_suggested_action,omitempty"`
	EstimatedComplexity string      `json:"estimated_complexity"`
}

// Insights derives task counts, progress, the next suggested action,
// and a coarse complexity label from the context's tasks.
func (e *Extractor) Insights(chatCtx *domain.ChatContext) Insights {
	summary := TaskSummary{Total: len(chatCtx.Tasks)}
	for _, t := range chatCtx.Tasks {
		switch t.Status {
		case domain.TaskCompleted:
			summary.Completed++
		case domain.TaskPending:
			summary.Pending++
		}
		if t.Priority == domain.PriorityHigh {
			summary.HighPriority++
		}
	}

	out := Insights{TaskSummary: summary}

	if summary.Total > 0 {
		out.ProgressPercentage = float64(summary.Completed) / float64(summary.Total) * 100
	}

	// High-priority pending tasks first, then any pending task.
	for _, t := range chatCtx.Tasks {
		if t.Status == domain.TaskPending && t.Priority == domain.PriorityHigh {
			out.NextSuggestedAction = t.Description
			break
		}
	}
	if out.NextSuggestedAction == "" {
		for _, t := range chatCtx.Tasks {
			if t.Status == domain.TaskPending {
				out.NextSuggestedAction = t.Description
				break
			}
		}
	}

	switch {
	case summary.Total <= 2:
		out.EstimatedComplexity = "simple"
	case summary.Total <= 5:
		out.EstimatedComplexity = "medium"
	default:
		out.EstimatedComplexity = "complex"
	}

	return out
}
