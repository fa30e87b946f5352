package contextmgr

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openmargin/margin/internal/domain"
)

// Extraction pattern sources, recorded on each task so later passes
// and the API can tell where a task came from.
const (
	sourceFreeText     = "free_text"
	sourceNumberedList = "numbered_list"
	sourceBulletList   = "bullet_list"
)

type taskPattern struct {
	re     *regexp.Regexp
	source string
}

var taskPatterns = []taskPattern{
	{regexp.MustCompile(`(?i)(?:need to|should|must|have to|going to|will)\s+([^.!?\n]+)`), sourceFreeText},
	{regexp.MustCompile(`(?i)(?:todo|to-do|task):\s*([^.!?\n]+)`), sourceFreeText},
	{regexp.MustCompile(`(?i)(?:action|step)\s*\d*:\s*([^.!?\n]+)`), sourceFreeText},
	{regexp.MustCompile(`(?i)(?:next|then|after that),?\s*([^.!?\n]+)`), sourceFreeText},
}

var (
	numberedListRe = regexp.MustCompile(`(?m)^\s*\d+\.\s*([^.!?\n]+)`)
	bulletListRe   = regexp.MustCompile(`(?m)^\s*[-*]\s*([^.!?\n]+)`)
	sentenceRe     = regexp.MustCompile(`[.!?]+`)
)

var goalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:trying to|wanting to|goal is to|objective is to|aim is to)\s+([^.!?\n]+)`),
	regexp.MustCompile(`(?i)(?:working on|focusing on)\s+([^.!?\n]+)`),
	regexp.MustCompile(`(?i)(?:problem|issue|challenge):\s*([^.!?\n]+)`),
}

var (
	highPriorityWords = []string{"urgent", "critical", "important", "asap", "priority", "immediately"}
	lowPriorityWords  = []string{"might", "could", "eventually", "later", "someday"}
	questionWords     = []string{"what", "how", "why", "when", "where", "who", "which", "can", "could", "would", "should"}
)

// Extractor derives structured problem context from conversation text
// using lexical heuristics only. All methods are deterministic given
// their inputs except for task id timestamps.
type Extractor struct{}

// NewExtractor creates a new context extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// candidate is one captured task span before merging
type candidate struct {
	description string
	priority    domain.TaskPriority
	source      string
}

// UpdateFromConversation merges tasks, goal, and summary extracted from
// one conversation turn into the context, in place. It never fails: any
// internal error is logged and the context is left as it was.
func (e *Extractor) UpdateFromConversation(chatCtx *domain.ChatContext, userText, assistantText string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("session_id", chatCtx.SessionID.String()).
				Msg("context extraction failed, keeping prior context")
		}
	}()

	candidates := append(e.extractTasks(userText), e.extractTasks(assistantText)...)
	candidates = dedupeCandidates(candidates)
	e.mergeTasks(chatCtx, candidates)

	goals := append(e.extractGoals(userText), e.extractGoals(assistantText)...)
	e.mergeGoal(chatCtx, goals)

	e.updateSummary(chatCtx, userText)
	chatCtx.UpdatedAt = time.Now().UTC()
}

// extractTasks runs the ordered pattern set over one text
func (e *Extractor) extractTasks(text string) []candidate {
	var out []candidate

	for _, p := range taskPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			span := strings.TrimSpace(m[1])
			if len(span) <= 5 {
				continue
			}
			out = append(out, candidate{
				description: span,
				priority:    classifyPriority(span),
				source:      p.source,
			})
		}
	}

	for _, m := range numberedListRe.FindAllStringSubmatch(text, -1) {
		span := strings.TrimSpace(m[1])
		if len(span) <= 5 {
			continue
		}
		out = append(out, candidate{
			description: span,
			priority:    classifyPriority(span),
			source:      sourceNumberedList,
		})
	}

	for _, m := range bulletListRe.FindAllStringSubmatch(text, -1) {
		span := strings.TrimSpace(m[1])
		if len(span) <= 5 || isQuestion(span) {
			continue
		}
		out = append(out, candidate{
			description: span,
			priority:    classifyPriority(span),
			source:      sourceBulletList,
		})
	}

	return out
}

// extractGoals captures goal spans longer than 10 characters
func (e *Extractor) extractGoals(text string) []string {
	var goals []string
	for _, re := range goalPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			span := strings.TrimSpace(m[1])
			if len(span) > 10 {
				goals = append(goals, span)
			}
		}
	}
	return goals
}

// classifyPriority scans the span against the priority keyword sets.
// High wins over low; everything else is medium.
func classifyPriority(span string) domain.TaskPriority {
	lower := strings.ToLower(span)
	for _, w := range highPriorityWords {
		if strings.Contains(lower, w) {
			return domain.PriorityHigh
		}
	}
	for _, w := range lowPriorityWords {
		if strings.Contains(lower, w) {
			return domain.PriorityLow
		}
	}
	return domain.PriorityMedium
}

func isQuestion(span string) bool {
	if strings.HasSuffix(span, "?") {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(span))
	for _, w := range questionWords {
		if strings.HasPrefix(lower, w) {
			return true
		}
	}
	return false
}

// dedupeCandidates drops spans too similar to an earlier-kept span in
// the same pass (threshold 0.8).
func dedupeCandidates(candidates []candidate) []candidate {
	var kept []candidate
	for _, c := range candidates {
		duplicate := false
		for _, k := range kept {
			if jaccard(c.description, k.description) > 0.8 {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, c)
		}
	}
	return kept
}

// mergeTasks appends candidates that don't match an existing task
// (threshold 0.7). Existing tasks are never removed or rewritten.
func (e *Extractor) mergeTasks(chatCtx *domain.ChatContext, candidates []candidate) {
	for _, c := range candidates {
		duplicate := false
		for _, existing := range chatCtx.Tasks {
			if jaccard(c.description, existing.Description) > 0.7 {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		now := time.Now().UTC()
		chatCtx.Tasks = append(chatCtx.Tasks, domain.Task{
			ID:          fmt.Sprintf("task-%d-%d", len(chatCtx.Tasks)+1, now.Unix()),
			Description: c.description,
			Status:      domain.TaskPending,
			Priority:    c.priority,
			Source:      c.source,
			CreatedAt:   now,
		})
	}
}

// mergeGoal keeps the longest goal span from this turn and installs it
// only if strictly longer than the current goal. Length is a proxy for
// specificity; a known approximation.
func (e *Extractor) mergeGoal(chatCtx *domain.ChatContext, goals []string) {
	if len(goals) == 0 {
		return
	}
	best := goals[0]
	for _, g := range goals[1:] {
		if len(g) > len(best) {
			best = g
		}
	}
	if len(best) > len(chatCtx.CurrentGoal) {
		chatCtx.CurrentGoal = best
	}
}

// updateSummary sets the summary once, from the first substantive user
// message. Manual API edits are the only way to change it afterwards.
func (e *Extractor) updateSummary(chatCtx *domain.ChatContext, userText string) {
	if chatCtx.Summary != "" || len(userText) <= 20 {
		return
	}

	sentences := sentenceRe.Split(userText, -1)
	if len(sentences) > 0 && len(strings.TrimSpace(sentences[0])) > 10 {
		chatCtx.Summary = strings.TrimSpace(sentences[0])
		return
	}

	// Truncation counts characters, not bytes, so a multibyte rune is
	// never split mid-sequence.
	if runes := []rune(userText); len(runes) > 150 {
		chatCtx.Summary = strings.TrimSpace(string(runes[:150])) + "..."
	} else {
		chatCtx.Summary = strings.TrimSpace(userText)
	}
}

// jaccard computes word-set similarity between two descriptions:
// intersection size over union size of lowercased whitespace tokens.
func jaccard(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}
