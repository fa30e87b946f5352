package contextmgr

import (
	"regexp"
	"strings"

	"github.com/openmargin/margin/internal/domain"
)

var wordRe = regexp.MustCompile(`\w+`)

// RelevantDocuments returns the ids of candidate documents the
// conversation appears to reference, in candidate order. A document
// matches on a literal title or id mention, or on sufficient word
// overlap between the conversation and its title plus tags.
func (e *Extractor) RelevantDocuments(conversationText string, candidates []domain.Document) []string {
	relevant := []string{}
	conversation := strings.ToLower(conversationText)
	conversationWords := tokenSet(conversation)

	for _, doc := range candidates {
		id := doc.ID.String()
		title := strings.ToLower(doc.Title)

		if (title != "" && strings.Contains(conversation, title)) || strings.Contains(conversation, strings.ToLower(id)) {
			relevant = append(relevant, id)
			continue
		}

		docText := title
		for _, tag := range doc.Tags {
			docText += " " + strings.ToLower(tag)
		}
		docWords := tokenSet(docText)
		if len(docWords) == 0 {
			continue
		}

		common := 0
		for w := range conversationWords {
			if _, ok := docWords[w]; ok {
				common++
			}
		}
		if common > 2 && float64(common)/float64(len(docWords)) > 0.3 {
			relevant = append(relevant, id)
		}
	}

	return relevant
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(s, -1) {
		set[w] = struct{}{}
	}
	return set
}
