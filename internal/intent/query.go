package intent

import (
	"regexp"
	"strconv"
	"strings"

	"tasktalk/internal/domain"
)

// ContradictionError reports a filter request that can never match anything,
// such as asking for tasks that are both completed and pending. The caller
// turns it into a clarifying question rather than running the query.
type ContradictionError struct {
	Reason string
}

func (e *ContradictionError) Error() string { return e.Reason }

var (
	keywordPhraseRe = regexp.MustCompile(`(?i)\b(?:about|containing|matching|mentioning|related to|search for)\s+(.+?)(?:\s+sorted\b|\s+by\s+\w|$)`)
	quotedRe        = regexp.MustCompile(`"([^"]+)"`)
	tagPhraseRe     = regexp.MustCompile(`(?i)\b(?:tagged(?:\s+with)?|with\s+tag)\s+#?([\p{L}\p{N}_-]+)`)
	hashTagRe       = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)
	categoryRe      = regexp.MustCompile(`(?i)\b(?:in\s+(?:the\s+)?([\p{L}\p{N} _-]+?)\s+category|category\s+([\p{L}\p{N}_-]+))`)
	adjCategoryRe   = regexp.MustCompile(`(?i)\b([\p{L}\p{N}_-]+)\s+tasks?\b`)
	limitRe         = regexp.MustCompile(`(?i)\b(?:first|top)\s+(\d{1,4})\b`)
)

// Words that may sit directly before "tasks" without naming a category.
var categoryStopWords = map[string]bool{
	"all": true, "my": true, "the": true, "me": true, "any": true, "some": true,
	"priority": true, "pending": true, "completed": true, "done": true,
	"finished": true, "incomplete": true, "unfinished": true, "open": true,
	"outstanding": true, "overdue": true, "recurring": true, "these": true,
	"those": true, "new": true, "recent": true, "remaining": true,
	"show": true, "list": true, "view": true, "display": true, "get": true,
	"find": true, "first": true, "top": true, "of": true,
}

var pendingWords = map[string]bool{
	"pending": true, "incomplete": true, "unfinished": true,
	"open": true, "outstanding": true, "remaining": true,
}

var completedWords = map[string]bool{
	"completed": true, "done": true, "finished": true,
}

// filterTier maps a priority word to the tier used for filtering. Urgency
// words collapse onto the high tier; the store matches high as high or
// critical.
func filterTier(word string) (string, bool) {
	p, ok := priorityWords[word]
	if !ok {
		return "", false
	}
	if p == domain.PriorityCritical {
		return domain.PriorityHigh, true
	}
	return p, true
}

// TranslateQuery turns a listing utterance into a structured query. It only
// extracts what the text states; defaults are applied by QuerySpec.Normalize.
// Filters always combine with AND.
func TranslateQuery(utterance string) (domain.QuerySpec, error) {
	var q domain.QuerySpec
	s := strings.TrimSpace(utterance)

	// Pull the free-text search phrase out first so its words are not
	// mistaken for status or priority filters.
	rest := s
	if m := quotedRe.FindStringSubmatch(rest); m != nil {
		q.Keyword = strings.TrimSpace(m[1])
		rest = strings.Replace(rest, m[0], " ", 1)
	} else if m := keywordPhraseRe.FindStringSubmatch(rest); m != nil {
		q.Keyword = strings.TrimSpace(m[1])
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	if m := tagPhraseRe.FindStringSubmatch(rest); m != nil {
		q.Tags = append(q.Tags, strings.ToLower(m[1]))
		rest = strings.Replace(rest, m[0], " ", 1)
	}
	for _, m := range hashTagRe.FindAllStringSubmatch(rest, -1) {
		name := strings.ToLower(m[1])
		if !containsString(q.Tags, name) {
			q.Tags = append(q.Tags, name)
		}
	}
	rest = hashTagRe.ReplaceAllString(rest, " ")

	if m := categoryRe.FindStringSubmatch(rest); m != nil {
		if m[1] != "" {
			q.Category = strings.TrimSpace(m[1])
		} else {
			q.Category = m[2]
		}
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	if m := limitRe.FindStringSubmatch(rest); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			q.Limit = n
		}
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	q.Sort = parseSort(rest)

	lower := strings.ToLower(rest)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	})
	var sawPending, sawCompleted bool
	prev := ""
	for _, w := range words {
		negated := prev == "not" || prev == "aren't" || prev == "isn't"
		switch {
		case pendingWords[w]:
			if negated {
				sawCompleted = true
			} else {
				sawPending = true
			}
		case completedWords[w]:
			if negated {
				sawPending = true
			} else {
				sawCompleted = true
			}
		default:
			if tier, ok := filterTier(w); ok {
				if q.Priority != "" && q.Priority != tier {
					return domain.QuerySpec{}, &ContradictionError{
						Reason: "That asks for two different priorities at once. Which priority do you want: low, medium or high?",
					}
				}
				q.Priority = tier
			}
		}
		prev = w
	}
	if sawPending && sawCompleted {
		return domain.QuerySpec{}, &ContradictionError{
			Reason: "A task cannot be both completed and pending. Which of the two do you want to see?",
		}
	}
	if sawPending {
		q.Status = "pending"
	}
	if sawCompleted {
		q.Status = "completed"
	}

	// An adjective directly before "tasks" that is not a recognized filter
	// word is treated as a category name, e.g. "show my work tasks".
	if q.Category == "" {
		for _, m := range adjCategoryRe.FindAllStringSubmatch(rest, -1) {
			w := strings.ToLower(m[1])
			if categoryStopWords[w] {
				continue
			}
			if _, isPriority := priorityWords[w]; isPriority {
				continue
			}
			if pendingWords[w] || completedWords[w] {
				continue
			}
			q.Category = w
			break
		}
	}

	return q, nil
}

func parseSort(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "by due date") || strings.Contains(lower, "by deadline"):
		if strings.Contains(lower, "descending") || strings.Contains(lower, "latest first") {
			return domain.SortDueDesc
		}
		return domain.SortDueAsc
	case strings.Contains(lower, "by priority"):
		return domain.SortPriorityDesc
	case strings.Contains(lower, "alphabetical") || strings.Contains(lower, "by title") || strings.Contains(lower, "by name"):
		return domain.SortTitleAsc
	case strings.Contains(lower, "newest first") || strings.Contains(lower, "most recent"):
		return domain.SortCreatedDesc
	}
	return ""
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
