package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"tasktalk/internal/domain"
)

// Keyword tables below are deliberately small and exact. The deterministic
// path never guesses; near-misses fall through to the classifier.

var priorityWords = map[string]string{
	"critical":  domain.PriorityCritical,
	"urgent":    domain.PriorityCritical,
	"asap":      domain.PriorityCritical,
	"emergency": domain.PriorityCritical,
	"high":      domain.PriorityHigh,
	"important": domain.PriorityHigh,
	"medium":    domain.PriorityMedium,
	"normal":    domain.PriorityMedium,
	"low":       domain.PriorityLow,
	"minor":     domain.PriorityLow,
	"someday":   domain.PriorityLow,
	"later":     domain.PriorityLow,
}

// ParsePriority maps a single priority word or phrase to a stored level.
func ParsePriority(text string) (string, bool) {
	p, ok := priorityWords[strings.ToLower(strings.TrimSpace(text))]
	return p, ok
}

var relativeDateRe = regexp.MustCompile(`(?i)^in\s+(\d{1,3})\s+(day|week|month)s?$`)

// ParseDueDate resolves a relative date phrase to an RFC3339 end-of-day
// timestamp in UTC. Absolute YYYY-MM-DD dates are accepted as well.
func ParseDueDate(text string, now time.Time) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	now = now.UTC()
	endOfDay := func(t time.Time) string {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC).Format(time.RFC3339)
	}
	switch s {
	case "today":
		return endOfDay(now), true
	case "tomorrow":
		return endOfDay(now.AddDate(0, 0, 1)), true
	case "next week":
		return endOfDay(now.AddDate(0, 0, 7)), true
	case "next month":
		return endOfDay(now.AddDate(0, 1, 0)), true
	}
	if m := relativeDateRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return "", false
		}
		switch m[2] {
		case "day":
			return endOfDay(now.AddDate(0, 0, n)), true
		case "week":
			return endOfDay(now.AddDate(0, 0, 7*n)), true
		case "month":
			return endOfDay(now.AddDate(0, n, 0)), true
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return endOfDay(t), true
	}
	return "", false
}

var everyRe = regexp.MustCompile(`(?i)^every\s+(\d{1,2})\s+(day|week|month)s?$`)

// ParseRecurrence maps a repetition phrase to a pattern and interval.
func ParseRecurrence(text string) (string, int, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	switch s {
	case "daily", "every day":
		return domain.RecurrenceDaily, 1, true
	case "weekly", "every week":
		return domain.RecurrenceWeekly, 1, true
	case "monthly", "every month":
		return domain.RecurrenceMonthly, 1, true
	}
	if m := everyRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return "", 0, false
		}
		switch m[2] {
		case "day":
			return domain.RecurrenceDaily, n, true
		case "week":
			return domain.RecurrenceWeekly, n, true
		case "month":
			return domain.RecurrenceMonthly, n, true
		}
	}
	return "", 0, false
}

// ParseTags splits a comma or hashtag separated list into normalized tag
// names. Names are lowercased; anything empty or longer than 30 runes is
// dropped.
func ParseTags(text string) []string {
	text = strings.ReplaceAll(text, "#", ",")
	var tags []string
	seen := map[string]bool{}
	for _, part := range strings.Split(text, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || len([]rune(name)) > 30 || seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, name)
	}
	return tags
}
