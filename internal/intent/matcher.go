package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Matcher is the deterministic first stage of intent resolution. Recognizers
// run in a fixed order and the first hit wins, so the same utterance always
// resolves the same way. A recognizer that matches the shape of a command but
// finds a required field missing or invalid answers with Clarify rather than
// passing the utterance on to the model.
type Matcher struct {
	Now func() time.Time
}

// Match resolves an utterance, returning false when no recognizer applies.
func (m Matcher) Match(utterance string) (Action, bool) {
	s := strings.TrimSpace(utterance)
	if s == "" {
		return nil, false
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	for _, rec := range recognizers {
		if a, ok := rec(s, now()); ok {
			return a, true
		}
	}
	return nil, false
}

type recognizer func(s string, now time.Time) (Action, bool)

var recognizers = []recognizer{
	matchGuidedStart,
	matchComplete,
	matchDelete,
	matchSetPriority,
	matchRemoveTag,
	matchAddTag,
	matchUpdate,
	matchCreate,
	matchList,
}

var (
	guidedStartRe   = regexp.MustCompile(`(?i)^(?:please\s+)?(?:(?:add|create|make|start)\s+(?:a\s+)?(?:new\s+)?task|new\s+task|i\s+want\s+to\s+(?:add|create)\s+a\s+task)[.!]?$`)
	guidedStartUrRe = regexp.MustCompile(`^(?:نیا ٹاسک|ٹاسک بنائیں|ایک ٹاسک بنائیں)$`)

	createRe   = regexp.MustCompile(`(?i)^(?:please\s+)?(?:add|create|make)\s+(?:a\s+)?(?:new\s+)?task\s+(?:to\s+|called\s+|named\s+|for\s+|:\s*)?(.+)$`)
	remindRe   = regexp.MustCompile(`(?i)^remind\s+me\s+to\s+(.+)$`)
	createUrRe = regexp.MustCompile(`^(.+)\s+کا\s+ٹاسک\s+بنائیں$`)

	withDescRe     = regexp.MustCompile(`(?i)\s+with\s+description\s+(.+)$`)
	withPriorityRe = regexp.MustCompile(`(?i)\s+(?:with\s+(\w+)\s+priority|priority\s+(\w+))$`)
	dueRe          = regexp.MustCompile(`(?i)\s+due\s+(.+)$`)

	completeRe   = regexp.MustCompile(`(?i)^(?:(?:complete|finish|close)\s+task\s+#?(\d+)|mark\s+task\s+#?(\d+)\s+(?:as\s+)?(?:done|complete|completed|finished)|task\s+#?(\d+)\s+(?:is\s+)?done)[.!]?$`)
	completeUrRe = regexp.MustCompile(`^ٹاسک\s+(\d+)\s+مکمل\s+کریں$`)

	deleteRe   = regexp.MustCompile(`(?i)^(?:delete|remove|drop)\s+task\s+#?(\d+)[.!]?$`)
	deleteUrRe = regexp.MustCompile(`^ٹاسک\s+(\d+)\s+حذف\s+کریں$`)

	setPriorityRe = regexp.MustCompile(`(?i)^(?:set\s+(?:the\s+)?priority\s+of\s+task\s+#?(\d+)\s+to\s+(\S+)|set\s+task\s+#?(\d+)\s+(?:priority\s+)?to\s+(\S+?)(?:\s+priority)?|make\s+task\s+#?(\d+)\s+(\S+)\s+priority)[.!]?$`)

	addTagRe    = regexp.MustCompile(`(?i)^(?:tag\s+task\s+#?(\d+)\s+(?:with\s+|as\s+)?#?(\S+)|add\s+tag\s+#?(\S+)\s+to\s+task\s+#?(\d+))[.!]?$`)
	removeTagRe = regexp.MustCompile(`(?i)^(?:remove\s+tag\s+#?(\S+)\s+from\s+task\s+#?(\d+)|untag\s+task\s+#?(\d+)\s+#?(\S+))[.!]?$`)

	updateDescRe  = regexp.MustCompile(`(?i)^(?:update|change|set)\s+(?:the\s+)?description\s+of\s+task\s+#?(\d+)\s+to\s+(.+)$`)
	updateDueRe   = regexp.MustCompile(`(?i)^(?:update|change|set)\s+(?:the\s+)?due\s+date\s+of\s+task\s+#?(\d+)\s+to\s+(.+)$`)
	updateTitleRe = regexp.MustCompile(`(?i)^(?:update|change|rename)\s+(?:the\s+)?(?:title\s+of\s+)?task\s+#?(\d+)\s+(?:title\s+)?to\s+(.+)$`)

	listRe   = regexp.MustCompile(`(?i)^(?:show|list|view|display|get|find)\b.*\b(?:tasks?|todos?)\b`)
	listUrRe = regexp.MustCompile(`(?:میرے ٹاسک|ٹاسک دکھائیں)`)
)

func matchGuidedStart(s string, _ time.Time) (Action, bool) {
	if guidedStartRe.MatchString(s) || guidedStartUrRe.MatchString(s) {
		return StartGuidedCreate{}, true
	}
	return nil, false
}

func matchCreate(s string, now time.Time) (Action, bool) {
	var rest string
	switch {
	case createRe.MatchString(s):
		rest = createRe.FindStringSubmatch(s)[1]
	case remindRe.MatchString(s):
		rest = remindRe.FindStringSubmatch(s)[1]
	case createUrRe.MatchString(s):
		rest = createUrRe.FindStringSubmatch(s)[1]
	default:
		return nil, false
	}

	a := CreateTask{}
	// Qualifiers anchor to the end of the remainder; peel them off one at a
	// time until none is left so they combine in any order.
	for {
		if m := withPriorityRe.FindStringSubmatch(rest); m != nil {
			word := m[1]
			if word == "" {
				word = m[2]
			}
			p, ok := ParsePriority(word)
			if !ok {
				return Clarify{Reason: "I did not recognize that priority. Use low, medium, high or critical."}, true
			}
			a.Priority = p
			rest = strings.Replace(rest, m[0], "", 1)
			continue
		}
		if m := dueRe.FindStringSubmatch(rest); m != nil {
			due, ok := ParseDueDate(m[1], now)
			if !ok {
				return Clarify{Reason: "I did not understand that due date. Try today, tomorrow, next week or a date like 2026-09-15."}, true
			}
			a.DueDate = due
			rest = strings.Replace(rest, m[0], "", 1)
			continue
		}
		if m := withDescRe.FindStringSubmatch(rest); m != nil {
			a.Description = strings.TrimSpace(m[1])
			rest = strings.Replace(rest, m[0], "", 1)
			continue
		}
		break
	}
	for _, m := range hashTagRe.FindAllStringSubmatch(rest, -1) {
		name := strings.ToLower(m[1])
		if !containsString(a.Tags, name) {
			a.Tags = append(a.Tags, name)
		}
	}
	rest = hashTagRe.ReplaceAllString(rest, " ")

	a.Title = strings.TrimSpace(strings.Trim(rest, `"'`))
	// A bare trailing connective is not a title: "add task to" ends in the
	// connective the regexp could not consume, so ask instead of creating a
	// task named "to".
	switch strings.ToLower(a.Title) {
	case "", "to", "called", "named", "for":
		return Clarify{Reason: "What should the task be called?"}, true
	}
	return a, true
}

func matchComplete(s string, _ time.Time) (Action, bool) {
	if m := completeRe.FindStringSubmatch(s); m != nil {
		return CompleteTask{TaskID: firstID(m[1:])}, true
	}
	if m := completeUrRe.FindStringSubmatch(s); m != nil {
		return CompleteTask{TaskID: firstID(m[1:])}, true
	}
	return nil, false
}

func matchDelete(s string, _ time.Time) (Action, bool) {
	if m := deleteRe.FindStringSubmatch(s); m != nil {
		return DeleteTask{TaskID: firstID(m[1:])}, true
	}
	if m := deleteUrRe.FindStringSubmatch(s); m != nil {
		return DeleteTask{TaskID: firstID(m[1:])}, true
	}
	return nil, false
}

func matchSetPriority(s string, _ time.Time) (Action, bool) {
	m := setPriorityRe.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	id := firstID(m[1:])
	word := firstNonEmpty(m[2], m[4], m[6])
	p, ok := ParsePriority(word)
	if !ok {
		return Clarify{Reason: "I did not recognize that priority. Use low, medium, high or critical."}, true
	}
	return SetPriority{TaskID: id, Priority: p}, true
}

func matchAddTag(s string, _ time.Time) (Action, bool) {
	m := addTagRe.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	idStr, name := m[1], m[2]
	if idStr == "" {
		name, idStr = m[3], m[4]
	}
	tag := normalizeTag(name)
	if tag == "" {
		return Clarify{Reason: "Tag names must be 1 to 30 characters."}, true
	}
	return AddTag{TaskID: mustID(idStr), Tag: tag}, true
}

func matchRemoveTag(s string, _ time.Time) (Action, bool) {
	m := removeTagRe.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	name, idStr := m[1], m[2]
	if idStr == "" {
		idStr, name = m[3], m[4]
	}
	tag := normalizeTag(name)
	if tag == "" {
		return Clarify{Reason: "Tag names must be 1 to 30 characters."}, true
	}
	return RemoveTag{TaskID: mustID(idStr), Tag: tag}, true
}

func matchUpdate(s string, now time.Time) (Action, bool) {
	if m := updateDescRe.FindStringSubmatch(s); m != nil {
		desc := strings.TrimSpace(m[2])
		return UpdateTask{TaskID: mustID(m[1]), Description: &desc}, true
	}
	if m := updateDueRe.FindStringSubmatch(s); m != nil {
		due, ok := ParseDueDate(m[2], now)
		if !ok {
			return Clarify{Reason: "I did not understand that due date. Try today, tomorrow, next week or a date like 2026-09-15."}, true
		}
		return UpdateTask{TaskID: mustID(m[1]), DueDate: &due}, true
	}
	if m := updateTitleRe.FindStringSubmatch(s); m != nil {
		title := strings.TrimSpace(m[2])
		if title == "" {
			return Clarify{Reason: "What should the new title be?"}, true
		}
		return UpdateTask{TaskID: mustID(m[1]), Title: &title}, true
	}
	return nil, false
}

func matchList(s string, _ time.Time) (Action, bool) {
	if !listRe.MatchString(s) && !listUrRe.MatchString(s) {
		return nil, false
	}
	q, err := TranslateQuery(s)
	if err != nil {
		return Clarify{Reason: err.Error()}, true
	}
	return ListTasks{Query: q}, true
}

// firstID returns the first numeric capture group as an id. Recognizer
// regexps guarantee at least one digits group on match.
func firstID(groups []string) int64 {
	for _, g := range groups {
		if g == "" {
			continue
		}
		if id, err := strconv.ParseInt(g, 10, 64); err == nil {
			return id
		}
	}
	return 0
}

func mustID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if x != "" {
			return x
		}
	}
	return ""
}

func normalizeTag(name string) string {
	name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"'.,!`))
	if name == "" || len([]rune(name)) > 30 {
		return ""
	}
	return name
}
