// Package dialogue implements the guided task-creation wizard. The wizard is
// a strict forward state machine over the dialogue steps; an invalid answer
// re-prompts without advancing, and cancel words abandon the wizard without
// writing anything.
package dialogue

import (
	"strings"
	"time"

	"tasktalk/internal/domain"
	"tasktalk/internal/intent"
)

var cancelWords = map[string]bool{
	"cancel": true, "stop": true, "quit": true, "abort": true,
	"never mind": true, "nevermind": true, "forget it": true,
	"منسوخ": true, "منسوخ کریں": true,
}

var skipWords = map[string]bool{
	"skip": true, "none": true, "no": true, "n/a": true, "na": true,
	"nothing": true, "چھوڑیں": true, "نہیں": true,
}

func isCancel(s string) bool {
	return cancelWords[strings.ToLower(strings.TrimSpace(s))]
}

func isSkip(s string) bool {
	return skipWords[strings.ToLower(strings.TrimSpace(s))]
}

// Outcome is the result of feeding one user reply to the wizard.
//
// State is the wizard state to persist, or nil when the wizard ended.
// Action is set only on completion and carries the collected task.
// Reply is the next prompt or the cancellation message; it is empty on
// completion because the dispatcher's confirmation takes its place.
type Outcome struct {
	State     *domain.DialogueState
	Action    intent.Action
	Reply     string
	Done      bool
	Cancelled bool
}

// Start opens a fresh wizard for the conversation and returns the first
// prompt.
func Start(conversationID, lang string, now time.Time) (domain.DialogueState, string) {
	state := domain.DialogueState{
		ConversationID: conversationID,
		Step:           domain.StepAwaitingTitle,
		CreatedAt:      now.UTC().Format(time.RFC3339),
	}
	return state, prompt(domain.StepAwaitingTitle, lang)
}

// Advance feeds one reply to the wizard and returns what to do next. The
// wizard only ever moves forward; there is no way to revisit an answered
// step.
func Advance(state domain.DialogueState, reply, lang string, now time.Time) Outcome {
	if isCancel(reply) {
		return Outcome{Cancelled: true, Reply: cancelledMessage(lang)}
	}
	trimmed := strings.TrimSpace(reply)

	switch state.Step {
	case domain.StepAwaitingTitle:
		if trimmed == "" || isSkip(trimmed) {
			return reprompt(state, titleRequired(lang))
		}
		state.Pending.Title = trimmed
		return advanceTo(state, domain.StepAwaitingDescription, lang)

	case domain.StepAwaitingDescription:
		if !isSkip(trimmed) && trimmed != "" {
			state.Pending.Description = trimmed
		}
		return advanceTo(state, domain.StepAwaitingCategory, lang)

	case domain.StepAwaitingCategory:
		if !isSkip(trimmed) && trimmed != "" {
			state.Pending.Category = trimmed
		}
		return advanceTo(state, domain.StepAwaitingPriority, lang)

	case domain.StepAwaitingPriority:
		if isSkip(trimmed) || trimmed == "" {
			state.Pending.Priority = domain.PriorityMedium
			return advanceTo(state, domain.StepAwaitingDueDate, lang)
		}
		p, ok := intent.ParsePriority(trimmed)
		if !ok {
			return reprompt(state, invalidPriority(lang))
		}
		state.Pending.Priority = p
		return advanceTo(state, domain.StepAwaitingDueDate, lang)

	case domain.StepAwaitingDueDate:
		if isSkip(trimmed) || trimmed == "" {
			return advanceTo(state, domain.StepAwaitingRecurrence, lang)
		}
		due, ok := intent.ParseDueDate(trimmed, now)
		if !ok {
			return reprompt(state, invalidDueDate(lang))
		}
		state.Pending.DueDate = due
		return advanceTo(state, domain.StepAwaitingRecurrence, lang)

	case domain.StepAwaitingRecurrence:
		if isSkip(trimmed) || trimmed == "" {
			return advanceTo(state, domain.StepAwaitingTags, lang)
		}
		pattern, interval, ok := intent.ParseRecurrence(trimmed)
		if !ok {
			return reprompt(state, invalidRecurrence(lang))
		}
		state.Pending.RecurrencePattern = pattern
		state.Pending.RecurrenceInterval = interval
		return advanceTo(state, domain.StepAwaitingTags, lang)

	case domain.StepAwaitingTags:
		if !isSkip(trimmed) && trimmed != "" {
			state.Pending.Tags = intent.ParseTags(trimmed)
		}
		return complete(state)

	default:
		// Unknown step in storage; abandon rather than loop forever.
		return Outcome{Cancelled: true, Reply: cancelledMessage(lang)}
	}
}

func advanceTo(state domain.DialogueState, step, lang string) Outcome {
	state.Step = step
	return Outcome{State: &state, Reply: prompt(step, lang)}
}

func reprompt(state domain.DialogueState, message string) Outcome {
	return Outcome{State: &state, Reply: message}
}

func complete(state domain.DialogueState) Outcome {
	p := state.Pending
	if p.Priority == "" {
		p.Priority = domain.PriorityMedium
	}
	return Outcome{
		Done: true,
		Action: intent.CreateTask{
			Title:              p.Title,
			Description:        p.Description,
			Category:           p.Category,
			Priority:           p.Priority,
			DueDate:            p.DueDate,
			RecurrencePattern:  p.RecurrencePattern,
			RecurrenceInterval: p.RecurrenceInterval,
			Tags:               p.Tags,
		},
	}
}

func prompt(step, lang string) string {
	if lang == "ur" {
		switch step {
		case domain.StepAwaitingTitle:
			return "ٹاسک کا نام کیا ہونا چاہیے؟"
		case domain.StepAwaitingDescription:
			return "کوئی تفصیل شامل کرنی ہے؟ (یا skip کہیں)"
		case domain.StepAwaitingCategory:
			return "کس زمرے میں رکھیں؟ (یا skip کہیں)"
		case domain.StepAwaitingPriority:
			return "ترجیح کیا ہو: low, medium, high یا critical؟ (skip پر medium)"
		case domain.StepAwaitingDueDate:
			return "یہ کب تک مکمل کرنا ہے؟ (today, tomorrow, next week یا skip)"
		case domain.StepAwaitingRecurrence:
			return "کیا یہ دہرایا جائے؟ (daily, weekly, monthly یا skip)"
		case domain.StepAwaitingTags:
			return "کوئی ٹیگ؟ کوما سے الگ کریں، یا skip کہیں۔"
		}
		return ""
	}
	switch step {
	case domain.StepAwaitingTitle:
		return "What should the task be called?"
	case domain.StepAwaitingDescription:
		return "Add a description? (or say skip)"
	case domain.StepAwaitingCategory:
		return "Which category should it go in? (or say skip)"
	case domain.StepAwaitingPriority:
		return "What priority: low, medium, high or critical? (skip for medium)"
	case domain.StepAwaitingDueDate:
		return "When is it due? Try today, tomorrow, next week, a date like 2026-09-15, or skip."
	case domain.StepAwaitingRecurrence:
		return "Should it repeat? (daily, weekly, monthly, or skip)"
	case domain.StepAwaitingTags:
		return "Any tags? Comma-separated, or skip."
	}
	return ""
}

func cancelledMessage(lang string) string {
	if lang == "ur" {
		return "ٹھیک ہے، ٹاسک منسوخ کر دیا گیا۔ کچھ محفوظ نہیں ہوا۔"
	}
	return "Okay, I cancelled that. Nothing was saved."
}

func titleRequired(lang string) string {
	if lang == "ur" {
		return "ہر ٹاسک کا ایک نام ضروری ہے۔ ٹاسک کا نام کیا ہونا چاہیے؟"
	}
	return "Every task needs a title. What should the task be called?"
}

func invalidPriority(lang string) string {
	if lang == "ur" {
		return "براہ کرم low, medium, high یا critical میں سے جواب دیں، یا skip کہیں۔"
	}
	return "Please answer low, medium, high or critical, or say skip."
}

func invalidDueDate(lang string) string {
	if lang == "ur" {
		return "تاریخ سمجھ نہیں آئی۔ today, tomorrow, next week یا 2026-09-15 جیسی تاریخ آزمائیں، یا skip کہیں۔"
	}
	return "I did not understand that date. Try today, tomorrow, next week, a date like 2026-09-15, or skip."
}

func invalidRecurrence(lang string) string {
	if lang == "ur" {
		return "براہ کرم daily, weekly یا monthly میں سے جواب دیں، یا skip کہیں۔"
	}
	return "Please answer daily, weekly or monthly, or say skip."
}
