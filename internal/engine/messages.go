package engine

import (
	"fmt"
	"strings"

	"tasktalk/internal/domain"
)

// User-facing replies. English is the default; Urdu is the only other
// supported language.

func msgTaskNotFound(lang string) string {
	if lang == "ur" {
		return "ٹاسک نہیں ملا۔"
	}
	return "Task not found."
}

func msgUnrecognized(lang string) string {
	if lang == "ur" {
		return "معذرت، میں یہ نہیں سمجھ پایا۔ آپ ٹاسک بنانے، دیکھنے، مکمل کرنے یا حذف کرنے کا کہہ سکتے ہیں۔"
	}
	return "Sorry, I didn't catch that. You can ask me to add, show, complete or delete tasks."
}

func msgTitleRequired(lang string) string {
	if lang == "ur" {
		return "ہر ٹاسک کا ایک نام ضروری ہے۔"
	}
	return "Every task needs a title."
}

func msgInvalidPriority(lang string) string {
	if lang == "ur" {
		return "ترجیح low, medium, high یا critical میں سے ہونی چاہیے۔"
	}
	return "Priority must be low, medium, high or critical."
}

func msgCreated(lang string, t domain.Task) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d بنا دیا گیا: \"%s\" (%s ترجیح)۔", t.ID, t.Title, t.Priority)
	}
	extras := []string{t.Priority + " priority"}
	if t.DueDate != nil {
		extras = append(extras, "due "+shortDate(*t.DueDate))
	}
	if t.RecurrencePattern != nil {
		extras = append(extras, "repeats "+*t.RecurrencePattern)
	}
	return fmt.Sprintf("I've added task #%d: %q (%s).", t.ID, t.Title, strings.Join(extras, ", "))
}

func msgCompleted(lang string, t domain.Task) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d \"%s\" مکمل ہو گیا۔", t.ID, t.Title)
	}
	return fmt.Sprintf("Marked task #%d %q as complete. Nice work!", t.ID, t.Title)
}

func msgAlreadyComplete(lang string, t domain.Task) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d \"%s\" پہلے ہی مکمل ہے۔", t.ID, t.Title)
	}
	return fmt.Sprintf("Task #%d %q is already complete.", t.ID, t.Title)
}

func msgDeleted(lang string, t domain.Task) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d \"%s\" حذف کر دیا گیا۔", t.ID, t.Title)
	}
	return fmt.Sprintf("Deleted task #%d %q.", t.ID, t.Title)
}

func msgUpdated(lang string, t domain.Task) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d اپڈیٹ کر دیا گیا۔", t.ID)
	}
	return fmt.Sprintf("Updated task #%d %q.", t.ID, t.Title)
}

func msgTagged(lang string, t domain.Task, tag string) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d پر ٹیگ \"%s\" لگا دیا گیا۔", t.ID, tag)
	}
	return fmt.Sprintf("Tagged task #%d %q with #%s.", t.ID, t.Title, tag)
}

func msgUntagged(lang string, t domain.Task, tag string) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d سے ٹیگ \"%s\" ہٹا دیا گیا۔", t.ID, tag)
	}
	return fmt.Sprintf("Removed #%s from task #%d %q.", tag, t.ID, t.Title)
}

func msgTagMissing(lang string, t domain.Task, tag string) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d پر ٹیگ \"%s\" موجود نہیں۔", t.ID, tag)
	}
	return fmt.Sprintf("Task #%d %q does not have the tag #%s.", t.ID, t.Title, tag)
}

func msgPrioritySet(lang string, t domain.Task) string {
	if lang == "ur" {
		return fmt.Sprintf("ٹاسک #%d کی ترجیح %s کر دی گئی۔", t.ID, t.Priority)
	}
	return fmt.Sprintf("Set task #%d %q to %s priority.", t.ID, t.Title, t.Priority)
}

// formatTaskList renders a page of tasks as chat text. An empty page gets a
// friendly sentence rather than an empty reply.
func formatTaskList(lang string, tasks []domain.Task) string {
	if len(tasks) == 0 {
		if lang == "ur" {
			return "کوئی ٹاسک نہیں ملا۔"
		}
		return "No tasks found."
	}
	var b strings.Builder
	if lang == "ur" {
		fmt.Fprintf(&b, "%d ٹاسک ملے:\n", len(tasks))
	} else if len(tasks) == 1 {
		b.WriteString("Here is 1 task:\n")
	} else {
		fmt.Fprintf(&b, "Here are %d tasks:\n", len(tasks))
	}
	for _, t := range tasks {
		status := "pending"
		if t.Completed {
			status = "done"
		}
		fmt.Fprintf(&b, "- #%d %s [%s, %s]", t.ID, t.Title, t.Priority, status)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " due %s", shortDate(*t.DueDate))
		}
		if len(t.Tags) > 0 {
			fmt.Fprintf(&b, " #%s", strings.Join(t.Tags, " #"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// shortDate trims an RFC3339 timestamp to its date part for display.
func shortDate(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
