// Package engine executes resolved actions against the store. Each mutation
// runs in its own transaction together with its event-log entry, so a reply
// that confirms a change implies the change is durable.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktalk/internal/domain"
	"tasktalk/internal/events"
	"tasktalk/internal/intent"
	"tasktalk/internal/repo"
)

var ErrNotAuthorized = errors.New("not authorized")

type Engine struct {
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(r repo.Repo, w events.Writer) *Engine {
	return &Engine{Repo: r, Events: w, Now: time.Now}
}

func (e *Engine) now() string {
	if e.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return e.Now().UTC().Format(time.RFC3339)
}

// Result is the outcome of dispatching one action.
type Result struct {
	Action string            `json:"action"`
	Reply  string            `json:"reply"`
	Task   *domain.Task      `json:"task,omitempty"`
	Tasks  []domain.Task     `json:"tasks,omitempty"`
	Query  *domain.QuerySpec `json:"query,omitempty"`
}

// Dispatch executes an action for the authenticated user. The switch over
// the action sum is exhaustive; an action stamped with a different user id
// than the caller's is refused before any store access. A missing task is a
// conversational outcome, not an error.
func (e *Engine) Dispatch(ctx context.Context, a intent.Action, userID, lang string) (Result, error) {
	if userID == "" {
		return Result{}, ErrNotAuthorized
	}
	switch v := a.(type) {
	case intent.CreateTask:
		if v.UserID != userID {
			return Result{}, ErrNotAuthorized
		}
		return e.createTask(ctx, v, lang)
	case intent.ListTasks:
		if v.UserID != userID {
			return Result{}, ErrNotAuthorized
		}
		return e.listTasks(ctx, v, lang)
	case intent.CompleteTask:
		if v.UserID != userID {
			return Result{}, ErrNotAuthorized
		}
		return e.completeTask(ctx, v, lang)
	case intent.DeleteTask:
		if v.UserID != userID {
			return Result{}, ErrNotAuthorized
		}
		return e.deleteTask(ctx, v, lang)
	case intent.UpdateTask:
		if v.UserID != userID {
			return Result{}, ErrNotAuthorized
		}
		return e.updateTask(ctx, v, lang)
	case intent.AddTag:
		if v.UserID != userID {
			return Result{}, ErrNotAuthorized
		}
		return e.addTag(ctx, v, lang)
	case intent.RemoveTag:
		if v.UserID != userID {
			return Result{}, ErrNotAuthorized
		}
		return e.removeTag(ctx, v, lang)
	case intent.SetPriority:
		if v.UserID != userID {
			return Result{}, ErrNotAuthorized
		}
		return e.setPriority(ctx, v, lang)
	case intent.Clarify:
		return Result{Action: v.Name(), Reply: v.Reason}, nil
	case intent.Unrecognized:
		return Result{Action: v.Name(), Reply: msgUnrecognized(lang)}, nil
	case intent.StartGuidedCreate, intent.ContinueGuidedCreate:
		// Wizard actions are resolved by the orchestrator before dispatch.
		return Result{}, fmt.Errorf("dispatch: wizard action %q reached the engine", a.Name())
	default:
		return Result{}, fmt.Errorf("dispatch: unknown action %q", a.Name())
	}
}

// CreateTaskForUser creates a task directly, bypassing intent resolution.
// The REST task endpoints use it.
func (e *Engine) CreateTaskForUser(ctx context.Context, a intent.CreateTask) (domain.Task, error) {
	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	t, err := e.insertTask(ctx, tx, a)
	if err != nil {
		return domain.Task{}, err
	}
	return t, tx.Commit()
}

// CreateFromWizard stores the task collected by the guided wizard and clears
// the wizard slot in the same transaction, so a confirmed task can never
// leave a stale wizard behind.
func (e *Engine) CreateFromWizard(ctx context.Context, a intent.CreateTask, conversationID, lang string) (Result, error) {
	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()
	t, err := e.insertTask(ctx, tx, a)
	if err != nil {
		return Result{}, err
	}
	if err := e.Repo.SaveDialogueState(ctx, tx, conversationID, nil); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: msgCreated(lang, t), Task: &t}, nil
}

// insertTask writes the task, its category, tags and event inside the
// caller's transaction.
func (e *Engine) insertTask(ctx context.Context, tx *sql.Tx, a intent.CreateTask) (domain.Task, error) {
	if a.UserID == "" {
		return domain.Task{}, ErrNotAuthorized
	}
	title := strings.TrimSpace(a.Title)
	if title == "" {
		return domain.Task{}, errors.New("title required")
	}
	priority := a.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return domain.Task{}, fmt.Errorf("invalid priority %q", priority)
	}
	if a.RecurrencePattern != "" && !domain.ValidRecurrence(a.RecurrencePattern) {
		return domain.Task{}, fmt.Errorf("invalid recurrence %q", a.RecurrencePattern)
	}
	now := e.now()

	t := domain.Task{
		UserID:             a.UserID,
		Title:              title,
		Description:        strings.TrimSpace(a.Description),
		Priority:           priority,
		RecurrenceInterval: 1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if a.DueDate != "" {
		due := a.DueDate
		t.DueDate = &due
	}
	if a.RecurrencePattern != "" {
		pattern := a.RecurrencePattern
		t.RecurrencePattern = &pattern
		if a.RecurrenceInterval > 0 {
			t.RecurrenceInterval = a.RecurrenceInterval
		}
	}
	if a.Category != "" {
		cat, err := e.Repo.CreateOrGetCategory(ctx, tx, a.UserID, a.Category, now)
		if err != nil {
			return domain.Task{}, err
		}
		t.CategoryID = &cat.ID
	}
	id, err := e.Repo.InsertTask(ctx, tx, t)
	if err != nil {
		return domain.Task{}, err
	}
	t.ID = id
	for _, tag := range a.Tags {
		if err := e.Repo.AttachTag(ctx, tx, a.UserID, id, tag, now); err != nil {
			return domain.Task{}, err
		}
		t.Tags = append(t.Tags, strings.ToLower(tag))
	}
	err = e.Events.Append(ctx, tx, "task.created", a.UserID, "task", fmt.Sprint(id), events.EventPayload{
		"title": t.Title, "priority": t.Priority,
	})
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e *Engine) createTask(ctx context.Context, a intent.CreateTask, lang string) (Result, error) {
	t, err := e.CreateTaskForUser(ctx, a)
	if err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: msgCreated(lang, t), Task: &t}, nil
}

func (e *Engine) listTasks(ctx context.Context, a intent.ListTasks, lang string) (Result, error) {
	q := a.Query
	q.Normalize()
	tasks, err := e.Repo.ListTasks(ctx, a.UserID, q)
	if err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: formatTaskList(lang, tasks), Tasks: tasks, Query: &q}, nil
}

func (e *Engine) completeTask(ctx context.Context, a intent.CompleteTask, lang string) (Result, error) {
	t, err := e.Repo.GetTask(ctx, a.UserID, a.TaskID)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{Action: a.Name(), Reply: msgTaskNotFound(lang)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if t.Completed {
		return Result{Action: a.Name(), Reply: msgAlreadyComplete(lang, t), Task: &t}, nil
	}
	now := e.now()
	t.Completed = true
	t.CompletedAt = &now
	t.UpdatedAt = now

	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return Result{}, err
	}
	err = e.Events.Append(ctx, tx, "task.completed", a.UserID, "task", fmt.Sprint(t.ID), nil)
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: msgCompleted(lang, t), Task: &t}, nil
}

func (e *Engine) deleteTask(ctx context.Context, a intent.DeleteTask, lang string) (Result, error) {
	t, err := e.Repo.GetTask(ctx, a.UserID, a.TaskID)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{Action: a.Name(), Reply: msgTaskNotFound(lang)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTask(ctx, tx, a.UserID, a.TaskID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Result{Action: a.Name(), Reply: msgTaskNotFound(lang)}, nil
		}
		return Result{}, err
	}
	err = e.Events.Append(ctx, tx, "task.deleted", a.UserID, "task", fmt.Sprint(a.TaskID), events.EventPayload{"title": t.Title})
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: msgDeleted(lang, t)}, nil
}

func (e *Engine) updateTask(ctx context.Context, a intent.UpdateTask, lang string) (Result, error) {
	t, err := e.Repo.GetTask(ctx, a.UserID, a.TaskID)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{Action: a.Name(), Reply: msgTaskNotFound(lang)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if a.Title != nil {
		title := strings.TrimSpace(*a.Title)
		if title == "" {
			return Result{Action: "clarify", Reply: msgTitleRequired(lang)}, nil
		}
		t.Title = title
	}
	if a.Description != nil {
		t.Description = strings.TrimSpace(*a.Description)
	}
	if a.DueDate != nil {
		if *a.DueDate == "" {
			t.DueDate = nil
		} else {
			due := *a.DueDate
			t.DueDate = &due
		}
	}
	if a.Notes != nil {
		t.Notes = strings.TrimSpace(*a.Notes)
	}
	t.UpdatedAt = e.now()

	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return Result{}, err
	}
	err = e.Events.Append(ctx, tx, "task.updated", a.UserID, "task", fmt.Sprint(t.ID), nil)
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: msgUpdated(lang, t), Task: &t}, nil
}

func (e *Engine) addTag(ctx context.Context, a intent.AddTag, lang string) (Result, error) {
	t, err := e.Repo.GetTask(ctx, a.UserID, a.TaskID)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{Action: a.Name(), Reply: msgTaskNotFound(lang)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	now := e.now()
	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.AttachTag(ctx, tx, a.UserID, a.TaskID, a.Tag, now); err != nil {
		return Result{}, err
	}
	err = e.Events.Append(ctx, tx, "task.tagged", a.UserID, "task", fmt.Sprint(a.TaskID), events.EventPayload{"tag": a.Tag})
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: msgTagged(lang, t, a.Tag)}, nil
}

func (e *Engine) removeTag(ctx context.Context, a intent.RemoveTag, lang string) (Result, error) {
	t, err := e.Repo.GetTask(ctx, a.UserID, a.TaskID)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{Action: a.Name(), Reply: msgTaskNotFound(lang)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.DetachTag(ctx, tx, a.UserID, a.TaskID, a.Tag); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Result{Action: a.Name(), Reply: msgTagMissing(lang, t, a.Tag)}, nil
		}
		return Result{}, err
	}
	err = e.Events.Append(ctx, tx, "task.untagged", a.UserID, "task", fmt.Sprint(a.TaskID), events.EventPayload{"tag": a.Tag})
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: msgUntagged(lang, t, a.Tag)}, nil
}

func (e *Engine) setPriority(ctx context.Context, a intent.SetPriority, lang string) (Result, error) {
	if !domain.ValidPriority(a.Priority) {
		return Result{Action: "clarify", Reply: msgInvalidPriority(lang)}, nil
	}
	t, err := e.Repo.GetTask(ctx, a.UserID, a.TaskID)
	if errors.Is(err, repo.ErrNotFound) {
		return Result{Action: a.Name(), Reply: msgTaskNotFound(lang)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	t.Priority = a.Priority
	t.UpdatedAt = e.now()

	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return Result{}, err
	}
	err = e.Events.Append(ctx, tx, "task.updated", a.UserID, "task", fmt.Sprint(t.ID), events.EventPayload{"priority": a.Priority})
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{Action: a.Name(), Reply: msgPrioritySet(lang, t), Task: &t}, nil
}
