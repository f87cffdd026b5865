package engine

import (
	"context"
	"fmt"
	"strings"

	"tasktalk/internal/domain"
	"tasktalk/internal/events"
)

// Direct task operations for the REST endpoints. Unlike Dispatch these
// surface repo.ErrNotFound to the caller so the API can answer 404.

// TaskPatch carries partial field changes; nil means leave unchanged. An
// empty DueDate string clears the due date.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *string
	Notes       *string
	Priority    *string
	Completed   *bool
}

func (e *Engine) PatchTask(ctx context.Context, userID string, taskID int64, p TaskPatch) (domain.Task, error) {
	if userID == "" {
		return domain.Task{}, ErrNotAuthorized
	}
	t, err := e.Repo.GetTask(ctx, userID, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	now := e.now()
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return domain.Task{}, fmt.Errorf("title is required")
		}
		t.Title = title
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.DueDate != nil {
		if *p.DueDate == "" {
			t.DueDate = nil
		} else {
			due := *p.DueDate
			t.DueDate = &due
		}
	}
	if p.Notes != nil {
		t.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Priority != nil {
		if !domain.ValidPriority(*p.Priority) {
			return domain.Task{}, fmt.Errorf("invalid priority %q", *p.Priority)
		}
		t.Priority = *p.Priority
	}
	evtType := "task.updated"
	if p.Completed != nil && *p.Completed != t.Completed {
		t.Completed = *p.Completed
		if t.Completed {
			ts := now
			t.CompletedAt = &ts
			evtType = "task.completed"
		} else {
			t.CompletedAt = nil
		}
	}
	t.UpdatedAt = now

	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, userID, "task", fmt.Sprint(taskID), nil); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e *Engine) RemoveTask(ctx context.Context, userID string, taskID int64) error {
	if userID == "" {
		return ErrNotAuthorized
	}
	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTask(ctx, tx, userID, taskID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", userID, "task", fmt.Sprint(taskID), nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) TagTask(ctx context.Context, userID string, taskID int64, tag string) (domain.Task, error) {
	if userID == "" {
		return domain.Task{}, ErrNotAuthorized
	}
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" || len([]rune(tag)) > 30 {
		return domain.Task{}, fmt.Errorf("invalid tag name")
	}
	if _, err := e.Repo.GetTask(ctx, userID, taskID); err != nil {
		return domain.Task{}, err
	}
	now := e.now()
	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.AttachTag(ctx, tx, userID, taskID, tag, now); err != nil {
		return domain.Task{}, err
	}
	err = e.Events.Append(ctx, tx, "task.tagged", userID, "task", fmt.Sprint(taskID), events.EventPayload{"tag": tag})
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, userID, taskID)
}

func (e *Engine) UntagTask(ctx context.Context, userID string, taskID int64, tag string) (domain.Task, error) {
	if userID == "" {
		return domain.Task{}, ErrNotAuthorized
	}
	if _, err := e.Repo.GetTask(ctx, userID, taskID); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.DetachTag(ctx, tx, userID, taskID, tag); err != nil {
		return domain.Task{}, err
	}
	err = e.Events.Append(ctx, tx, "task.untagged", userID, "task", fmt.Sprint(taskID), events.EventPayload{"tag": tag})
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, userID, taskID)
}
