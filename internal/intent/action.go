// Package intent resolves free-text utterances into a closed set of task
// operations. The direct matcher and query translator are deterministic;
// anything they cannot resolve falls through to the model-backed classifier.
package intent

import "tasktalk/internal/domain"

// Action is the closed set of resolvable operations. Every dispatchable
// variant carries the authenticated user id, stamped by the orchestrator,
// never taken from free text or model output.
type Action interface {
	Name() string
	isAction()
}

type CreateTask struct {
	UserID             string
	Title              string
	Description        string
	Category           string
	Priority           string
	DueDate            string
	RecurrencePattern  string
	RecurrenceInterval int
	Tags               []string
}

type ListTasks struct {
	UserID string
	Query  domain.QuerySpec
}

type CompleteTask struct {
	UserID string
	TaskID int64
}

type DeleteTask struct {
	UserID string
	TaskID int64
}

// UpdateTask carries partial fields; nil means leave unchanged.
type UpdateTask struct {
	UserID      string
	TaskID      int64
	Title       *string
	Description *string
	DueDate     *string
	Notes       *string
}

type AddTag struct {
	UserID string
	TaskID int64
	Tag    string
}

type RemoveTag struct {
	UserID string
	TaskID int64
	Tag    string
}

type SetPriority struct {
	UserID   string
	TaskID   int64
	Priority string
}

type StartGuidedCreate struct {
	UserID string
}

type ContinueGuidedCreate struct {
	UserID string
	Reply  string
}

// Clarify asks the user a follow-up question instead of guessing.
type Clarify struct {
	Reason string
}

type Unrecognized struct{}

func (CreateTask) Name() string           { return "create_task" }
func (ListTasks) Name() string            { return "list_tasks" }
func (CompleteTask) Name() string         { return "complete_task" }
func (DeleteTask) Name() string           { return "delete_task" }
func (UpdateTask) Name() string           { return "update_task" }
func (AddTag) Name() string               { return "add_tag" }
func (RemoveTag) Name() string            { return "remove_tag" }
func (SetPriority) Name() string          { return "set_priority" }
func (StartGuidedCreate) Name() string    { return "start_guided_create" }
func (ContinueGuidedCreate) Name() string { return "continue_guided_create" }
func (Clarify) Name() string              { return "clarify" }
func (Unrecognized) Name() string         { return "unrecognized" }

func (CreateTask) isAction()           {}
func (ListTasks) isAction()            {}
func (CompleteTask) isAction()         {}
func (DeleteTask) isAction()           {}
func (UpdateTask) isAction()           {}
func (AddTag) isAction()               {}
func (RemoveTag) isAction()            {}
func (SetPriority) isAction()          {}
func (StartGuidedCreate) isAction()    {}
func (ContinueGuidedCreate) isAction() {}
func (Clarify) isAction()              {}
func (Unrecognized) isAction()         {}

// WithUserID stamps the authenticated user id onto a resolved action. The
// switch is exhaustive over the Action sum; adding a variant without a case
// here is a compile-time-visible omission at review, and the dispatcher
// refuses unstamped actions at runtime.
func WithUserID(a Action, userID string) Action {
	switch v := a.(type) {
	case CreateTask:
		v.UserID = userID
		return v
	case ListTasks:
		v.UserID = userID
		return v
	case CompleteTask:
		v.UserID = userID
		return v
	case DeleteTask:
		v.UserID = userID
		return v
	case UpdateTask:
		v.UserID = userID
		return v
	case AddTag:
		v.UserID = userID
		return v
	case RemoveTag:
		v.UserID = userID
		return v
	case SetPriority:
		v.UserID = userID
		return v
	case StartGuidedCreate:
		v.UserID = userID
		return v
	case ContinueGuidedCreate:
		v.UserID = userID
		return v
	case Clarify:
		return v
	case Unrecognized:
		return v
	default:
		return a
	}
}
