package domain

// Priority levels for tasks. Keyword mapping lives in the intent package.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Recurrence patterns for recurring tasks.
const (
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

func ValidRecurrence(p string) bool {
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

type Task struct {
	ID                 int64    `json:"id"`
	UserID             string   `json:"user_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Completed          bool     `json:"completed"`
	Priority           string   `json:"priority" enum:"low,medium,high,critical"`
	DueDate            *string  `json:"due_date,omitempty" format:"date-time"`
	CategoryID         *int64   `json:"category_id,omitempty"`
	RecurrencePattern  *string  `json:"recurrence_pattern,omitempty" enum:"daily,weekly,monthly"`
	RecurrenceInterval int      `json:"recurrence_interval,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	CreatedAt          string   `json:"created_at" format:"date-time"`
	UpdatedAt          string   `json:"updated_at" format:"date-time"`
	CompletedAt        *string  `json:"completed_at,omitempty" format:"date-time"`
}

type Tag struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Category struct {
	ID        int64  `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Conversation struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID             int64  `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role" enum:"user,assistant"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

// Dialogue steps for the guided task-creation wizard, in strict forward order.
const (
	StepAwaitingTitle       = "awaiting_title"
	StepAwaitingDescription = "awaiting_description"
	StepAwaitingCategory    = "awaiting_category"
	StepAwaitingPriority    = "awaiting_priority"
	StepAwaitingDueDate     = "awaiting_due_date"
	StepAwaitingRecurrence  = "awaiting_recurrence"
	StepAwaitingTags        = "awaiting_tags"
	StepComplete            = "complete"
)

// PendingTask holds the fields collected so far by the wizard.
type PendingTask struct {
	Title              string   `json:"title,omitempty"`
	Description        string   `json:"description,omitempty"`
	Category           string   `json:"category,omitempty"`
	Priority           string   `json:"priority,omitempty"`
	DueDate            string   `json:"due_date,omitempty"`
	RecurrencePattern  string   `json:"recurrence_pattern,omitempty"`
	RecurrenceInterval int      `json:"recurrence_interval,omitempty"`
	Tags               []string `json:"tags,omitempty"`
}

// DialogueState is the single in-progress wizard for a conversation.
// At most one exists per conversation; it is deleted outright on completion
// or cancellation, never marked done.
type DialogueState struct {
	ConversationID string      `json:"conversation_id"`
	Step           string      `json:"step"`
	Pending        PendingTask `json:"pending"`
	CreatedAt      string      `json:"created_at" format:"date-time"`
}

// Sort keys accepted by the task store.
const (
	SortCreatedDesc  = "created_desc"
	SortPriorityDesc = "priority_desc"
	SortDueAsc       = "due_asc"
	SortDueDesc      = "due_desc"
	SortTitleAsc     = "title_asc"
)

// QuerySpec is the structured filter/sort/pagination object produced by the
// query translator. Filters combine with AND; it never encodes OR semantics.
// The repo alone turns it into parameterized SQL.
type QuerySpec struct {
	Status   string   `json:"status,omitempty" enum:"pending,completed"`
	Priority string   `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Keyword  string   `json:"keyword,omitempty"`
	Sort     string   `json:"sort,omitempty" enum:"created_desc,priority_desc,due_asc,due_desc,title_asc"`
	Offset   int      `json:"offset,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize applies pagination defaults and clamps the page size.
func (q *QuerySpec) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Sort == "" {
		q.Sort = SortCreatedDesc
	}
}
