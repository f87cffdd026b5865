package server

import (
	"tasktalk/internal/domain"
)

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Language       string `json:"language,omitempty" enum:"en,ur"`
}

type ChatResponse struct {
	ConversationID string         `json:"conversation_id"`
	Reply          string         `json:"reply"`
	Action         string         `json:"action"`
	Task           *TaskResponse  `json:"task,omitempty"`
	Tasks          []TaskResponse `json:"tasks,omitempty"`
}

type TaskResponse struct {
	ID                 int64    `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Completed          bool     `json:"completed"`
	Priority           string   `json:"priority" enum:"low,medium,high,critical"`
	DueDate            *string  `json:"due_date,omitempty" format:"date-time"`
	CategoryID         *int64   `json:"category_id,omitempty"`
	RecurrencePattern  *string  `json:"recurrence_pattern,omitempty"`
	RecurrenceInterval int      `json:"recurrence_interval,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	CreatedAt          string   `json:"created_at" format:"date-time"`
	UpdatedAt          string   `json:"updated_at" format:"date-time"`
	CompletedAt        *string  `json:"completed_at,omitempty" format:"date-time"`
}

type CreateTaskRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Category           string   `json:"category,omitempty"`
	Priority           string   `json:"priority,omitempty" enum:"low,medium,high,critical"`
	DueDate            string   `json:"due_date,omitempty" format:"date-time"`
	RecurrencePattern  string   `json:"recurrence_pattern,omitempty" enum:"daily,weekly,monthly"`
	RecurrenceInterval int      `json:"recurrence_interval,omitempty"`
	Tags               []string `json:"tags,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Priority    *string `json:"priority,omitempty" enum:"low,medium,high,critical"`
	Completed   *bool   `json:"completed,omitempty"`
}

type ConversationResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type MessageResponse struct {
	ID        int64  `json:"id"`
	Role      string `json:"role" enum:"user,assistant"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type CategoryResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type DevLoginRequest struct {
	UserID string `json:"user_id"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	UserID string `json:"user_id"`
	Source string `json:"source"`
}

type paginatedTasks struct {
	Items  []TaskResponse `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		Completed:          t.Completed,
		Priority:           t.Priority,
		DueDate:            t.DueDate,
		CategoryID:         t.CategoryID,
		RecurrencePattern:  t.RecurrencePattern,
		RecurrenceInterval: t.RecurrenceInterval,
		Notes:              t.Notes,
		Tags:               t.Tags,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		CompletedAt:        t.CompletedAt,
	}
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskResponse(t))
	}
	return res
}

func conversationResponse(c domain.Conversation) ConversationResponse {
	return ConversationResponse{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func messageResponse(m domain.Message) MessageResponse {
	return MessageResponse{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

func categoryResponse(c domain.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt}
}
