// Package tasktalksdk is a minimal TaskTalk HTTP API client.
package tasktalksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a TaskTalk server.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Completed bool     `json:"completed"`
	Priority  string   `json:"priority"`
	DueDate   *string  `json:"due_date,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// ChatReply is the assistant's answer to one message.
type ChatReply struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Action         string `json:"action"`
	Task           *Task  `json:"task,omitempty"`
	Tasks          []Task `json:"tasks,omitempty"`
}

// Conversation is one chat thread.
type Conversation struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Message is one stored chat turn.
type Message struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Chat sends one message. Pass an empty conversationID to start a new
// thread; the reply carries the id for follow-ups.
func (c *Client) Chat(ctx context.Context, conversationID, message string) (ChatReply, error) {
	body := map[string]any{"message": message}
	if conversationID != "" {
		body["conversation_id"] = conversationID
	}
	var resp ChatReply
	err := c.do(ctx, http.MethodPost, "v1/chat", body, &resp)
	return resp, err
}

// CreateTask creates a task directly.
func (c *Client) CreateTask(ctx context.Context, title string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "v1/tasks", map[string]any{"title": title}, &resp)
	return resp, err
}

// ListTasks returns a page of tasks. Zero-value filters are omitted.
func (c *Client) ListTasks(ctx context.Context, status, priority string, limit int) ([]Task, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if priority != "" {
		params.Set("priority", priority)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	endpoint := "v1/tasks"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// CompleteTask marks a task done.
func (c *Client) CompleteTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/tasks/%d/done", id), nil, &resp)
	return resp, err
}

// Conversations lists the caller's chat threads.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var resp []Conversation
	err := c.do(ctx, http.MethodGet, "v1/conversations", nil, &resp)
	return resp, err
}

// Messages returns the recent messages of one thread.
func (c *Client) Messages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	endpoint := fmt.Sprintf("v1/conversations/%s/messages", url.PathEscape(conversationID))
	if limit > 0 {
		endpoint += fmt.Sprintf("?limit=%d", limit)
	}
	var resp []Message
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
