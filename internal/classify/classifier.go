// Package classify is the model-backed fallback for utterances the
// deterministic matcher cannot resolve. The model is asked for a single JSON
// object against a closed action schema; anything off-schema is coerced to a
// clarifying question, never executed.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"

	"tasktalk/internal/config"
	"tasktalk/internal/domain"
	"tasktalk/internal/intent"
)

// Classifier resolves an utterance with recent conversation context. History
// is the trailing message window in chronological order.
type Classifier interface {
	Classify(ctx context.Context, history []domain.Message, utterance, lang string) (intent.Action, error)
}

// Model calls a chat-completion endpoint with a fixed action-schema prompt.
type Model struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

func NewModel(cfg *config.Config, log *slog.Logger) *Model {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.ModelAPIKey()),
		option.WithRequestTimeout(cfg.ModelTimeout()),
		option.WithMaxRetries(1),
	}
	if cfg.Model.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Model.BaseURL))
	}
	return &Model{
		client: openai.NewClient(opts...),
		model:  cfg.Model.Name,
		log:    log,
	}
}

const systemPrompt = `You classify a user's message in a todo-list chat into exactly one action.
Reply with a single JSON object and nothing else, in the form:
{"action": "<name>", "params": {...}}

Actions and their params:
- create_task: {"title": string, "description"?: string, "category"?: string, "priority"?: "low"|"medium"|"high"|"critical", "due_date"?: string (RFC3339), "tags"?: [string]}
- list_tasks: {"status"?: "pending"|"completed", "priority"?: "low"|"medium"|"high"|"critical", "category"?: string, "tags"?: [string], "keyword"?: string, "sort"?: "created_desc"|"priority_desc"|"due_asc"|"due_desc"|"title_asc"}
- complete_task: {"task_id": number}
- delete_task: {"task_id": number}
- update_task: {"task_id": number, "title"?: string, "description"?: string, "due_date"?: string}
- add_tag: {"task_id": number, "tag": string}
- remove_tag: {"task_id": number, "tag": string}
- set_priority: {"task_id": number, "priority": "low"|"medium"|"high"|"critical"}
- start_guided_create: {}
- clarify: {"question": string}

Rules:
- If the message is ambiguous, too short or not a task command, use clarify with a short question in the user's language.
- Never invent task ids. Only use an id the user stated or that appears in the conversation.
- The user may write in English or Urdu.`

// Classify asks the model for an action. A transport or timeout error is
// returned to the caller; a parseable but off-schema reply is coerced to
// Clarify.
func (m *Model) Classify(ctx context.Context, history []domain.Message, utterance, lang string) (intent.Action, error) {
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	for _, h := range history {
		switch h.Role {
		case domain.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(h.Content))
		default:
			msgs = append(msgs, openai.UserMessage(h.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(utterance))

	start := time.Now()
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(m.model),
		Messages: msgs,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classify: empty completion")
	}
	raw := stripFences(resp.Choices[0].Message.Content)
	action := decodeAction(raw, lang)
	if m.log != nil {
		m.log.Debug("classified utterance",
			"action", action.Name(),
			"model", m.model,
			"duration", time.Since(start).Round(time.Millisecond).String())
	}
	return action, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clarifyFallback(lang string) intent.Clarify {
	if lang == "ur" {
		return intent.Clarify{Reason: "معذرت، میں سمجھ نہیں پایا۔ کیا آپ دوبارہ وضاحت سے بتا سکتے ہیں؟"}
	}
	return intent.Clarify{Reason: "I'm not sure what you'd like me to do with that. Could you rephrase it?"}
}

// decodeAction maps the model's JSON onto the closed action set. Every field
// is validated here; a proposal that does not fit the schema becomes a
// clarifying question. The model never supplies a user id.
func decodeAction(raw, lang string) intent.Action {
	if !gjson.Valid(raw) {
		return clarifyFallback(lang)
	}
	doc := gjson.Parse(raw)
	params := doc.Get("params")

	taskID := func() (int64, bool) {
		id := params.Get("task_id").Int()
		return id, id > 0
	}

	switch doc.Get("action").String() {
	case "create_task":
		title := strings.TrimSpace(params.Get("title").String())
		if title == "" {
			return clarifyFallback(lang)
		}
		a := intent.CreateTask{
			Title:       title,
			Description: strings.TrimSpace(params.Get("description").String()),
			Category:    strings.TrimSpace(params.Get("category").String()),
			DueDate:     strings.TrimSpace(params.Get("due_date").String()),
		}
		if p := params.Get("priority").String(); p != "" {
			if !domain.ValidPriority(p) {
				return clarifyFallback(lang)
			}
			a.Priority = p
		}
		for _, t := range params.Get("tags").Array() {
			a.Tags = append(a.Tags, t.String())
		}
		a.Tags = intent.ParseTags(strings.Join(a.Tags, ","))
		return a

	case "list_tasks":
		var q domain.QuerySpec
		if s := params.Get("status").String(); s != "" {
			if s != "pending" && s != "completed" {
				return clarifyFallback(lang)
			}
			q.Status = s
		}
		if p := params.Get("priority").String(); p != "" {
			if !domain.ValidPriority(p) {
				return clarifyFallback(lang)
			}
			q.Priority = p
		}
		q.Category = strings.TrimSpace(params.Get("category").String())
		q.Keyword = strings.TrimSpace(params.Get("keyword").String())
		for _, t := range params.Get("tags").Array() {
			q.Tags = append(q.Tags, strings.ToLower(strings.TrimSpace(t.String())))
		}
		if s := params.Get("sort").String(); s != "" {
			switch s {
			case domain.SortCreatedDesc, domain.SortPriorityDesc, domain.SortDueAsc, domain.SortDueDesc, domain.SortTitleAsc:
				q.Sort = s
			default:
				return clarifyFallback(lang)
			}
		}
		return intent.ListTasks{Query: q}

	case "complete_task":
		if id, ok := taskID(); ok {
			return intent.CompleteTask{TaskID: id}
		}
	case "delete_task":
		if id, ok := taskID(); ok {
			return intent.DeleteTask{TaskID: id}
		}
	case "update_task":
		id, ok := taskID()
		if !ok {
			return clarifyFallback(lang)
		}
		a := intent.UpdateTask{TaskID: id}
		if v := params.Get("title"); v.Exists() {
			s := strings.TrimSpace(v.String())
			if s == "" {
				return clarifyFallback(lang)
			}
			a.Title = &s
		}
		if v := params.Get("description"); v.Exists() {
			s := v.String()
			a.Description = &s
		}
		if v := params.Get("due_date"); v.Exists() {
			s := strings.TrimSpace(v.String())
			a.DueDate = &s
		}
		if a.Title == nil && a.Description == nil && a.DueDate == nil {
			return clarifyFallback(lang)
		}
		return a
	case "add_tag":
		id, ok := taskID()
		tag := strings.ToLower(strings.TrimSpace(params.Get("tag").String()))
		if ok && tag != "" && len([]rune(tag)) <= 30 {
			return intent.AddTag{TaskID: id, Tag: tag}
		}
	case "remove_tag":
		id, ok := taskID()
		tag := strings.ToLower(strings.TrimSpace(params.Get("tag").String()))
		if ok && tag != "" && len([]rune(tag)) <= 30 {
			return intent.RemoveTag{TaskID: id, Tag: tag}
		}
	case "set_priority":
		id, ok := taskID()
		p := params.Get("priority").String()
		if ok && domain.ValidPriority(p) {
			return intent.SetPriority{TaskID: id, Priority: p}
		}
	case "start_guided_create":
		return intent.StartGuidedCreate{}
	case "clarify":
		if q := strings.TrimSpace(params.Get("question").String()); q != "" {
			return intent.Clarify{Reason: q}
		}
	}
	return clarifyFallback(lang)
}
