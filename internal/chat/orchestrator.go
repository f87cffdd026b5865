// Package chat orchestrates one conversational turn: resolve the utterance,
// execute it, and persist both sides of the exchange. Each request is handled
// from stored state alone; nothing is kept in memory between turns.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tasktalk/internal/classify"
	"tasktalk/internal/dialogue"
	"tasktalk/internal/domain"
	"tasktalk/internal/engine"
	"tasktalk/internal/intent"
	"tasktalk/internal/repo"
)

type Orchestrator struct {
	Repo            repo.Repo
	Engine          *engine.Engine
	Matcher         intent.Matcher
	Classifier      classify.Classifier
	Log             *slog.Logger
	HistoryLimit    int
	DefaultLanguage string
	Now             func() time.Time
}

// Turn is the outcome of one chat exchange.
type Turn struct {
	ConversationID string
	Reply          string
	Action         string
	Result         engine.Result
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Log == nil {
		return slog.Default()
	}
	return o.Log
}

func (o *Orchestrator) language(lang string) string {
	switch lang {
	case "en", "ur":
		return lang
	}
	if o.DefaultLanguage != "" {
		return o.DefaultLanguage
	}
	return "en"
}

// Handle processes one user message. Resolution order is fixed: an active
// wizard consumes the message first, then the deterministic matcher, then
// the model classifier. The user id comes from the authenticated request and
// is stamped onto whatever action resolution produced.
func (o *Orchestrator) Handle(ctx context.Context, userID, conversationID, message, lang string) (Turn, error) {
	lang = o.language(lang)
	conv, err := o.conversation(ctx, userID, conversationID)
	if err != nil {
		return Turn{}, err
	}
	turn := Turn{ConversationID: conv.ID}
	log := o.log().With("conversation_id", conv.ID)

	message = strings.TrimSpace(message)
	if message == "" {
		clarify := intent.Clarify{Reason: emptyMessage(lang)}
		res, err := o.Engine.Dispatch(ctx, clarify, userID, lang)
		if err != nil {
			return Turn{}, err
		}
		return o.finish(ctx, turn, res, message, nil, false)
	}

	// An active wizard owns the whole message, even one that looks like a
	// brand new command.
	state, err := o.Repo.LoadDialogueState(ctx, conv.ID)
	switch {
	case err == nil:
		return o.advanceWizard(ctx, turn, state, message, userID, lang)
	case errors.Is(err, repo.ErrNotFound):
	default:
		return Turn{}, err
	}

	action, matched := o.Matcher.Match(message)
	if !matched {
		action = o.classifyFallback(ctx, log, conv.ID, message, lang)
	}
	action = intent.WithUserID(action, userID)

	if _, ok := action.(intent.StartGuidedCreate); ok {
		st, prompt := dialogue.Start(conv.ID, lang, o.now())
		turn.Action = action.Name()
		turn.Reply = prompt
		return o.finish(ctx, turn, engine.Result{Action: action.Name(), Reply: prompt}, message, &st, false)
	}

	res, err := o.Engine.Dispatch(ctx, action, userID, lang)
	if err != nil {
		return Turn{}, err
	}
	return o.finish(ctx, turn, res, message, nil, false)
}

// classifyFallback asks the model, degrading to a retry message when the
// classifier is unavailable or fails. Classifier trouble never surfaces as a
// request error; the user gets a reply either way.
func (o *Orchestrator) classifyFallback(ctx context.Context, log *slog.Logger, conversationID, message, lang string) intent.Action {
	if o.Classifier == nil {
		return intent.Unrecognized{}
	}
	history, err := o.Repo.RecentMessages(ctx, conversationID, o.HistoryLimit)
	if err != nil {
		log.Error("load history for classifier", "error", err)
		history = nil
	}
	action, err := o.Classifier.Classify(ctx, history, message, lang)
	if err != nil {
		log.Error("classifier unavailable", "error", err)
		return intent.Clarify{Reason: degradedMessage(lang)}
	}
	return action
}

func (o *Orchestrator) advanceWizard(ctx context.Context, turn Turn, state domain.DialogueState, message, userID, lang string) (Turn, error) {
	out := dialogue.Advance(state, message, lang, o.now())
	switch {
	case out.Cancelled:
		turn.Action = "cancel_guided_create"
		turn.Reply = out.Reply
		res := engine.Result{Action: turn.Action, Reply: out.Reply}
		return o.finish(ctx, turn, res, message, nil, true)
	case out.Done:
		create, ok := intent.WithUserID(out.Action, userID).(intent.CreateTask)
		if !ok {
			return Turn{}, errors.New("wizard completed without a task")
		}
		res, err := o.Engine.CreateFromWizard(ctx, create, turn.ConversationID, lang)
		if err != nil {
			return Turn{}, err
		}
		return o.finish(ctx, turn, res, message, nil, false)
	default:
		turn.Action = "continue_guided_create"
		turn.Reply = out.Reply
		res := engine.Result{Action: turn.Action, Reply: out.Reply}
		return o.finish(ctx, turn, res, message, out.State, false)
	}
}

// conversation loads the caller's thread or opens a new one when no id was
// sent. An id belonging to another user resolves to ErrNotFound.
func (o *Orchestrator) conversation(ctx context.Context, userID, conversationID string) (domain.Conversation, error) {
	if conversationID != "" {
		return o.Repo.GetConversation(ctx, userID, conversationID)
	}
	now := o.now().UTC().Format(time.RFC3339)
	conv := domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.Repo.InsertConversation(ctx, conv); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

// finish persists the user message, the assistant reply and any wizard state
// change in one transaction, then fills in the turn. Two racing requests on
// the same conversation resolve last-write-wins on the wizard slot.
func (o *Orchestrator) finish(ctx context.Context, turn Turn, res engine.Result, message string, state *domain.DialogueState, clearState bool) (Turn, error) {
	turn.Action = res.Action
	turn.Reply = res.Reply
	turn.Result = res

	now := o.now().UTC().Format(time.RFC3339)
	tx, err := o.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return Turn{}, err
	}
	defer tx.Rollback()
	if message != "" {
		if _, err := o.Repo.AppendMessage(ctx, tx, turn.ConversationID, domain.RoleUser, message, now); err != nil {
			return Turn{}, err
		}
	}
	if _, err := o.Repo.AppendMessage(ctx, tx, turn.ConversationID, domain.RoleAssistant, turn.Reply, now); err != nil {
		return Turn{}, err
	}
	if state != nil {
		if err := o.Repo.SaveDialogueState(ctx, tx, turn.ConversationID, state); err != nil {
			return Turn{}, err
		}
	} else if clearState {
		if err := o.Repo.SaveDialogueState(ctx, tx, turn.ConversationID, nil); err != nil {
			return Turn{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Turn{}, err
	}

	o.log().Info("chat turn",
		"conversation_id", turn.ConversationID,
		"action", turn.Action)
	return turn, nil
}

func emptyMessage(lang string) string {
	if lang == "ur" {
		return "آپ کا پیغام خالی تھا۔ آپ کیا کرنا چاہتے ہیں؟"
	}
	return "Your message was empty. What would you like to do?"
}

func degradedMessage(lang string) string {
	if lang == "ur" {
		return "معذرت، میں ابھی آپ کی بات پوری طرح نہیں سمجھ پا رہا۔ تھوڑی دیر بعد دوبارہ کوشش کریں یا سادہ الفاظ میں لکھیں، جیسے \"add task buy milk\"۔"
	}
	return "Sorry, I'm having trouble understanding right now. Try again in a moment, or phrase it simply, like \"add task buy milk\"."
}
