package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"tasktalk/internal/db"
	"tasktalk/internal/domain"
	"tasktalk/internal/engine"
	"tasktalk/internal/events"
	"tasktalk/internal/intent"
	"tasktalk/internal/migrate"
	"tasktalk/internal/repo"
)

// stubClassifier returns a canned action or error and records what it saw.
type stubClassifier struct {
	action  intent.Action
	err     error
	history []domain.Message
	called  bool
}

func (s *stubClassifier) Classify(ctx context.Context, history []domain.Message, utterance, lang string) (intent.Action, error) {
	s.called = true
	s.history = history
	if s.err != nil {
		return nil, s.err
	}
	return s.action, nil
}

type chatEnv struct {
	orc *Orchestrator
	ctx context.Context
}

func newChatEnv(t *testing.T) chatEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatal(err)
	}
	r := repo.Repo{DB: conn}
	eng := engine.New(r, events.Writer{DB: conn})
	now := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	eng.Now = now
	orc := &Orchestrator{
		Repo:         r,
		Engine:       eng,
		Matcher:      intent.Matcher{Now: now},
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		HistoryLimit: 10,
		Now:          now,
	}
	return chatEnv{orc: orc, ctx: context.Background()}
}

func TestHandleMatchedCreate(t *testing.T) {
	env := newChatEnv(t)
	turn, err := env.orc.Handle(env.ctx, "u1", "", "Add a task to buy groceries", "en")
	if err != nil {
		t.Fatal(err)
	}
	if turn.ConversationID == "" {
		t.Fatal("no conversation opened")
	}
	if turn.Action != "create_task" {
		t.Fatalf("action = %q", turn.Action)
	}
	if turn.Result.Task == nil || turn.Result.Task.Priority != domain.PriorityMedium {
		t.Fatalf("task = %#v", turn.Result.Task)
	}

	// Both sides of the exchange are stored.
	msgs, err := env.orc.Repo.RecentMessages(env.ctx, turn.ConversationID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Fatalf("messages = %#v", msgs)
	}
	if msgs[1].Content != turn.Reply {
		t.Fatalf("stored reply %q != %q", msgs[1].Content, turn.Reply)
	}
}

func TestHandleGuidedCreateFlow(t *testing.T) {
	env := newChatEnv(t)
	turn, err := env.orc.Handle(env.ctx, "u1", "", "add task", "en")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Action != "start_guided_create" {
		t.Fatalf("action = %q", turn.Action)
	}
	if !strings.Contains(turn.Reply, "called") {
		t.Fatalf("first prompt = %q", turn.Reply)
	}
	convID := turn.ConversationID

	turn, err = env.orc.Handle(env.ctx, "u1", convID, "Call mom", "en")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Action != "continue_guided_create" {
		t.Fatalf("action = %q", turn.Action)
	}

	for i := 0; i < 4; i++ {
		turn, err = env.orc.Handle(env.ctx, "u1", convID, "skip", "en")
		if err != nil {
			t.Fatal(err)
		}
		if turn.Action != "continue_guided_create" {
			t.Fatalf("step %d action = %q", i, turn.Action)
		}
	}

	turn, err = env.orc.Handle(env.ctx, "u1", convID, "skip", "en")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Action != "create_task" {
		t.Fatalf("final action = %q", turn.Action)
	}
	if turn.Result.Task == nil || turn.Result.Task.Title != "Call mom" || turn.Result.Task.Priority != domain.PriorityMedium {
		t.Fatalf("task = %#v", turn.Result.Task)
	}
	if _, err := env.orc.Repo.LoadDialogueState(env.ctx, convID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("wizard slot not cleared: %v", err)
	}
}

func TestHandleActiveWizardOwnsTheMessage(t *testing.T) {
	env := newChatEnv(t)
	turn, err := env.orc.Handle(env.ctx, "u1", "", "add task", "en")
	if err != nil {
		t.Fatal(err)
	}
	convID := turn.ConversationID

	// Even a message that looks like a command answers the wizard's question.
	turn, err = env.orc.Handle(env.ctx, "u1", convID, "show all my tasks", "en")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Action != "continue_guided_create" {
		t.Fatalf("action = %q", turn.Action)
	}
	state, err := env.orc.Repo.LoadDialogueState(env.ctx, convID)
	if err != nil {
		t.Fatal(err)
	}
	if state.Pending.Title != "show all my tasks" {
		t.Fatalf("title = %q", state.Pending.Title)
	}
}

func TestHandleWizardCancel(t *testing.T) {
	env := newChatEnv(t)
	turn, err := env.orc.Handle(env.ctx, "u1", "", "add task", "en")
	if err != nil {
		t.Fatal(err)
	}
	convID := turn.ConversationID

	turn, err = env.orc.Handle(env.ctx, "u1", convID, "never mind", "en")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Action != "cancel_guided_create" {
		t.Fatalf("action = %q", turn.Action)
	}
	if _, err := env.orc.Repo.LoadDialogueState(env.ctx, convID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("wizard slot not cleared: %v", err)
	}
	res, err := env.orc.Engine.Dispatch(env.ctx, intent.ListTasks{UserID: "u1"}, "u1", "en")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tasks) != 0 {
		t.Fatalf("cancel must not create tasks: %v", res.Tasks)
	}
}

func TestHandleUnmatchedWithoutClassifier(t *testing.T) {
	env := newChatEnv(t)
	turn, err := env.orc.Handle(env.ctx, "u1", "", "milk", "en")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Action != "unrecognized" {
		t.Fatalf("action = %q", turn.Action)
	}
	if !strings.Contains(turn.Reply, "didn't catch that") {
		t.Fatalf("reply = %q", turn.Reply)
	}
}

func TestHandleClassifierResolvesUnmatched(t *testing.T) {
	env := newChatEnv(t)
	stub := &stubClassifier{action: intent.CreateTask{Title: "buy milk"}}
	env.orc.Classifier = stub

	turn, err := env.orc.Handle(env.ctx, "u1", "", "milk", "en")
	if err != nil {
		t.Fatal(err)
	}
	if !stub.called {
		t.Fatal("classifier was not consulted")
	}
	if turn.Action != "create_task" || turn.Result.Task == nil {
		t.Fatalf("turn = %#v", turn)
	}
	// The user id comes from the request, not from the model.
	if turn.Result.Task.UserID != "u1" {
		t.Fatalf("user id = %q", turn.Result.Task.UserID)
	}
}

func TestHandleClassifierSeesHistory(t *testing.T) {
	env := newChatEnv(t)
	stub := &stubClassifier{action: intent.Unrecognized{}}
	env.orc.Classifier = stub

	turn, err := env.orc.Handle(env.ctx, "u1", "", "hmm", "en")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.orc.Handle(env.ctx, "u1", turn.ConversationID, "still thinking", "en"); err != nil {
		t.Fatal(err)
	}
	if len(stub.history) != 2 {
		t.Fatalf("second turn should carry the first exchange, got %d messages", len(stub.history))
	}
}

func TestHandleClassifierFailureDegrades(t *testing.T) {
	env := newChatEnv(t)
	env.orc.Classifier = &stubClassifier{err: errors.New("upstream timeout")}

	turn, err := env.orc.Handle(env.ctx, "u1", "", "milk", "en")
	if err != nil {
		t.Fatalf("classifier trouble must not fail the request: %v", err)
	}
	if turn.Action != "clarify" {
		t.Fatalf("action = %q", turn.Action)
	}
	if !strings.Contains(turn.Reply, "trouble understanding") {
		t.Fatalf("reply = %q", turn.Reply)
	}
}

func TestHandleMatcherBeatsClassifier(t *testing.T) {
	env := newChatEnv(t)
	stub := &stubClassifier{action: intent.DeleteTask{TaskID: 1}}
	env.orc.Classifier = stub

	turn, err := env.orc.Handle(env.ctx, "u1", "", "Add a task to water plants", "en")
	if err != nil {
		t.Fatal(err)
	}
	if stub.called {
		t.Fatal("classifier must not run when the matcher hits")
	}
	if turn.Action != "create_task" {
		t.Fatalf("action = %q", turn.Action)
	}
}

func TestHandleEmptyMessage(t *testing.T) {
	env := newChatEnv(t)
	turn, err := env.orc.Handle(env.ctx, "u1", "", "   ", "en")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Action != "clarify" {
		t.Fatalf("action = %q", turn.Action)
	}
	msgs, err := env.orc.Repo.RecentMessages(env.ctx, turn.ConversationID, 10)
	if err != nil {
		t.Fatal(err)
	}
	// Only the assistant reply is stored; there was no user content.
	if len(msgs) != 1 || msgs[0].Role != domain.RoleAssistant {
		t.Fatalf("messages = %#v", msgs)
	}
}

func TestHandleForeignConversationRejected(t *testing.T) {
	env := newChatEnv(t)
	turn, err := env.orc.Handle(env.ctx, "u1", "", "add task buy milk", "en")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.orc.Handle(env.ctx, "u2", turn.ConversationID, "show my tasks", "en"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestHandleLanguageFallback(t *testing.T) {
	env := newChatEnv(t)
	env.orc.DefaultLanguage = "ur"
	turn, err := env.orc.Handle(env.ctx, "u1", "", "milk", "fr")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Reply != "معذرت، میں یہ نہیں سمجھ پایا۔ آپ ٹاسک بنانے، دیکھنے، مکمل کرنے یا حذف کرنے کا کہہ سکتے ہیں۔" {
		t.Fatalf("reply = %q", turn.Reply)
	}
}
