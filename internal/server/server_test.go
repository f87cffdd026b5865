package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"tasktalk/internal/chat"
	"tasktalk/internal/db"
	"tasktalk/internal/engine"
	"tasktalk/internal/events"
	"tasktalk/internal/intent"
	"tasktalk/internal/migrate"
	"tasktalk/internal/repo"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	eng := engine.New(r, events.Writer{DB: conn})
	now := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	eng.Now = now
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orc := &chat.Orchestrator{
		Repo:         r,
		Engine:       eng,
		Matcher:      intent.Matcher{Now: now},
		Log:          log,
		HistoryLimit: 10,
		Now:          now,
	}
	handler, err := New(Config{
		Engine:       eng,
		Orchestrator: orc,
		BasePath:     "/v1",
		Auth:         AuthConfig{JWTSecret: testJWTSecret, Logger: log},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func loginAs(t *testing.T, srv *testServer, userID string) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/dev/login", map[string]any{
		"user_id": userID,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var out DevLoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func TestChatCreatesAndListsTasks(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := loginAs(t, srv, "alice")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/chat", map[string]any{
		"message": "Add a task to buy groceries",
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status %d: %s", res.StatusCode, string(data))
	}
	var reply ChatResponse
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if reply.Action != "create_task" || reply.ConversationID == "" {
		t.Fatalf("reply = %+v", reply)
	}
	if reply.Task == nil || reply.Task.Priority != "medium" {
		t.Fatalf("task = %+v", reply.Task)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/chat", map[string]any{
		"message":         "show all my tasks",
		"conversation_id": reply.ConversationID,
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list chat status %d: %s", res.StatusCode, string(data))
	}
	var listReply ChatResponse
	_ = json.Unmarshal(data, &listReply)
	if listReply.Action != "list_tasks" || len(listReply.Tasks) != 1 {
		t.Fatalf("list reply = %+v", listReply)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/conversations/"+reply.ConversationID+"/messages", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("messages status %d: %s", res.StatusCode, string(data))
	}
	var msgs []MessageResponse
	_ = json.Unmarshal(data, &msgs)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(msgs))
	}
}

func TestGuidedCreateOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := loginAs(t, srv, "alice")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/chat", map[string]any{
		"message": "add task",
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start status %d: %s", res.StatusCode, string(data))
	}
	var reply ChatResponse
	_ = json.Unmarshal(data, &reply)
	if reply.Action != "start_guided_create" {
		t.Fatalf("action = %q", reply.Action)
	}
	convID := reply.ConversationID

	answers := []string{"Call mom", "skip", "skip", "skip", "skip", "skip", "skip"}
	for _, a := range answers {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/chat", map[string]any{
			"message":         a,
			"conversation_id": convID,
		}, auth)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%q status %d: %s", a, res.StatusCode, string(data))
		}
		_ = json.Unmarshal(data, &reply)
	}
	if reply.Action != "create_task" || reply.Task == nil {
		t.Fatalf("final reply = %+v", reply)
	}
	if reply.Task.Title != "Call mom" || reply.Task.Priority != "medium" {
		t.Fatalf("task = %+v", reply.Task)
	}
}

func TestTaskCRUDOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := loginAs(t, srv, "alice")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", map[string]any{
		"title":    "Ship release",
		"priority": "high",
		"tags":     []string{"work"},
	}, auth)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created TaskResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.ID == 0 || created.Priority != "high" {
		t.Fatalf("created = %+v", created)
	}
	taskID := created.ID

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+itoa(taskID), map[string]any{
		"notes": "cut the branch first",
	}, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+itoa(taskID)+"/done", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("done status %d: %s", res.StatusCode, string(data))
	}
	var done TaskResponse
	_ = json.Unmarshal(data, &done)
	if !done.Completed || done.CompletedAt == nil {
		t.Fatalf("done = %+v", done)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks?status=completed", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedTasks
	_ = json.Unmarshal(data, &page)
	if len(page.Items) != 1 || page.Limit != 20 {
		t.Fatalf("page = %+v", page)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/tasks/"+itoa(taskID), nil, auth)
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks/"+itoa(taskID), nil, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status %d", res.StatusCode)
	}
}

func TestTagEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := loginAs(t, srv, "alice")

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", map[string]any{"title": "plan trip"}, auth)
	var created TaskResponse
	_ = json.Unmarshal(data, &created)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+itoa(created.ID)+"/tags/Travel", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tag status %d: %s", res.StatusCode, string(data))
	}
	var tagged TaskResponse
	_ = json.Unmarshal(data, &tagged)
	if len(tagged.Tags) != 1 || tagged.Tags[0] != "travel" {
		t.Fatalf("tags = %v", tagged.Tags)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/tasks/"+itoa(created.ID)+"/tags/travel", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("untag status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/tasks/"+itoa(created.ID)+"/tags/travel", nil, auth)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("untag missing status %d", res.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", res.StatusCode)
	}
	// Legacy header is ignored unless explicitly enabled.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks", nil, map[string]string{
		"X-User-Id": "alice",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("legacy header status %d", res.StatusCode)
	}
	// Health stays open.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestCrossUserIsolation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	alice := loginAs(t, srv, "alice")
	bob := loginAs(t, srv, "bob")

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", map[string]any{"title": "secret"}, alice)
	var created TaskResponse
	_ = json.Unmarshal(data, &created)

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks/"+itoa(created.ID), nil, bob)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user get status %d", res.StatusCode)
	}

	// Same for conversations.
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/chat", map[string]any{"message": "show my tasks"}, alice)
	var reply ChatResponse
	_ = json.Unmarshal(data, &reply)
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/conversations/"+reply.ConversationID+"/messages", nil, bob)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user messages status %d", res.StatusCode)
	}
}

func TestValidationErrors(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	auth := loginAs(t, srv, "alice")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks", map[string]any{"title": ""}, auth)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing title status %d: %s", res.StatusCode, string(data))
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("error envelope: %v (%s)", err, string(data))
	}
	if body.Error.Code != "bad_request" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}

func TestWhoAmI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	auth := loginAs(t, srv, "alice")
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, auth)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	_ = json.Unmarshal(data, &who)
	if who.UserID != "alice" || who.Source != "jwt" {
		t.Fatalf("who = %+v", who)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
