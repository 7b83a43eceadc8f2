package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/dto"
	"taskboard/internal/realtime"
	"taskboard/internal/repo"
)

type testEnv struct {
	router *gin.Engine
	hub    *realtime.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := realtime.NewHub(realtime.Options{Logger: log})
	t.Cleanup(hub.Close)

	r := gin.New()
	Setup(r, config.Config{App: config.AppConfig{Env: "test", Version: "v-test"}}, Deps{
		Store:    repo.NewMemory().Store(),
		Sessions: auth.NewMemoryStore(time.Hour),
		Hub:      hub,
		Log:      log,
	})
	return &testEnv{router: r, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) register(t *testing.T, username, email string) dto.AuthResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "secret",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", email, w.Code, w.Body.String())
	}
	var res dto.AuthResponse
	decode(t, w, &res)
	return res
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestServiceEndpoints(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/", "/health", "/version", "/swagger-doc.json"} {
		if w := e.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)
	res := e.register(t, "alice", "alice@example.com")
	if res.Token == "" || res.User.Username != "alice" {
		t.Fatalf("register = %+v", res)
	}

	if w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "x",
	}); w.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d", w.Code)
	}

	if w := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "nope",
	}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d", w.Code)
	}

	w := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	var login dto.AuthResponse
	decode(t, w, &login)
	if !strings.Contains(w.Header().Get("Set-Cookie"), auth.SessionCookieName+"="+login.Token) {
		t.Errorf("cookie not set: %q", w.Header().Get("Set-Cookie"))
	}

	if w := e.do(t, http.MethodPost, "/api/v1/auth/logout", login.Token, nil); w.Code != http.StatusNoContent {
		t.Errorf("logout = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/api/v1/tasks", login.Token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("token still valid after logout: %d", w.Code)
	}
}

func TestTasksRequireAuth(t *testing.T) {
	e := newTestEnv(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/tasks"},
		{http.MethodPost, "/api/v1/tasks"},
		{http.MethodPut, "/api/v1/tasks/x"},
		{http.MethodDelete, "/api/v1/tasks/x"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/ws"},
	} {
		if w := e.do(t, tc.method, tc.path, "bogus", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestTaskCRUD(t *testing.T) {
	e := newTestEnv(t)
	alice := e.register(t, "alice", "alice@example.com")
	bob := e.register(t, "bob", "bob@example.com")
	tok := alice.Token

	w := e.do(t, http.MethodPost, "/api/v1/tasks", tok, map[string]any{
		"title": "Review PR", "status": "In Progress", "assignedTo": []int64{bob.User.ID},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var created dto.TaskResponse
	decode(t, w, &created)
	if created.Status != "in_progress" || created.AssignedTo == nil || created.AssignedTo.Username != "bob" {
		t.Errorf("created = %+v", created)
	}

	if w := e.do(t, http.MethodPost, "/api/v1/tasks", tok, map[string]any{"description": "no title"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing title = %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/api/v1/tasks", tok, map[string]any{"title": "x", "assigned_to": 999}); w.Code != http.StatusNotFound {
		t.Errorf("unknown assignee = %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/api/v1/tasks", tok, map[string]any{"title": "x", "assigned_to": []int64{1, 2}}); w.Code != http.StatusBadRequest {
		t.Errorf("two assignees = %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/api/v1/tasks", tok, map[string]any{"title": "x", "status": "blocked"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d", w.Code)
	}

	w = e.do(t, http.MethodPut, "/api/v1/tasks/"+created.ID, tok, map[string]any{"assigned_to": nil, "status": "Done"})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}
	var updated dto.TaskResponse
	decode(t, w, &updated)
	if updated.Status != "done" || updated.AssignedTo != nil || updated.Title != "Review PR" {
		t.Errorf("updated = %+v", updated)
	}

	if w := e.do(t, http.MethodPatch, "/api/v1/tasks/missing", tok, map[string]any{"title": "x"}); w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d", w.Code)
	}

	w = e.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, tok, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get = %d", w.Code)
	}

	w = e.do(t, http.MethodGet, "/api/v1/tasks", bob.Token, nil)
	var list dto.ListTasksResponse
	decode(t, w, &list)
	if len(list.Tasks) != 1 || list.WorkspaceID == 0 {
		t.Errorf("list = %+v", list)
	}

	w = e.do(t, http.MethodDelete, "/api/v1/tasks/"+created.ID, tok, nil)
	var del dto.DeleteTaskResponse
	decode(t, w, &del)
	if w.Code != http.StatusOK || !del.OK || del.ID != created.ID {
		t.Errorf("delete = %d %+v", w.Code, del)
	}
	if w := e.do(t, http.MethodDelete, "/api/v1/tasks/"+created.ID, tok, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", w.Code)
	}
}

func TestListUsersOmitsCredentials(t *testing.T) {
	e := newTestEnv(t)
	alice := e.register(t, "alice", "alice@example.com")
	e.register(t, "bob", "bob@example.com")

	for _, path := range []string{"/api/v1/users", "/api/v1/tasks/users"} {
		w := e.do(t, http.MethodGet, path, alice.Token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, w.Code)
		}
		if strings.Contains(strings.ToLower(w.Body.String()), "password") {
			t.Errorf("%s leaks credentials: %s", path, w.Body.String())
		}
		var users []dto.UserResponse
		decode(t, w, &users)
		if len(users) != 2 {
			t.Errorf("%s returned %d users", path, len(users))
		}
	}
}

func TestSecondSessionSeesMutationsInOrder(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	alice := e.register(t, "alice", "alice@example.com")
	bob := e.register(t, "bob", "bob@example.com")

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=" + bob.Token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() dto.EventMessage {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var m dto.EventMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}
	if hello := read(); hello.Type != dto.MessageHello {
		t.Fatalf("first frame = %+v", hello)
	}

	w := e.do(t, http.MethodPost, "/api/v1/tasks", alice.Token, map[string]any{"title": "Write spec"})
	var created dto.TaskResponse
	decode(t, w, &created)
	if created.Status != "todo" || created.AssignedTo != nil {
		t.Fatalf("created = %+v", created)
	}
	e.do(t, http.MethodPut, "/api/v1/tasks/"+created.ID, alice.Token, map[string]any{"status": "In Progress"})
	e.do(t, http.MethodDelete, "/api/v1/tasks/"+created.ID, alice.Token, nil)

	m := read()
	if m.Type != "task_created" || m.Task == nil || m.Task.Title != "Write spec" {
		t.Errorf("frame 1 = %+v", m)
	}
	m = read()
	if m.Type != "task_updated" || m.Task == nil || m.Task.Status != "in_progress" || m.Task.Title != "Write spec" {
		t.Errorf("frame 2 = %+v", m)
	}
	m = read()
	if m.Type != "task_deleted" || m.TaskID != created.ID {
		t.Errorf("frame 3 = %+v", m)
	}

	w = e.do(t, http.MethodGet, "/api/v1/tasks", bob.Token, nil)
	var list dto.ListTasksResponse
	decode(t, w, &list)
	for _, task := range list.Tasks {
		if task.ID == created.ID {
			t.Error("deleted task still listed")
		}
	}
}

func TestLogoutClosesPushChannel(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	bob := e.register(t, "bob", "bob@example.com")
	header := http.Header{"Authorization": []string{"Bearer " + bob.Token}}
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello dto.EventMessage
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}

	if w := e.do(t, http.MethodPost, "/api/v1/auth/logout", bob.Token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", w.Code)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after logout = %v, want normal close", err)
	}
	if e.hub.Len() != 0 {
		t.Errorf("sessions = %d", e.hub.Len())
	}
}
