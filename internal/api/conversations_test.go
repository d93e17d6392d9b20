package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
)

func createTestConversation(t *testing.T, ts *httptest.Server, token, title string) *model.Conversation {
	t.Helper()
	var conv model.Conversation
	resp := doJSON(t, ts, http.MethodPost, "/v1/conversations", token, map[string]string{
		"title": title,
	}, &conv)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation status = %d, want 201", resp.StatusCode)
	}
	return &conv
}

func TestCreateConversation(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	token := signUpTestUser(t, ts, "owner@example.com")

	conv := createTestConversation(t, ts, token, "hello thread")
	if conv.ID == "" {
		t.Error("conversation ID is empty")
	}
	if conv.Title != "hello thread" {
		t.Errorf("title = %q, want %q", conv.Title, "hello thread")
	}

	resp := doJSON(t, ts, http.MethodPost, "/v1/conversations", token, map[string]string{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing title: status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateConversationWithEngine(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	token := signUpTestUser(t, ts, "owner@example.com")
	engine := createTestEngine(t, ts, token, "chatty")

	var conv model.Conversation
	resp := doJSON(t, ts, http.MethodPost, "/v1/conversations", token, map[string]string{
		"title":     "engine chat",
		"engine_id": engine.ID,
	}, &conv)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	if conv.EngineID != engine.ID {
		t.Errorf("engine_id = %q, want %q", conv.EngineID, engine.ID)
	}

	resp = doJSON(t, ts, http.MethodPost, "/v1/conversations", token, map[string]string{
		"title":     "bad engine",
		"engine_id": model.NewID(),
	}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown engine: status = %d, want 404", resp.StatusCode)
	}
}

func TestRenameConversation(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	token := signUpTestUser(t, ts, "owner@example.com")
	conv := createTestConversation(t, ts, token, "before")

	var renamed model.Conversation
	resp := doJSON(t, ts, http.MethodPut, "/v1/conversations/"+conv.ID, token, map[string]string{
		"title": "after",
	}, &renamed)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename status = %d, want 200", resp.StatusCode)
	}
	if renamed.Title != "after" {
		t.Errorf("title = %q, want %q", renamed.Title, "after")
	}
}

func TestConversationOwnerScoping(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	owner := signUpTestUser(t, ts, "owner@example.com")
	other := signUpTestUser(t, ts, "other@example.com")
	conv := createTestConversation(t, ts, owner, "private")

	resp := doJSON(t, ts, http.MethodGet, "/v1/conversations/"+conv.ID, other, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign GET status = %d, want 404", resp.StatusCode)
	}
	resp = doJSON(t, ts, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", other, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign messages status = %d, want 404", resp.StatusCode)
	}
	resp = doJSON(t, ts, http.MethodDelete, "/v1/conversations/"+conv.ID, other, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", resp.StatusCode)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	token := signUpTestUser(t, ts, "owner@example.com")
	conv := createTestConversation(t, ts, token, "chat")

	for _, m := range []map[string]string{
		{"role": model.RoleUser, "content": "hello"},
		{"role": model.RoleAssistant, "content": "hi there"},
		{"role": model.RoleUser, "content": "how are you"},
	} {
		resp := doJSON(t, ts, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", token, m, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("append status = %d, want 201", resp.StatusCode)
		}
	}

	var body struct {
		Messages []*model.Message `json:"messages"`
	}
	doJSON(t, ts, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", token, nil, &body)
	if len(body.Messages) != 3 {
		t.Fatalf("listed %d messages, want 3", len(body.Messages))
	}
	if body.Messages[0].Content != "hello" || body.Messages[2].Content != "how are you" {
		t.Error("messages not in chronological order")
	}

	// limit keeps the most recent turns.
	doJSON(t, ts, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages?limit=2", token, nil, &body)
	if len(body.Messages) != 2 {
		t.Fatalf("limited list = %d messages, want 2", len(body.Messages))
	}
	if body.Messages[0].Content != "hi there" {
		t.Errorf("limited list starts at %q, want %q", body.Messages[0].Content, "hi there")
	}
}

func TestAppendMessageValidation(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	token := signUpTestUser(t, ts, "owner@example.com")
	conv := createTestConversation(t, ts, token, "chat")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad role", map[string]string{"role": "system", "content": "nope"}},
		{"empty content", map[string]string{"role": model.RoleUser, "content": ""}},
	}
	for _, tt := range tests {
		resp := doJSON(t, ts, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", token, tt.body, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, resp.StatusCode)
		}
	}
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	token := signUpTestUser(t, ts, "owner@example.com")
	conv := createTestConversation(t, ts, token, "doomed")

	doJSON(t, ts, http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", token, map[string]string{
		"role": model.RoleUser, "content": "bye",
	}, nil)

	resp := doJSON(t, ts, http.MethodDelete, "/v1/conversations/"+conv.ID, token, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", token, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("messages after delete = %d, want 404", resp.StatusCode)
	}
}
