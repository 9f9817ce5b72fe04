package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/studyplan/internal/metrics"
	"github.com/MikeSquared-Agency/studyplan/internal/processor"
	"github.com/MikeSquared-Agency/studyplan/internal/search"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

const planReply = "Plan:\n```mermaid\ngraph TD\n  A[Read] --> B[Write]\n  B --> C[Review]\n```"

type stubGenerator struct{ reply string }

func (g stubGenerator) Generate(context.Context, string) (string, error) { return g.reply, nil }

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string, int) []search.Result { return nil }

func newTestServer(t *testing.T, s store.Store, token string) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	proc := processor.New(s, stubGenerator{reply: planReply}, stubSearcher{}, nil, m, logger)
	return NewServer(Options{Port: 8750, APIToken: token, Model: "test-model"}, proc, m, logger)
}

func do(t *testing.T, srv *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, "")

	w := do(t, srv, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if body := decode(t, w); body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	cases := []struct {
		name  string
		store store.Store
		want  string
	}{
		{"disabled", nil, "disabled"},
		{"active", store.NewMemory(), "active"},
		{"degraded", store.NewDegraded(slog.New(slog.NewTextHandler(io.Discard, nil)), errors.New("no credentials")), "degraded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.store, "")
			w := do(t, srv, "GET", "/api/v1/status", "")
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			body := decode(t, w)
			if body["persistence"] != tc.want {
				t.Errorf("expected persistence %s, got %v", tc.want, body["persistence"])
			}
			if body["model"] != "test-model" {
				t.Errorf("expected model test-model, got %v", body["model"])
			}
		})
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, "")

	w := do(t, srv, "GET", "/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem json, got %s", ct)
	}
}

func TestBearerAuth(t *testing.T) {
	srv := newTestServer(t, nil, "secret")

	if w := do(t, srv, "GET", "/api/v1/status", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/status", "", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/api/v1/status", "", "Authorization", "Bearer secret"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
	if w := do(t, srv, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health must not require a token, got %d", w.Code)
	}
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t, nil, "")

	for name, body := range map[string]string{
		"bad json":      `{`,
		"empty message": `{"message":""}`,
		"long setting":  `{"message":"hi","settings":{"duration":"` + strings.Repeat("x", 300) + `"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/v1/chat", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestChatRoadmapFlow(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), "")

	w := do(t, srv, "POST", "/api/v1/chat", `{"message":"teach me writing","session_id":"s1","settings":{"study_field":"English"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	chat := decode(t, w)
	if chat["session_id"] != "s1" {
		t.Errorf("expected session s1, got %v", chat["session_id"])
	}
	roadmapID, _ := chat["roadmap_id"].(string)
	if roadmapID == "" {
		t.Fatal("expected roadmap id")
	}
	if diagrams, _ := chat["diagrams"].([]any); len(diagrams) != 1 {
		t.Errorf("expected 1 diagram, got %v", chat["diagrams"])
	}

	w = do(t, srv, "GET", "/api/v1/sessions/s1/roadmaps", "")
	if body := decode(t, w); body["count"] != float64(1) {
		t.Errorf("expected 1 roadmap, got %v", body["count"])
	}

	w = do(t, srv, "GET", "/api/v1/roadmaps/"+roadmapID+"/progress", "")
	prog := decode(t, w)
	if prog["total_items"] != float64(3) || prog["completed_items"] != float64(0) {
		t.Fatalf("unexpected progress: %v", prog)
	}
	items := prog["items"].([]any)
	firstID := items[0].(map[string]any)["id"].(string)

	w = do(t, srv, "PATCH", "/api/v1/items/"+firstID, `{"completed":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/v1/roadmaps/"+roadmapID+"/progress", "")
	prog = decode(t, w)
	if prog["completed_items"] != float64(1) {
		t.Errorf("expected 1 completed, got %v", prog["completed_items"])
	}
	if prog["remaining_items"] != float64(2) || prog["complete"] != false {
		t.Errorf("expected 2 remaining and not complete, got %v %v", prog["remaining_items"], prog["complete"])
	}

	w = do(t, srv, "POST", "/api/v1/sessions/s1/reset", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 on reset, got %d", w.Code)
	}
	w = do(t, srv, "GET", "/api/v1/sessions/s1/roadmaps", "")
	if body := decode(t, w); body["count"] != float64(0) {
		t.Errorf("expected no roadmaps after reset, got %v", body["count"])
	}
}

func TestChatGeneratesSessionID(t *testing.T) {
	srv := newTestServer(t, nil, "")

	w := do(t, srv, "POST", "/api/v1/chat", `{"message":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if id, _ := decode(t, w)["session_id"].(string); id == "" {
		t.Error("expected a generated session id")
	}
}

func TestUpdateItemErrors(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), "")

	if w := do(t, srv, "PATCH", "/api/v1/items/nope", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without completed, got %d", w.Code)
	}
	if w := do(t, srv, "PATCH", "/api/v1/items/nope", `{"completed":true}`); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown item, got %d", w.Code)
	}

	disabled := newTestServer(t, nil, "")
	if w := do(t, disabled, "PATCH", "/api/v1/items/nope", `{"completed":true}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without persistence, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil, "")
	do(t, srv, "GET", "/health", "")

	w := do(t, srv, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`route="/health"`)) {
		t.Error("expected health request to be recorded by route")
	}
}

func TestUnknownSessionRoutesDoNotCreateSessions(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), "")

	w := do(t, srv, "GET", "/api/v1/sessions/ghost/roadmaps", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decode(t, w); body["count"] != float64(0) {
		t.Errorf("expected empty roadmaps, got %v", body["count"])
	}

	if w := do(t, srv, "POST", "/api/v1/sessions/ghost/reset", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session reset, got %d", w.Code)
	}
	if n := srv.sessions.len(); n != 0 {
		t.Errorf("read-only routes must not register sessions, got %d", n)
	}
}

type fakeEvents struct{ up bool }

func (f fakeEvents) Connected() bool { return f.up }

func TestStatusReportsEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	proc := processor.New(nil, stubGenerator{}, stubSearcher{}, nil, nil, logger)

	cases := []struct {
		name   string
		events EventStatus
		want   string
	}{
		{"disabled", nil, "disabled"},
		{"connected", fakeEvents{up: true}, "connected"},
		{"disconnected", fakeEvents{up: false}, "disconnected"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(Options{Events: tc.events}, proc, nil, logger)
			body := decode(t, do(t, srv, "GET", "/api/v1/status", ""))
			if body["events"] != tc.want {
				t.Errorf("expected events %s, got %v", tc.want, body["events"])
			}
		})
	}
}
