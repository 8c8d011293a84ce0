package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/lessonsync/internal/config"
	"github.com/dgallion1/lessonsync/internal/imports"
	"github.com/dgallion1/lessonsync/internal/session"
	"github.com/dgallion1/lessonsync/internal/upload"
)

type testEnv struct {
	server   *Server
	sessions *session.Registry
}

func newTestEnv(t *testing.T, apiKey string, uploads *upload.Client) *testEnv {
	t.Helper()
	cfg := config.Load()
	cfg.APIKey = apiKey

	reg := session.NewRegistry(session.Options{}, nil, nil)
	orch := imports.NewOrchestrator(imports.Options{Workers: 1}, reg, nil, nil)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	srv := NewServer(Deps{Sessions: reg, Imports: orch, Uploads: uploads}, nil, cfg)
	return &testEnv{server: srv, sessions: reg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func surfaceField(t *testing.T, body map[string]any, key string) any {
	t.Helper()
	surf, ok := body["surface"].(map[string]any)
	if !ok {
		t.Fatalf("expected surface in %v", body)
	}
	return surf[key]
}

func multipartBody(t *testing.T, fields map[string]string, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "secret", nil)
	w, body := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("expected ok health, got %d %v", w.Code, body)
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, "secret", nil)

	w, _ := env.do(t, http.MethodPost, "/api/classify", map[string]string{"html": "<p>x</p>"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	for _, tc := range []struct {
		token string
		want  int
	}{
		{"wrong", http.StatusUnauthorized},
		{"secret", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/classify", strings.NewReader(`{"html":"<p>x</p>"}`))
		req.Header.Set("Authorization", "Bearer "+tc.token)
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("token %q: expected %d, got %d", tc.token, tc.want, rec.Code)
		}
	}
}

func TestClassify(t *testing.T) {
	env := newTestEnv(t, "", nil)
	w, body := env.do(t, http.MethodPost, "/api/classify", map[string]string{
		"html":     `<p style="font-size:18pt">Part</p><p><strong>İSTANBUL</strong></p>`,
		"language": "tr",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body["language"] != "tr" {
		t.Errorf("expected language tr, got %v", body["language"])
	}
	results := body["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %v", results)
	}
	if lvl := results[0].(map[string]any)["level"]; lvl != float64(2) {
		t.Errorf("expected 18pt paragraph at level 2, got %v", lvl)
	}
	if lvl := results[1].(map[string]any)["level"]; lvl != float64(3) {
		t.Errorf("expected bold caps paragraph at level 3, got %v", lvl)
	}
}

func TestConvert(t *testing.T) {
	env := newTestEnv(t, "", nil)
	w, body := env.do(t, http.MethodPost, "/api/convert", map[string]string{
		"content": `<p style="font-size:24pt">Lesson</p><p>Body</p>`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["markdown"] != "# Lesson\n\nBody" {
		t.Errorf("unexpected markdown %q", body["markdown"])
	}
	outline := body["outline"].(map[string]any)
	if len(outline["sections"].([]any)) != 1 {
		t.Errorf("expected one section, got %v", outline)
	}

	w, _ = env.do(t, http.MethodPost, "/api/convert", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty body, got %d", w.Code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, "", nil)

	w, body := env.do(t, http.MethodPost, "/api/sessions", map[string]any{
		"identity": "lesson-1",
		"content":  "# Title\n\nBody",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	id := body["session_id"].(string)
	base := "/api/sessions/" + id
	if got := surfaceField(t, body, "state"); got != "synced" {
		t.Errorf("expected synced, got %v", got)
	}

	if w, _ := env.do(t, http.MethodPut, base+"/focus", map[string]bool{"focused": true}); w.Code != http.StatusOK {
		t.Fatalf("focus: %d", w.Code)
	}

	w, body = env.do(t, http.MethodPost, base+"/commands", map[string]any{
		"command": "insertText",
		"args":    map[string]any{"block": 1, "text": " more"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("command: %d %s", w.Code, w.Body.String())
	}
	if body["stored"] != "# Title\n\nBody more" || body["changes"] != float64(1) {
		t.Errorf("expected local edit to be stored, got %v / %v", body["stored"], body["changes"])
	}

	// The owner echoes the stored value back: nothing happens.
	_, body = env.do(t, http.MethodPut, base+"/content", map[string]any{"content": "# Title\n\nBody more"})
	if body["decision"] != "noop" {
		t.Errorf("expected noop for echo, got %v", body["decision"])
	}

	_, body = env.do(t, http.MethodPut, base+"/content", map[string]any{"content": "# Title\n\nServer"})
	if body["decision"] != "defer" {
		t.Errorf("expected defer while focused, got %v", body["decision"])
	}
	_, body = env.do(t, http.MethodGet, base+"/diff", nil)
	if body["pending"] != true || !strings.Contains(body["diff"].(string), "+ Server") {
		t.Errorf("expected pending diff, got %v", body)
	}

	_, body = env.do(t, http.MethodPut, base+"/focus", map[string]bool{"focused": false})
	if body["decision"] != "replace" {
		t.Errorf("expected replace on blur, got %v", body["decision"])
	}
	if got := surfaceField(t, body, "markdown"); got != "# Title\n\nServer" {
		t.Errorf("expected server content, got %q", got)
	}

	_, body = env.do(t, http.MethodGet, base+"/outline", nil)
	if body["sections"] == nil {
		t.Errorf("expected outline sections, got %v", body)
	}

	_, body = env.do(t, http.MethodGet, base+"/chunks", nil)
	if chunks, ok := body["chunks"].([]any); !ok || len(chunks) != 1 {
		t.Errorf("expected one chunk, got %v", body)
	}
	if w, _ := env.do(t, http.MethodGet, base+"/chunks?size=x", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad size, got %d", w.Code)
	}

	if w, _ := env.do(t, http.MethodDelete, base, nil); w.Code != http.StatusNoContent {
		t.Errorf("expected 204 on close, got %d", w.Code)
	}
	if w, _ := env.do(t, http.MethodGet, base, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after close, got %d", w.Code)
	}
}

func TestSessionUnsetThenIdentity(t *testing.T) {
	env := newTestEnv(t, "", nil)
	_, body := env.do(t, http.MethodPost, "/api/sessions", map[string]any{"identity": "a"})
	id := body["session_id"].(string)
	if got := surfaceField(t, body, "state"); got != "initial" {
		t.Errorf("expected initial without content, got %v", got)
	}

	env.do(t, http.MethodPut, "/api/sessions/"+id+"/focus", map[string]bool{"focused": true})
	_, body = env.do(t, http.MethodPut, "/api/sessions/"+id+"/identity", map[string]any{
		"identity": "b",
		"content":  "Other lesson",
	})
	if body["decision"] != "replace" || surfaceField(t, body, "identity") != "b" {
		t.Errorf("expected identity switch to replace, got %v", body)
	}
}

func TestCommandErrors(t *testing.T) {
	env := newTestEnv(t, "", nil)
	_, body := env.do(t, http.MethodPost, "/api/sessions", map[string]any{"identity": "a", "content": "Text"})
	base := "/api/sessions/" + body["session_id"].(string)

	w, _ := env.do(t, http.MethodPost, base+"/commands", map[string]any{"command": "explode"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown command, got %d", w.Code)
	}
	w, _ = env.do(t, http.MethodPost, base+"/commands", map[string]any{
		"command": "toggleHeading", "args": map[string]any{"block": 0, "level": 9},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad level, got %d", w.Code)
	}
	w, _ = env.do(t, http.MethodPost, base+"/commands", map[string]any{"command": "redo"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 with empty history, got %d", w.Code)
	}

	_, body = env.do(t, http.MethodPost, base+"/commands", map[string]any{
		"command": "toggleHeading", "args": map[string]any{"block": 0, "level": 2}, "dry_run": true,
	})
	if body["can"] != true {
		t.Errorf("expected dry run to succeed, got %v", body)
	}
	_, body = env.do(t, http.MethodGet, base, nil)
	if got := surfaceField(t, body, "markdown"); got != "Text" {
		t.Errorf("expected dry run to leave document alone, got %q", got)
	}
}

func TestImport(t *testing.T) {
	env := newTestEnv(t, "", nil)
	_, body := env.do(t, http.MethodPost, "/api/sessions", map[string]any{"identity": "a"})
	sessionID := body["session_id"].(string)

	buf, ct := multipartBody(t, map[string]string{"session_id": sessionID}, "notes.md", "text/markdown", []byte("# Notes\n\nFirst"))
	req := httptest.NewRequest(http.MethodPost, "/api/imports", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var accepted map[string]any
	json.Unmarshal(w.Body.Bytes(), &accepted)
	poll := accepted["poll_url"].(string)

	deadline := time.Now().Add(5 * time.Second)
	var status map[string]any
	for time.Now().Before(deadline) {
		_, status = env.do(t, http.MethodGet, poll, nil)
		if status["status"] == string(imports.StatusCompleted) || status["status"] == string(imports.StatusFailed) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status["status"] != string(imports.StatusCompleted) || status["decision"] != "replace" {
		t.Fatalf("expected completed replace, got %v", status)
	}

	_, body = env.do(t, http.MethodGet, "/api/sessions/"+sessionID, nil)
	if got := surfaceField(t, body, "markdown"); got != "# Notes\n\nFirst" {
		t.Errorf("expected imported content in session, got %q", got)
	}
}

func TestImport_Rejects(t *testing.T) {
	env := newTestEnv(t, "", nil)

	buf, ct := multipartBody(t, nil, "deck.pptx", "application/octet-stream", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/imports", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported type, got %d", w.Code)
	}

	buf, ct = multipartBody(t, map[string]string{"session_id": "missing"}, "a.txt", "text/plain", []byte("x"))
	req = httptest.NewRequest(http.MethodPost, "/api/imports", buf)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}

	if w, _ := env.do(t, http.MethodGet, "/api/imports/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", w.Code)
	}
}

func TestImageUpload(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"secure_url":"https://res.example/pic.png","bytes":3}`))
	}))
	t.Cleanup(media.Close)
	uploads := upload.NewClient(upload.Config{BaseURL: media.URL, CloudName: "demo", Preset: "p"}, nil)
	env := newTestEnv(t, "", uploads)

	_, body := env.do(t, http.MethodPost, "/api/sessions", map[string]any{"identity": "a", "content": "Intro"})
	base := "/api/sessions/" + body["session_id"].(string)

	buf, ct := multipartBody(t, map[string]string{"alt": "pic"}, "pic.png", "image/png", []byte("PNG"))
	req := httptest.NewRequest(http.MethodPost, base+"/images", buf)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if got := surfaceField(t, body, "markdown"); got != "Intro\n\n![pic](https://res.example/pic.png)" {
		t.Errorf("unexpected markdown %q", got)
	}

	buf, ct = multipartBody(t, nil, "doc.svg", "image/svg+xml", []byte("<svg/>"))
	req = httptest.NewRequest(http.MethodPost, base+"/images", buf)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415 for svg, got %d", w.Code)
	}

	w, body = env.do(t, http.MethodGet, "/api/stats/uploads", nil)
	if w.Code != http.StatusOK || body["sessions"] != float64(1) {
		t.Errorf("unexpected stats %d %v", w.Code, body)
	}
}

func TestImageUpload_NotConfigured(t *testing.T) {
	env := newTestEnv(t, "", nil)
	w, _ := env.do(t, http.MethodPost, "/api/sessions/x/images", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
