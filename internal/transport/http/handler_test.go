package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"puzzle-gate-service/internal/app"
	"puzzle-gate-service/internal/domain"
	"puzzle-gate-service/internal/infra/memory"
)

func TestGetPuzzleCreatesAndResumesSession(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	var view domain.SessionView
	getJSON(t, server.URL+"/api/get-puzzle?questionCount=2&minCorrect=1", http.StatusOK, &view)
	if view.SessionID == "" || view.Question == "" || view.TotalQuestions != 2 {
		t.Fatalf("unexpected new session view: %+v", view)
	}

	var resumed domain.SessionView
	getJSON(t, server.URL+"/api/get-puzzle?sessionId="+view.SessionID, http.StatusOK, &resumed)
	if resumed.Question != view.Question || resumed.QuestionNumber != 1 {
		t.Fatalf("resume changed state: %+v", resumed)
	}
}

func TestCheckAnswerFlowUnlocksSecret(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	var view domain.SessionView
	getJSON(t, server.URL+"/api/get-puzzle?questionCount=2&minCorrect=2", http.StatusOK, &view)

	var result domain.AnswerResult
	for i := 0; i < 2; i++ {
		postJSON(t, server.URL+"/api/check-answer", map[string]string{
			"sessionId": view.SessionID,
			"answer":    "same", // every test question shares this solution
		}, http.StatusOK, &result)
		if !result.Correct {
			t.Fatalf("submission %d graded wrong: %+v", i+1, result)
		}
	}
	if !result.Completed || !result.SecretRevealed || result.SecretMessage == "" {
		t.Fatalf("expected unlocked terminal summary, got %+v", result)
	}

	var secret map[string]string
	getJSON(t, server.URL+"/api/get-secret-message?sessionId="+view.SessionID, http.StatusOK, &secret)
	if secret["secretMessage"] != result.SecretMessage {
		t.Fatalf("secret endpoint mismatch: %v", secret)
	}
}

func TestSecretStaysGated(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/get-secret-message?sessionId=unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session: expected 404, got %d", resp.StatusCode)
	}

	var view domain.SessionView
	getJSON(t, server.URL+"/api/get-puzzle?questionCount=2&minCorrect=2", http.StatusOK, &view)

	resp, err = http.Get(server.URL + "/api/get-secret-message?sessionId=" + view.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("active session: expected 403, got %d", resp.StatusCode)
	}
}

func TestCheckAnswerValidation(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	var view domain.SessionView
	getJSON(t, server.URL+"/api/get-puzzle?questionCount=1&minCorrect=1", http.StatusOK, &view)

	assertStatus(t, postRaw(t, server.URL+"/api/check-answer",
		fmt.Sprintf(`{"sessionId":%q,"answer":"  "}`, view.SessionID)), http.StatusBadRequest)
	assertStatus(t, postRaw(t, server.URL+"/api/check-answer",
		`{"sessionId":"unknown","answer":"x"}`), http.StatusNotFound)
}

func TestThreadEndpoints(t *testing.T) {
	chat := &fakeRelay{reply: "hello back"}
	server := newTestServer(t, chat)
	defer server.Close()

	var created map[string]string
	postJSON(t, server.URL+"/api/threads", nil, http.StatusOK, &created)
	if created["threadId"] != "thread_1" {
		t.Fatalf("unexpected thread id: %v", created)
	}

	var sent map[string]*string
	postJSON(t, server.URL+"/api/threads/thread_1/messages", map[string]string{"message": "hello"}, http.StatusOK, &sent)
	if sent["message"] == nil || *sent["message"] != "hello back" {
		t.Fatalf("unexpected reply: %v", sent)
	}

	assertStatus(t, postRaw(t, server.URL+"/api/threads/thread_1/messages", `{"message":""}`), http.StatusBadRequest)

	var listed map[string][]domain.ChatMessage
	getJSON(t, server.URL+"/api/threads/thread_1/messages", http.StatusOK, &listed)
	if len(listed["messages"]) != 1 || listed["messages"][0].Role != "assistant" {
		t.Fatalf("unexpected messages: %v", listed)
	}
}

func TestThreadErrorsMapToGatewayStatuses(t *testing.T) {
	chat := &fakeRelay{sendErr: domain.ErrRunFailed}
	server := newTestServer(t, chat)
	defer server.Close()

	assertStatus(t, postRaw(t, server.URL+"/api/threads/thread_1/messages", `{"message":"hi"}`), http.StatusBadGateway)

	chat.sendErr = domain.ErrRunTimeout
	assertStatus(t, postRaw(t, server.URL+"/api/threads/thread_1/messages", `{"message":"hi"}`), http.StatusGatewayTimeout)
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, &fakeRelay{})
	defer server.Close()

	var health map[string]any
	getJSON(t, server.URL+"/healthz", http.StatusOK, &health)
	if health["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", health)
	}
	if health["puzzlesLoaded"].(float64) != 3 {
		t.Fatalf("expected 3 puzzles loaded, got %v", health["puzzlesLoaded"])
	}
}

func newTestServer(t *testing.T, chat ChatRelay) *httptest.Server {
	t.Helper()
	if chat == nil {
		chat = &fakeRelay{}
	}
	service := app.NewPuzzleService(
		memory.NewSessionStore(time.Minute, 100),
		memory.NewCatalogRepository(memory.NewStaticCatalogLoader(testCatalog()), time.Minute),
		app.Options{
			CuratedIDs:    []string{"1", "2", "3"},
			SecretMessage: "We are currently clean on OPSEC",
		},
	)
	handler := NewHandler(service, chat)
	mux := http.NewServeMux()
	handler.Register(mux)
	return httptest.NewServer(mux)
}

// testCatalog shares one solution across questions so submissions can be
// graded without knowing the sampled order.
func testCatalog() domain.Catalog {
	return domain.Catalog{
		"1": {ID: "1", Question: "Q1", Solution: "same"},
		"2": {ID: "2", Question: "Q2", Solution: "same"},
		"3": {ID: "3", Question: "Q3", Solution: "same"},
	}
}

type fakeRelay struct {
	reply   string
	sendErr error
}

func (f *fakeRelay) CreateThread(context.Context) (string, error) {
	return "thread_1", nil
}

func (f *fakeRelay) SendMessage(_ context.Context, _ string, message string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	if message == "" {
		return "", domain.ErrEmptyMessage
	}
	return f.reply, nil
}

func (f *fakeRelay) ListMessages(context.Context, string) ([]domain.ChatMessage, error) {
	return []domain.ChatMessage{{ID: "msg_1", Role: "assistant", Content: f.reply, CreatedAt: 1700000000}}, nil
}

func (f *fakeRelay) ThreadCount() int { return 1 }

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("get %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func postJSON(t *testing.T, url string, body any, wantStatus int, out any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("post %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func postRaw(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != want {
		t.Fatalf("status %d, want %d", resp.StatusCode, want)
	}
}
