package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"puzzle-gate-service/internal/app"
	"puzzle-gate-service/internal/domain"
)

// ChatRelay is the surface of the assistant relay the handlers need.
type ChatRelay interface {
	CreateThread(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, threadID, message string) (string, error)
	ListMessages(ctx context.Context, threadID string) ([]domain.ChatMessage, error)
	ThreadCount() int
}

// Handler exposes the puzzle engine and chat relay over a JSON REST surface.
type Handler struct {
	puzzles *app.PuzzleService
	chat    ChatRelay
}

func NewHandler(puzzles *app.PuzzleService, chat ChatRelay) *Handler {
	return &Handler{puzzles: puzzles, chat: chat}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/threads", h.createThread)
	mux.HandleFunc("POST /api/threads/{threadID}/messages", h.sendMessage)
	mux.HandleFunc("GET /api/threads/{threadID}/messages", h.listMessages)
	mux.HandleFunc("GET /api/get-puzzle", h.getPuzzle)
	mux.HandleFunc("POST /api/check-answer", h.checkAnswer)
	mux.HandleFunc("GET /api/get-secret-message", h.getSecret)
	mux.HandleFunc("GET /healthz", h.healthz)
}

func (h *Handler) createThread(w http.ResponseWriter, r *http.Request) {
	threadID, err := h.chat.CreateThread(r.Context())
	if err != nil {
		h.writeError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"threadId": threadID})
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, domain.ErrEmptyMessage, http.StatusBadRequest)
		return
	}

	reply, err := h.chat.SendMessage(r.Context(), r.PathValue("threadID"), body.Message)
	if err != nil {
		h.writeError(w, err, http.StatusBadGateway)
		return
	}

	var message *string
	if reply != "" {
		message = &reply
	}
	writeJSON(w, http.StatusOK, map[string]*string{"message": message})
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chat.ListMessages(r.Context(), r.PathValue("threadID"))
	if err != nil {
		h.writeError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]domain.ChatMessage{"messages": messages})
}

func (h *Handler) getPuzzle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := h.puzzles.StartOrResume(
		r.Context(),
		q.Get("sessionId"),
		atoiOrZero(q.Get("questionCount")),
		atoiOrZero(q.Get("minCorrect")),
	)
	if err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) checkAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"sessionId"`
		Answer    string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, domain.ErrEmptyAnswer, http.StatusBadRequest)
		return
	}

	result, err := h.puzzles.SubmitAnswer(r.Context(), body.SessionID, body.Answer)
	if err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.puzzles.Secret(r.URL.Query().Get("sessionId"))
	if err != nil {
		h.writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"secretMessage": secret})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"puzzlesLoaded":  h.puzzles.CatalogSize(r.Context()),
		"activeSessions": h.puzzles.ActiveSessions(),
		"threadsOpened":  h.chat.ThreadCount(),
	})
}

// writeError maps sentinel errors to status codes; fallback covers everything
// else (transport failures toward the assistant API, internal faults).
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback int) {
	status := fallback
	switch {
	case errors.Is(err, domain.ErrEmptyAnswer), errors.Is(err, domain.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSecretLocked):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrRunTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrRunFailed):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func atoiOrZero(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
