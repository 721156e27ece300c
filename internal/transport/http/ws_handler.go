package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"puzzle-gate-service/internal/app"
	"puzzle-gate-service/internal/domain"
)

// WSHandler drives the puzzle flow over a websocket: start a session, poll
// its status, submit answers. Each message gets a direct response on the same
// connection, so no writer fan-out is needed.
type WSHandler struct {
	service  *app.PuzzleService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PuzzleService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	QuestionCount int `json:"questionCount"`
	MinCorrect    int `json:"minCorrect"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection and loops over inbound puzzle commands.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("sessionId")

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "start":
			var payload startPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					h.sendError(conn, "invalid start payload")
					continue
				}
			}
			view, err := h.service.StartOrResume(r.Context(), sessionID, payload.QuestionCount, payload.MinCorrect)
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			sessionID = view.SessionID
			h.sendView(conn, view)

		case "status":
			if sessionID == "" {
				h.sendError(conn, "no session started")
				continue
			}
			view, err := h.service.StartOrResume(r.Context(), sessionID, 0, 0)
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			h.sendView(conn, view)

		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, "invalid answer payload")
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), sessionID, payload.Answer)
			if err != nil {
				h.sendError(conn, err.Error())
				continue
			}
			if err := conn.WriteJSON(outboundMessage[domain.AnswerResult]{Type: "result", Payload: result}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}

		default:
			h.sendError(conn, "unsupported message type")
		}
	}
}

func (h *WSHandler) sendView(conn *websocket.Conn, view domain.SessionView) {
	typ := "question"
	if view.Completed {
		typ = "summary"
	}
	if err := conn.WriteJSON(outboundMessage[domain.SessionView]{Type: typ, Payload: view}); err != nil {
		log.Printf("ws write error: %v", err)
	}
}

func (h *WSHandler) sendError(conn *websocket.Conn, message string) {
	if err := conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: message}}); err != nil {
		log.Printf("ws write error: %v", err)
	}
}
