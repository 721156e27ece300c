package domain

import "time"

// Question is a single puzzle: the prompt shown to the player and the
// canonical solution used for grading.
type Question struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Solution string `json:"solution"`
}

// Catalog is the read-only question bank keyed by question ID.
type Catalog map[string]Question

// SessionState is the serializable snapshot of a puzzle session. External
// stores (Redis) persist this form; the engine works on a live wrapper.
type SessionState struct {
	SessionID          string     `json:"sessionId"`
	Questions          []Question `json:"questions"`
	CurrentIndex       int        `json:"currentQuestionIndex"`
	CorrectAnswers     int        `json:"correctAnswers"`
	MinCorrectToReveal int        `json:"minCorrectToReveal"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// Completed reports whether every question in the session has been answered.
func (s SessionState) Completed() bool {
	return s.CurrentIndex >= len(s.Questions)
}

// SessionView is what a client sees when starting, resuming, or polling a
// session. QuestionNumber is 1-based; Question is empty once completed.
// SecretMessage is set only for a completed session that met its threshold.
type SessionView struct {
	SessionID       string `json:"sessionId"`
	Completed       bool   `json:"completed"`
	QuestionNumber  int    `json:"questionNumber"`
	TotalQuestions  int    `json:"totalQuestions"`
	RequiredCorrect int    `json:"requiredCorrect"`
	CorrectAnswers  int    `json:"correctAnswers"`
	Remaining       int    `json:"remaining"`
	Question        string `json:"question,omitempty"`
	SecretRevealed  bool   `json:"secretRevealed"`
	SecretMessage   string `json:"secretMessage,omitempty"`
}

// AnswerResult reports the grading of one submission. On the completing
// submission it doubles as the terminal summary.
type AnswerResult struct {
	SessionID      string `json:"sessionId"`
	Correct        bool   `json:"correct"`
	CorrectAnswers int    `json:"correctAnswers"`
	QuestionNumber int    `json:"questionNumber"`
	TotalQuestions int    `json:"totalQuestions"`
	Completed      bool   `json:"completed"`
	SecretRevealed bool   `json:"secretRevealed"`
	SecretMessage  string `json:"secretMessage,omitempty"`
}

// ChatMessage is one turn of a remote conversation thread.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}
