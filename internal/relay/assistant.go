package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"puzzle-gate-service/internal/domain"
)

// assistantAPI is the slice of the OpenAI client the relay uses, kept narrow
// so tests can substitute a fake.
type assistantAPI interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
}

// Config tunes the relay.
type Config struct {
	APIKey       string
	AssistantID  string
	PollInterval time.Duration // fixed wait between run status checks
	PollDeadline time.Duration // overall budget for one assistant turn
	ThreadCap    int
}

// Relay drives the OpenAI Assistants flow: create a thread, append the user
// turn, run the assistant, poll to a terminal state under a deadline, and
// extract the reply text.
type Relay struct {
	api          assistantAPI
	assistantID  string
	pollInterval time.Duration
	pollDeadline time.Duration
	threads      *ThreadRegistry
}

func New(cfg Config) *Relay {
	return newRelay(openai.NewClient(cfg.APIKey), cfg)
}

func newRelay(api assistantAPI, cfg Config) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollDeadline <= 0 {
		cfg.PollDeadline = time.Minute
	}
	if cfg.ThreadCap <= 0 {
		cfg.ThreadCap = 10000
	}
	return &Relay{
		api:          api,
		assistantID:  cfg.AssistantID,
		pollInterval: cfg.PollInterval,
		pollDeadline: cfg.PollDeadline,
		threads:      NewThreadRegistry(cfg.ThreadCap),
	}
}

// CreateThread opens a new remote conversation and returns its ID.
func (r *Relay) CreateThread(ctx context.Context) (string, error) {
	thread, err := r.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	r.threads.Record(thread.ID)
	return thread.ID, nil
}

// SendMessage appends a user turn, runs the assistant, and waits for the
// reply. A run that ends failed/cancelled/expired yields ErrRunFailed; a run
// still pending at the poll deadline yields ErrRunTimeout.
func (r *Relay) SendMessage(ctx context.Context, threadID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", domain.ErrEmptyMessage
	}

	if _, err := r.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	}); err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}

	run, err := r.api.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: r.assistantID})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.pollDeadline)
	defer cancel()

	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			return r.latestAssistantReply(ctx, threadID)
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired:
			return "", fmt.Errorf("%w: status %s", domain.ErrRunFailed, run.Status)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", domain.ErrRunTimeout
			}
			return "", ctx.Err()
		case <-time.After(r.pollInterval):
		}

		run, err = r.api.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return "", fmt.Errorf("retrieve run: %w", err)
		}
	}
}

// ListMessages returns the thread's messages, newest first.
func (r *Relay) ListMessages(ctx context.Context, threadID string) ([]domain.ChatMessage, error) {
	list, err := r.api.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	messages := make([]domain.ChatMessage, 0, len(list.Messages))
	for _, msg := range list.Messages {
		messages = append(messages, domain.ChatMessage{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   renderContent(msg),
			CreatedAt: int64(msg.CreatedAt),
		})
	}
	return messages, nil
}

// ThreadCount reports how many threads this process has opened.
func (r *Relay) ThreadCount() int {
	return r.threads.Len()
}

func (r *Relay) latestAssistantReply(ctx context.Context, threadID string) (string, error) {
	list, err := r.api.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	// The API returns messages newest first.
	for _, msg := range list.Messages {
		if msg.Role == "assistant" {
			return renderContent(msg), nil
		}
	}
	return "", nil
}

// renderContent joins a message's text segments; non-text segments are
// rendered as a bracketed placeholder naming their type.
func renderContent(msg openai.Message) string {
	parts := make([]string, 0, len(msg.Content))
	for _, content := range msg.Content {
		if content.Type == "text" && content.Text != nil {
			parts = append(parts, content.Text.Value)
			continue
		}
		parts = append(parts, "["+content.Type+" content]")
	}
	return strings.Join(parts, "\n")
}
