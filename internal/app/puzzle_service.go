package app

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"puzzle-gate-service/internal/domain"
)

// SessionRepository abstracts how puzzle sessions are stored (in-memory, Redis, etc).
// Put is called after every mutation so external stores can persist snapshots.
type SessionRepository interface {
	Get(sessionID string) (*Session, bool)
	Put(session *Session)
	Len() int
}

// CatalogRepository serves the question bank (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context) (domain.Catalog, error)
}

// Options tune a PuzzleService.
type Options struct {
	CuratedIDs    []string // allow-list of sampleable question IDs
	SecretMessage string
	QuestionCount int // default when the client does not ask for a count
	MinCorrect    int // default reveal threshold
}

// PuzzleService contains the core puzzle-gate use cases: session creation with
// unbiased sampling, grading, progression, and the secret reveal decision.
type PuzzleService struct {
	sessions SessionRepository
	catalog  CatalogRepository
	opts     Options

	mu  sync.Mutex // guards rnd; rand.Rand is not goroutine safe
	rnd *rand.Rand
}

func NewPuzzleService(sessions SessionRepository, catalog CatalogRepository, opts Options) *PuzzleService {
	return NewPuzzleServiceWithRand(sessions, catalog, opts, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewPuzzleServiceWithRand is test-only for deterministic sampling.
func NewPuzzleServiceWithRand(sessions SessionRepository, catalog CatalogRepository, opts Options, rnd *rand.Rand) *PuzzleService {
	if opts.QuestionCount <= 0 {
		opts.QuestionCount = 5
	}
	if opts.MinCorrect <= 0 {
		opts.MinCorrect = 2
	}
	return &PuzzleService{sessions: sessions, catalog: catalog, opts: opts, rnd: rnd}
}

// StartOrResume returns the current question for an existing session, or
// creates a new session when sessionID is empty or unknown. Resuming never
// advances or resamples state.
func (s *PuzzleService) StartOrResume(ctx context.Context, sessionID string, questionCount, minCorrect int) (domain.SessionView, error) {
	if sessionID != "" {
		if session, ok := s.sessions.Get(sessionID); ok {
			return session.view(s.opts.SecretMessage), nil
		}
	}

	if questionCount <= 0 {
		questionCount = s.opts.QuestionCount
	}
	if minCorrect <= 0 {
		minCorrect = s.opts.MinCorrect
	}

	catalog, err := s.catalog.GetCatalog(ctx)
	if err != nil {
		// Fail-open: an unavailable catalog degrades to zero sampleable
		// questions rather than refusing the session.
		catalog = domain.Catalog{}
	}

	session := newSession(uuid.NewString(), s.sample(catalog, questionCount), minCorrect)
	s.sessions.Put(session)
	return session.view(s.opts.SecretMessage), nil
}

// SubmitAnswer grades the current question, advances the cursor, and reports
// progress. Completed sessions answer idempotently with the terminal summary.
func (s *PuzzleService) SubmitAnswer(_ context.Context, sessionID, answer string) (domain.AnswerResult, error) {
	if strings.TrimSpace(answer) == "" {
		return domain.AnswerResult{}, domain.ErrEmptyAnswer
	}
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}

	result, mutated := session.grade(answer, s.opts.SecretMessage)
	if mutated {
		s.sessions.Put(session)
	}
	return result, nil
}

// Secret returns the secret message for a completed session that met its
// threshold. Any other state yields ErrSecretLocked.
func (s *PuzzleService) Secret(sessionID string) (string, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	if !session.unlocked() {
		return "", domain.ErrSecretLocked
	}
	return s.opts.SecretMessage, nil
}

// ActiveSessions reports how many sessions the store currently holds.
func (s *PuzzleService) ActiveSessions() int {
	return s.sessions.Len()
}

// CatalogSize reports how many questions are currently loaded.
func (s *PuzzleService) CatalogSize(ctx context.Context) int {
	catalog, err := s.catalog.GetCatalog(ctx)
	if err != nil {
		return 0
	}
	return len(catalog)
}

// sample draws up to count distinct questions from the curated IDs present in
// the catalog: a uniform shuffle of the candidates, then the first count.
// Short candidate lists yield fewer questions, never an error.
func (s *PuzzleService) sample(catalog domain.Catalog, count int) []domain.Question {
	candidates := make([]string, 0, len(s.opts.CuratedIDs))
	for _, id := range s.opts.CuratedIDs {
		if _, ok := catalog[id]; ok {
			candidates = append(candidates, id)
		}
	}

	s.mu.Lock()
	s.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	s.mu.Unlock()

	if count > len(candidates) {
		count = len(candidates)
	}
	picked := make([]domain.Question, 0, count)
	for _, id := range candidates[:count] {
		q := catalog[id]
		q.Question = sanitizeQuestion(q.Question)
		picked = append(picked, q)
	}
	return picked
}

// Session wraps session state with a lock so concurrent submissions on the
// same ID serialize instead of interleaving.
type Session struct {
	mu    sync.RWMutex
	state domain.SessionState
}

func newSession(id string, questions []domain.Question, minCorrect int) *Session {
	return &Session{state: domain.SessionState{
		SessionID:          id,
		Questions:          questions,
		MinCorrectToReveal: minCorrect,
		CreatedAt:          time.Now(),
	}}
}

// RestoreSession rebuilds a live session from a persisted snapshot.
func RestoreSession(state domain.SessionState) *Session {
	return &Session{state: state}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.state.SessionID
}

// Snapshot returns a copy of the session state for persistence.
func (s *Session) Snapshot() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	state.Questions = append([]domain.Question(nil), s.state.Questions...)
	return state
}

func (s *Session) unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Completed() && s.state.CorrectAnswers >= s.state.MinCorrectToReveal
}

func (s *Session) view(secret string) domain.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	total := len(st.Questions)
	view := domain.SessionView{
		SessionID:       st.SessionID,
		Completed:       st.Completed(),
		TotalQuestions:  total,
		RequiredCorrect: st.MinCorrectToReveal,
		CorrectAnswers:  st.CorrectAnswers,
		Remaining:       total - st.CurrentIndex,
		SecretRevealed:  st.CorrectAnswers >= st.MinCorrectToReveal,
	}
	if st.Completed() {
		view.QuestionNumber = total
		if view.SecretRevealed {
			view.SecretMessage = secret
		}
		return view
	}
	view.QuestionNumber = st.CurrentIndex + 1
	view.Question = st.Questions[st.CurrentIndex].Question
	return view
}

// grade applies one submission. The cursor advances whether or not the answer
// is correct; there is no retry of the same question. Reports mutated=false
// for the idempotent completed-session path.
func (s *Session) grade(answer, secret string) (domain.AnswerResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if st.Completed() {
		return s.resultLocked(false, secret), false
	}

	solution := st.Questions[st.CurrentIndex].Solution
	correct := strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(solution))
	if correct {
		st.CorrectAnswers++
	}
	st.CurrentIndex++

	return s.resultLocked(correct, secret), true
}

func (s *Session) resultLocked(correct bool, secret string) domain.AnswerResult {
	st := s.state
	total := len(st.Questions)
	result := domain.AnswerResult{
		SessionID:      st.SessionID,
		Correct:        correct,
		CorrectAnswers: st.CorrectAnswers,
		TotalQuestions: total,
		Completed:      st.Completed(),
		SecretRevealed: st.CorrectAnswers >= st.MinCorrectToReveal,
	}
	if st.Completed() {
		result.QuestionNumber = total
		if result.SecretRevealed {
			result.SecretMessage = secret
		}
		return result
	}
	result.QuestionNumber = st.CurrentIndex + 1
	return result
}
