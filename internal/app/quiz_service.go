package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mcq-trainer/internal/domain"
)

// QuizService contains the quiz use cases the HTTP layer drives.
type QuizService struct {
	questions *QuestionStore
	scores    *LeaderboardStore
	sessions  SessionRepository
	access    PINVerifier

	log      logrus.FieldLogger
	now      func() time.Time
	shuffler Shuffler
	newID    func() string
	topN     int

	locks *keyedMutex
	feed  *leaderboardFeed
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock is used by tests for deterministic dates.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithShuffler replaces the random source used to draw questions.
func WithShuffler(shuffler Shuffler) Option {
	return func(s *QuizService) { s.shuffler = shuffler }
}

// WithLogger sets the logger. Defaults to logrus' standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *QuizService) { s.log = log }
}

// WithTopN sets the leaderboard size.
func WithTopN(n int) Option {
	return func(s *QuizService) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

func NewQuizService(questions *QuestionStore, scores *LeaderboardStore, sessions SessionRepository, access PINVerifier, opts ...Option) *QuizService {
	s := &QuizService{
		questions: questions,
		scores:    scores,
		sessions:  sessions,
		access:    access,
		log:       logrus.StandardLogger(),
		now:       time.Now,
		shuffler:  &lockedRand{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))},
		newID:     uuid.NewString,
		topN:      domain.DefaultTopN,
		locks:     newKeyedMutex(),
		feed:      newLeaderboardFeed(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRequest is the start form.
type StartRequest struct {
	UserName   string
	PIN        string
	Subject    string
	Mode       domain.Mode
	Difficulty domain.Difficulty
	Count      int
	// ReplaceID is the caller's current session, discarded once the new one exists.
	ReplaceID string
}

// QuestionView is what the client needs to render the current question.
// Answer is only filled in practice mode, where feedback is given client-side.
type QuestionView struct {
	Number       int               `json:"number"`
	Total        int               `json:"total"`
	Question     string            `json:"question"`
	Options      []string          `json:"options"`
	Answer       *int              `json:"answer,omitempty"`
	Subject      string            `json:"subject"`
	UserName     string            `json:"user_name"`
	Mode         domain.Mode       `json:"mode"`
	Difficulty   domain.Difficulty `json:"difficulty"`
	TimerSeconds int               `json:"timer_seconds"`
	IsLast       bool              `json:"is_last"`
}

// Answer is one submission. Position, when set, must equal the session cursor.
type Answer struct {
	Choice   *int
	Timeout  bool
	Position *int
}

// AnswerOutcome reports the effect of one submission.
type AnswerOutcome struct {
	Review   domain.ReviewEntry `json:"review"`
	Position int                `json:"position"`
	Total    int                `json:"total"`
	Score    float64            `json:"score"`
	Complete bool               `json:"complete"`
}

// Progress is either the next question or the final result.
type Progress struct {
	Finished  bool                `json:"finished"`
	Next      *QuestionView       `json:"next,omitempty"`
	Result    *domain.ScoreRecord `json:"result,omitempty"`
	Total     int                 `json:"total"`
	Requested int                 `json:"requested"`
}

// ImportCSV parses an upload and appends the valid rows to the bank.
func (s *QuizService) ImportCSV(ctx context.Context, r io.Reader) (domain.ImportResult, error) {
	rows, malformed, err := ReadRows(r)
	if err != nil {
		return domain.ImportResult{}, err
	}
	result, err := s.questions.ImportCSV(ctx, rows)
	result.Rejected += malformed
	if err != nil {
		return result, err
	}
	s.log.WithFields(logrus.Fields{
		"accepted": result.Accepted,
		"rejected": result.Rejected,
		"total":    result.Total,
	}).Info("questions imported")
	return result, nil
}

// ClearAll deletes the bank and the score log, and drops the caller's session if any.
func (s *QuizService) ClearAll(ctx context.Context, sessionID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.questions.Clear(gctx) })
	g.Go(func() error { return s.scores.Clear(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	if sessionID != "" {
		if err := s.TerminateSession(ctx, sessionID); err != nil {
			return err
		}
	}
	s.feed.publish(domain.Leaderboard{Entries: []domain.ScoreRecord{}, UpdatedAt: s.now()})
	s.log.Warn("all questions and scores cleared")
	return nil
}

// StartSession checks the PIN, draws questions and stores a fresh session.
func (s *QuizService) StartSession(ctx context.Context, req StartRequest) (*QuizSession, error) {
	if !s.access.Verify(req.PIN) {
		s.log.WithField("user", req.UserName).Info("start rejected: invalid PIN")
		return nil, domain.ErrAuthFailed
	}
	name := strings.TrimSpace(req.UserName)
	if name == "" {
		return nil, domain.ErrNameRequired
	}
	if req.Count < 1 {
		return nil, domain.ErrInvalidCount
	}

	mode := domain.ModePractice
	if req.Mode == domain.ModeExam {
		mode = domain.ModeExam
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyMedium
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = domain.SubjectAll
	}

	pool := Query(s.questions.Load(ctx), subject)
	session, err := NewQuizSession(s.newID(), SessionParams{
		UserName:   name,
		Subject:    subject,
		Mode:       mode,
		Difficulty: difficulty,
		Count:      req.Count,
	}, pool, s.shuffler, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if req.ReplaceID != "" && req.ReplaceID != session.ID {
		if err := s.TerminateSession(ctx, req.ReplaceID); err != nil {
			s.log.WithError(err).Warn("could not drop replaced session")
		}
	}

	s.log.WithFields(logrus.Fields{
		"session":    session.ID,
		"user":       name,
		"subject":    subject,
		"difficulty": difficulty,
		"requested":  req.Count,
		"served":     session.Served(),
	}).Info("session started")
	return session, nil
}

// CurrentQuestion returns the view of the question at the cursor.
func (s *QuizService) CurrentQuestion(ctx context.Context, sessionID string) (QuestionView, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return QuestionView{}, err
	}
	return currentView(session)
}

// SubmitAnswer records one answer. Submissions for the same session are serialized.
func (s *QuizService) SubmitAnswer(ctx context.Context, sessionID string, answer Answer) (AnswerOutcome, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if session.IsComplete() {
		return AnswerOutcome{}, domain.ErrSessionComplete
	}
	if answer.Position != nil && *answer.Position != session.Pos {
		return AnswerOutcome{}, domain.ErrStalePosition
	}

	entry, err := session.RecordAnswer(answer.Choice, answer.Timeout)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return AnswerOutcome{}, fmt.Errorf("save session: %w", err)
	}

	return AnswerOutcome{
		Review:   entry,
		Position: session.Pos,
		Total:    session.Served(),
		Score:    session.Score,
		Complete: session.IsComplete(),
	}, nil
}

// FinishOrAdvance returns the next question, or finalizes a completed session.
// The score is written to the leaderboard exactly once per session.
func (s *QuizService) FinishOrAdvance(ctx context.Context, sessionID string) (Progress, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return Progress{}, err
	}
	progress := Progress{Total: session.Served(), Requested: session.Requested}

	if !session.IsComplete() {
		view, err := currentView(session)
		if err != nil {
			return Progress{}, err
		}
		progress.Next = &view
		return progress, nil
	}

	record, err := session.Finalize(s.now())
	if err != nil {
		return Progress{}, err
	}
	progress.Finished = true
	progress.Result = &record
	if session.Finalized {
		return progress, nil
	}

	if err := s.scores.Append(ctx, record); err != nil {
		return Progress{}, err
	}
	session.Finalized = true
	if err := s.sessions.Save(ctx, session); err != nil {
		return Progress{}, fmt.Errorf("save session: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"session":  session.ID,
		"user":     record.Name,
		"score":    record.Score,
		"accuracy": record.Accuracy,
	}).Info("session finished")
	s.publishLeaderboard(ctx)
	return progress, nil
}

// Review returns the recorded answers of a session.
func (s *QuizService) Review(ctx context.Context, sessionID string) ([]domain.ReviewEntry, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Reviews, nil
}

// Restart reshuffles the session's questions and clears its progress.
func (s *QuizService) Restart(ctx context.Context, sessionID string) (QuestionView, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return QuestionView{}, err
	}
	session.Restart(s.shuffler, s.now())
	if err := s.sessions.Save(ctx, session); err != nil {
		return QuestionView{}, fmt.Errorf("save session: %w", err)
	}
	return currentView(session)
}

// TerminateSession discards a session without scoring it. Unknown IDs are ignored.
func (s *QuizService) TerminateSession(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// TopScores returns the ranked leaderboard.
func (s *QuizService) TopScores(ctx context.Context) []domain.ScoreRecord {
	return s.scores.TopN(ctx, s.topN)
}

// Overview gathers the entry page data.
func (s *QuizService) Overview(ctx context.Context) (domain.Overview, error) {
	var (
		bank domain.Bank
		top  []domain.ScoreRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bank = s.questions.Load(gctx)
		return nil
	})
	g.Go(func() error {
		top = s.scores.TopN(gctx, s.topN)
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Overview{}, err
	}
	return domain.Overview{
		TotalQuestions: len(bank),
		Subjects:       Subjects(bank),
		TopScores:      top,
		GeneratedAt:    s.now(),
	}, nil
}

// SubscribeLeaderboard streams leaderboard snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) SubscribeLeaderboard(ctx context.Context) (<-chan domain.Leaderboard, func()) {
	ch, cancel := s.feed.subscribe(s.Leaderboard(ctx))
	s.log.WithField("subscribers", s.feed.size()).Debug("leaderboard subscriber added")
	return ch, cancel
}

func (s *QuizService) publishLeaderboard(ctx context.Context) {
	s.feed.publish(s.Leaderboard(ctx))
}

// Leaderboard is the current ranked snapshot.
func (s *QuizService) Leaderboard(ctx context.Context) domain.Leaderboard {
	return domain.Leaderboard{Entries: s.TopScores(ctx), UpdatedAt: s.now()}
}

func (s *QuizService) load(ctx context.Context, sessionID string) (*QuizSession, error) {
	if sessionID == "" {
		return nil, domain.ErrNoActiveSession
	}
	session, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || session.State() == StateUnstarted {
		return nil, domain.ErrNoActiveSession
	}
	return session, nil
}

func currentView(session *QuizSession) (QuestionView, error) {
	question, err := session.CurrentQuestion()
	if err != nil {
		return QuestionView{}, err
	}
	view := QuestionView{
		Number:       session.Pos + 1,
		Total:        session.Served(),
		Question:     question.Text,
		Options:      append([]string(nil), question.Options...),
		Subject:      session.Subject,
		UserName:     session.UserName,
		Mode:         session.Mode,
		Difficulty:   session.Difficulty,
		TimerSeconds: session.TimerSeconds,
		IsLast:       session.Pos+1 == session.Served(),
	}
	if session.Mode == domain.ModePractice {
		answer := question.Answer
		view.Answer = &answer
	}
	return view, nil
}

// IsRedirect reports whether err should send the client back to the entry point.
func IsRedirect(err error) bool {
	return errors.Is(err, domain.ErrNoActiveSession)
}
