package app

import (
	"math"
	"strings"
	"time"

	"mcq-trainer/internal/domain"
)

// SessionState is the lifecycle phase of a QuizSession. A terminated session
// has no state; it is simply removed from the SessionRepository.
type SessionState int

const (
	StateUnstarted SessionState = iota
	StateInProgress
	StateFinished
)

func (s SessionState) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	default:
		return "unstarted"
	}
}

// Shuffler permutes n elements in place; *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// SessionParams are the user's choices on the start form.
type SessionParams struct {
	UserName   string
	Subject    string
	Mode       domain.Mode
	Difficulty domain.Difficulty
	Count      int
}

// QuizSession is one attempt. It is a plain value so it can be serialized by
// any SessionRepository; callers serialize mutations per session ID.
type QuizSession struct {
	ID            string               `json:"id"`
	UserName      string               `json:"user_name"`
	Authenticated bool                 `json:"authenticated"`
	Questions     []domain.Question    `json:"questions"`
	Pos           int                  `json:"pos"`
	Score         float64              `json:"score"`
	Correct       int                  `json:"correct"`
	Attempted     int                  `json:"attempted"`
	Difficulty    domain.Difficulty    `json:"difficulty"`
	Mode          domain.Mode          `json:"mode"`
	TimerSeconds  int                  `json:"timer_seconds"`
	Subject       string               `json:"subject"`
	Reviews       []domain.ReviewEntry `json:"reviews"`
	StartDate     time.Time            `json:"start_date"`
	Requested     int                  `json:"requested"`
	Finalized     bool                 `json:"finalized"`
}

// NewQuizSession draws a shuffled selection of at most params.Count questions from pool.
// Asking for more questions than the pool holds silently yields the whole pool.
func NewQuizSession(id string, params SessionParams, pool []domain.Question, shuffler Shuffler, now time.Time) (*QuizSession, error) {
	if params.Count < 1 {
		return nil, domain.ErrInvalidCount
	}
	if len(pool) == 0 {
		return nil, domain.ErrEmptyPool
	}

	selection := make([]domain.Question, len(pool))
	copy(selection, pool)
	shuffler.Shuffle(len(selection), func(i, j int) {
		selection[i], selection[j] = selection[j], selection[i]
	})
	if params.Count < len(selection) {
		selection = selection[:params.Count]
	}

	subject := strings.TrimSpace(params.Subject)
	if subject == "" {
		subject = domain.SubjectAll
	}

	return &QuizSession{
		ID:            id,
		UserName:      params.UserName,
		Authenticated: true,
		Questions:     selection,
		Difficulty:    params.Difficulty,
		Mode:          params.Mode,
		TimerSeconds:  params.Difficulty.TimerSeconds(),
		Subject:       subject,
		Reviews:       []domain.ReviewEntry{},
		StartDate:     now,
		Requested:     params.Count,
	}, nil
}

// State derives the lifecycle phase from the cursor.
func (s *QuizSession) State() SessionState {
	if s == nil || !s.Authenticated {
		return StateUnstarted
	}
	if s.IsComplete() {
		return StateFinished
	}
	return StateInProgress
}

// IsComplete reports whether every served question has been answered.
func (s *QuizSession) IsComplete() bool {
	return s.Pos >= len(s.Questions)
}

// Served is the number of questions actually drawn, which can be below Requested.
func (s *QuizSession) Served() int {
	return len(s.Questions)
}

// CurrentQuestion returns the question at the cursor.
func (s *QuizSession) CurrentQuestion() (domain.Question, error) {
	if s.IsComplete() {
		return domain.Question{}, domain.ErrSessionComplete
	}
	return s.Questions[s.Pos], nil
}

// RecordAnswer scores the current question and advances the cursor by one.
// A nil choice never matches; a timeout never counts as correct.
func (s *QuizSession) RecordAnswer(choice *int, isTimeout bool) (domain.ReviewEntry, error) {
	switch s.State() {
	case StateUnstarted:
		return domain.ReviewEntry{}, domain.ErrNoActiveSession
	case StateFinished:
		return domain.ReviewEntry{}, domain.ErrSessionComplete
	}

	question := s.Questions[s.Pos]
	isCorrect := choice != nil && *choice == question.Answer && !isTimeout

	s.Attempted++
	if isCorrect {
		s.Score++
		s.Correct++
	} else if s.Difficulty == domain.DifficultyHard {
		s.Score -= domain.HardPenalty
	}

	var picked *int
	if choice != nil {
		c := *choice
		picked = &c
	}
	entry := domain.ReviewEntry{
		Question:      question.Text,
		Options:       append([]string(nil), question.Options...),
		UserChoice:    picked,
		CorrectChoice: question.Answer,
		IsCorrect:     isCorrect,
		IsTimeout:     isTimeout,
	}
	s.Reviews = append(s.Reviews, entry)
	s.Pos++
	return entry, nil
}

// Finalize converts a completed session into a leaderboard record.
func (s *QuizSession) Finalize(now time.Time) (domain.ScoreRecord, error) {
	if !s.IsComplete() {
		return domain.ScoreRecord{}, domain.ErrSessionInProgress
	}
	return domain.ScoreRecord{
		Name:     s.UserName,
		Score:    s.Score,
		Accuracy: s.Accuracy(),
		Date:     now.Format(domain.ScoreDateLayout),
	}, nil
}

// Accuracy is the rounded percentage of served questions answered correctly.
func (s *QuizSession) Accuracy() int {
	total := len(s.Questions)
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Correct) / float64(total) * 100))
}

// Clone returns a deep copy, used by stores that keep sessions in process memory.
func (s *QuizSession) Clone() *QuizSession {
	out := *s
	out.Questions = make([]domain.Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	out.Reviews = make([]domain.ReviewEntry, len(s.Reviews))
	for i, r := range s.Reviews {
		r.Options = append([]string(nil), r.Options...)
		if r.UserChoice != nil {
			c := *r.UserChoice
			r.UserChoice = &c
		}
		out.Reviews[i] = r
	}
	return &out
}

// Restart reshuffles the served questions and clears all progress.
func (s *QuizSession) Restart(shuffler Shuffler, now time.Time) {
	shuffler.Shuffle(len(s.Questions), func(i, j int) {
		s.Questions[i], s.Questions[j] = s.Questions[j], s.Questions[i]
	})
	s.Pos = 0
	s.Score = 0
	s.Correct = 0
	s.Attempted = 0
	s.Reviews = []domain.ReviewEntry{}
	s.StartDate = now
	s.Finalized = false
}
