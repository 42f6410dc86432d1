package domain

import "time"

const (
	// OptionCount is the number of options every imported question carries.
	OptionCount = 4
	// DefaultAnswerIndex replaces any CSV answer index outside 1..OptionCount.
	DefaultAnswerIndex = 1
	// DefaultSubject is used when a CSV row has no subject column.
	DefaultSubject = "General"
	// SubjectAll selects the whole bank.
	SubjectAll = "all"
	// DefaultTimerSeconds applies to unrecognized difficulties.
	DefaultTimerSeconds = 30
	// HardPenalty is deducted for every miss in hard mode.
	HardPenalty = 0.25
	// DefaultTopN is the leaderboard size.
	DefaultTopN = 10
	// DefaultQuestionCount is used when a start request carries no usable count.
	DefaultQuestionCount = 10

	// SkippedLabel is shown in review when no option was chosen.
	SkippedLabel = "Skipped"
	// UnavailableLabel is shown in review when an option index has no option behind it.
	UnavailableLabel = "[option unavailable]"

	// ScoreDateLayout formats ScoreRecord.Date.
	ScoreDateLayout = "2006-01-02 15:04"
)

// Difficulty controls the per-question timer and the miss penalty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// TimerSeconds returns the client-side time limit per question.
func (d Difficulty) TimerSeconds() int {
	switch d {
	case DifficultyEasy:
		return 60
	case DifficultyMedium:
		return 30
	case DifficultyHard:
		return 15
	default:
		return DefaultTimerSeconds
	}
}

// Mode only changes client-side feedback timing; scoring is identical.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeExam     Mode = "exam"
)

// Question models an MCQ question. Answer is the 1-based index of the correct option.
type Question struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
	Subject string   `json:"subject,omitempty"`
}

// SubjectOrDefault reads a missing subject as DefaultSubject.
func (q Question) SubjectOrDefault() string {
	if q.Subject == "" {
		return DefaultSubject
	}
	return q.Subject
}

// Bank is the full persisted question collection. Identity is positional.
type Bank []Question

// ScoreRecord is one finished session on the leaderboard log.
type ScoreRecord struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Accuracy int     `json:"accuracy"`
	Date     string  `json:"date"`
}

// Leaderboard is a ranked snapshot pushed to live subscribers.
type Leaderboard struct {
	Entries   []ScoreRecord `json:"entries"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ReviewEntry is the recorded outcome of one answered question.
type ReviewEntry struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	UserChoice    *int     `json:"user_choice"`
	CorrectChoice int      `json:"correct_choice"`
	IsCorrect     bool     `json:"is_correct"`
	IsTimeout     bool     `json:"is_timeout"`
}

// SelectedOption returns the text of the chosen option. A nil choice yields
// SkippedLabel; an index with no option behind it yields ErrOptionLookup.
func (r ReviewEntry) SelectedOption() (string, error) {
	if r.UserChoice == nil {
		return SkippedLabel, nil
	}
	return OptionAt(r.Options, *r.UserChoice)
}

// CorrectOption returns the text of the correct option or ErrOptionLookup.
func (r ReviewEntry) CorrectOption() (string, error) {
	return OptionAt(r.Options, r.CorrectChoice)
}

// OptionAt resolves a 1-based option index.
func OptionAt(options []string, index int) (string, error) {
	if index < 1 || index > len(options) {
		return "", ErrOptionLookup
	}
	return options[index-1], nil
}

// Overview is the entry page summary.
type Overview struct {
	TotalQuestions int           `json:"total_questions"`
	Subjects       []string      `json:"subjects"`
	TopScores      []ScoreRecord `json:"top_scores"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// ImportResult summarizes one CSV upload.
type ImportResult struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}
