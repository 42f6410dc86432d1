package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"mcq-trainer/internal/domain"
)

// BankKey is the blob key holding the question bank.
const BankKey = "questions.json"

// LoadStatus tells apart the ways a lenient read can end up empty.
type LoadStatus int

const (
	LoadAbsent LoadStatus = iota
	LoadOK
	LoadCorrupt
	LoadUnavailable
)

func (s LoadStatus) String() string {
	switch s {
	case LoadOK:
		return "ok"
	case LoadCorrupt:
		return "corrupt"
	case LoadUnavailable:
		return "unavailable"
	default:
		return "absent"
	}
}

// QuestionStore owns the persisted question bank. Every mutation is a
// read-modify-write under mu; plain reads are coalesced with singleflight.
type QuestionStore struct {
	blobs BlobStore
	log   logrus.FieldLogger
	sf    singleflight.Group
	mu    sync.Mutex
}

func NewQuestionStore(blobs BlobStore, log logrus.FieldLogger) *QuestionStore {
	return &QuestionStore{blobs: blobs, log: log.WithField("store", "questions")}
}

type bankResult struct {
	bank   domain.Bank
	status LoadStatus
}

// Fetch reads the bank and reports how the read went. The bank is empty
// unless status is LoadOK. Concurrent callers share one backend read, which
// runs detached from the first caller's cancellation.
func (s *QuestionStore) Fetch(ctx context.Context) (domain.Bank, LoadStatus) {
	v, _, _ := s.sf.Do(BankKey, func() (interface{}, error) {
		bank, status, _ := s.read(context.WithoutCancel(ctx))
		return bankResult{bank: bank, status: status}, nil
	})
	res := v.(bankResult)
	// callers may append; never hand out the shared backing array
	return append(domain.Bank(nil), res.bank...), res.status
}

// Load returns the bank, or an empty bank if it is absent or unreadable.
func (s *QuestionStore) Load(ctx context.Context) domain.Bank {
	bank, _ := s.Fetch(ctx)
	return bank
}

// Save overwrites the whole bank.
func (s *QuestionStore) Save(ctx context.Context, bank domain.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, bank)
}

// Merge appends questions to the stored bank and returns the new bank size.
func (s *QuestionStore) Merge(ctx context.Context, questions []domain.Question) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, _, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	merged := append(current, questions...)
	if err := s.write(ctx, merged); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// ImportCSV validates rows and appends the accepted subset. When no row is
// acceptable the bank is left untouched and ErrNoValidRows is returned.
func (s *QuestionStore) ImportCSV(ctx context.Context, rows [][]string) (domain.ImportResult, error) {
	accepted, rejected := ParseRows(rows)
	result := domain.ImportResult{Accepted: len(accepted), Rejected: rejected}
	if len(accepted) == 0 {
		return result, domain.ErrNoValidRows
	}
	total, err := s.Merge(ctx, accepted)
	if err != nil {
		return result, err
	}
	result.Total = total
	return result, nil
}

// Clear deletes the persisted bank.
func (s *QuestionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blobs.Delete(ctx, BankKey); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}
	s.sf.Forget(BankKey)
	return nil
}

// read returns a non-nil error only for LoadUnavailable, so mutations never
// overwrite a bank they could not read.
func (s *QuestionStore) read(ctx context.Context) (domain.Bank, LoadStatus, error) {
	data, found, err := s.blobs.Get(ctx, BankKey)
	if err != nil {
		s.log.WithError(err).Warn("question bank unavailable, treating as empty")
		return domain.Bank{}, LoadUnavailable, fmt.Errorf("load questions: %w", err)
	}
	if !found {
		return domain.Bank{}, LoadAbsent, nil
	}
	var bank domain.Bank
	if err := json.Unmarshal(data, &bank); err != nil {
		s.log.WithError(err).Warn("question bank corrupt, treating as empty")
		return domain.Bank{}, LoadCorrupt, nil
	}
	if bank == nil {
		bank = domain.Bank{}
	}
	return bank, LoadOK, nil
}

// write must be called with mu held.
func (s *QuestionStore) write(ctx context.Context, bank domain.Bank) error {
	if bank == nil {
		bank = domain.Bank{}
	}
	data, err := encodePretty(bank)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	if err := s.blobs.Set(ctx, BankKey, data); err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	// reads started before this write must not be joined by later callers
	s.sf.Forget(BankKey)
	return nil
}

// Query filters the bank by subject; SubjectAll passes everything through.
func Query(bank domain.Bank, subject string) []domain.Question {
	if subject == domain.SubjectAll {
		return append([]domain.Question(nil), bank...)
	}
	var out []domain.Question
	for _, q := range bank {
		if q.SubjectOrDefault() == subject {
			out = append(out, q)
		}
	}
	return out
}

// Subjects lists distinct subjects in sorted order.
func Subjects(bank domain.Bank) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, q := range bank {
		subject := q.SubjectOrDefault()
		if _, ok := seen[subject]; ok {
			continue
		}
		seen[subject] = struct{}{}
		out = append(out, subject)
	}
	sort.Strings(out)
	return out
}

// encodePretty writes indented JSON without HTML escaping so non-ASCII and
// markup characters survive as typed.
func encodePretty(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
