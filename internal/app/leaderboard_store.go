package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"mcq-trainer/internal/domain"
)

// ScoresKey is the blob key holding the raw score log.
const ScoresKey = "scores.json"

// LeaderboardStore keeps the append-only score log and ranks it on read.
type LeaderboardStore struct {
	blobs BlobStore
	log   logrus.FieldLogger
	mu    sync.Mutex
}

func NewLeaderboardStore(blobs BlobStore, log logrus.FieldLogger) *LeaderboardStore {
	return &LeaderboardStore{blobs: blobs, log: log.WithField("store", "scores")}
}

// Append adds a record to the raw log. The log is neither deduplicated nor capped.
func (s *LeaderboardStore) Append(ctx context.Context, record domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, status := s.read(ctx)
	if status == LoadUnavailable {
		return fmt.Errorf("append score: score log unavailable")
	}
	raw = append(raw, record)

	data, err := encodePretty(raw)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	if err := s.blobs.Set(ctx, ScoresKey, data); err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	return nil
}

// TopN ranks the log by score, then accuracy, both descending, and keeps the
// first n entries. n <= 0 means domain.DefaultTopN.
func (s *LeaderboardStore) TopN(ctx context.Context, n int) []domain.ScoreRecord {
	if n <= 0 {
		n = domain.DefaultTopN
	}
	raw, _ := s.read(ctx)
	ranked := Rank(raw)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Clear deletes the raw log.
func (s *LeaderboardStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blobs.Delete(ctx, ScoresKey); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) read(ctx context.Context) ([]domain.ScoreRecord, LoadStatus) {
	data, found, err := s.blobs.Get(ctx, ScoresKey)
	if err != nil {
		s.log.WithError(err).Warn("score log unavailable, treating as empty")
		return []domain.ScoreRecord{}, LoadUnavailable
	}
	if !found {
		return []domain.ScoreRecord{}, LoadAbsent
	}
	var raw []domain.ScoreRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.WithError(err).Warn("score log corrupt, treating as empty")
		return []domain.ScoreRecord{}, LoadCorrupt
	}
	return raw, LoadOK
}

// Rank returns a sorted copy: score desc, accuracy desc, insertion order otherwise.
func Rank(records []domain.ScoreRecord) []domain.ScoreRecord {
	ranked := make([]domain.ScoreRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Accuracy > ranked[j].Accuracy
	})
	return ranked
}
