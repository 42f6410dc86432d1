package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mcq-trainer/internal/app"
)

// SessionStore is a Redis implementation of app.SessionRepository.
// Each session is a JSON document with a sliding TTL:
//
//	SET quiz:session:{id} {json} EX ttl
//
// Every Save refreshes the expiry, so abandoned sessions age out on their own.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SessionStore) Get(ctx context.Context, id string) (*app.QuizSession, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load session: %w", err)
	}

	var session app.QuizSession
	if err := json.Unmarshal(data, &session); err != nil {
		// an undecodable session is as good as gone
		_ = s.client.Del(ctx, s.key(id)).Err()
		return nil, false, nil
	}
	return &session, true, nil
}

func (s *SessionStore) Save(ctx context.Context, session *app.QuizSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), data, s.ttlWithJitter()).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}

func (s *SessionStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
