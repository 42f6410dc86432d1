package app

import "context"

// BlobStore persists whole documents by key (file, SQLite, Redis, Postgres, memory).
// Get reports found=false when the key has never been written or was deleted.
type BlobStore interface {
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// SessionRepository abstracts how quiz sessions are kept between requests (in-memory, Redis).
type SessionRepository interface {
	Get(ctx context.Context, id string) (*QuizSession, bool, error)
	Save(ctx context.Context, session *QuizSession) error
	Delete(ctx context.Context, id string) error
}

// PINVerifier checks the shared access PIN.
type PINVerifier interface {
	Verify(pin string) bool
}
