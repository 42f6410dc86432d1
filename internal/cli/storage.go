package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"mcq-trainer/internal/app"
	"mcq-trainer/internal/auth"
	"mcq-trainer/internal/config"
	"mcq-trainer/internal/infra/file"
	"mcq-trainer/internal/infra/memory"
	pgstore "mcq-trainer/internal/infra/postgres"
	infraredis "mcq-trainer/internal/infra/redis"
	"mcq-trainer/internal/infra/sqlite"
)

// backends holds everything built from config; close releases connections.
type backends struct {
	blobs    app.BlobStore
	sessions app.SessionRepository
	closers  []io.Closer
	pool     *pgxpool.Pool
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i].Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func openBackends(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, redisClient)
	}

	cacheTTL := config.TTLDuration(cfg.Storage.CacheTTL, 30*time.Second)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		b.blobs = memory.NewBlobStore()
	case config.DriverFile, "":
		store, err := file.NewBlobStore(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		b.blobs = store
	case config.DriverSQLite:
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Storage.Dir, "mcq-trainer.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		store, err := sqlite.NewBlobStore(path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store)
		b.blobs = store
	case config.DriverRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("storage driver redis requires redis.addr")
		}
		b.blobs = memory.NewCachedBlobStore(infraredis.NewBlobStore(redisClient, ""), cacheTTL)
	case config.DriverPostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("storage driver postgres requires postgres.url")
		}
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		b.blobs = memory.NewCachedBlobStore(pgstore.NewBlobStore(pool), cacheTTL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if redisClient != nil {
		b.sessions = infraredis.NewSessionStore(redisClient, config.TTLDuration(cfg.Session.TTL, 2*time.Hour))
	} else {
		b.sessions = memory.NewSessionStore()
	}

	log.WithFields(logrus.Fields{
		"driver":   cfg.Storage.Driver,
		"sessions": sessionBackend(redisClient),
	}).Info("storage ready")
	return b, nil
}

func sessionBackend(client *redis.Client) string {
	if client != nil {
		return "redis"
	}
	return "memory"
}

func newService(cfg config.Config, b *backends, log logrus.FieldLogger) *app.QuizService {
	return app.NewQuizService(
		app.NewQuestionStore(b.blobs, log),
		app.NewLeaderboardStore(b.blobs, log),
		b.sessions,
		auth.NewPINVerifier(cfg.Access.PIN, cfg.Access.PINHash),
		app.WithLogger(log),
		app.WithTopN(cfg.Leaderboard.Size),
	)
}
