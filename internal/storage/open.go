package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-busboxd/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Open selects the backend named by cfg.StoreBackend. The returned store
// bounds every call by cfg.RemoteTimeout.
func Open(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client) (Store, error) {
	var s Store
	switch cfg.StoreBackend {
	case "github", "":
		gh, err := NewGitHub(ctx, cfg.GitHubToken, cfg.RepoName, cfg.GitHubBranch, cfg.GitHubAPIURL)
		if err != nil {
			return nil, err
		}
		s = gh
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis backend selected but redis is not configured")
		}
		s = NewRedis(rdb)
	case "postgres":
		if pg == nil {
			return nil, errors.New("postgres backend selected but postgres is not connected")
		}
		p := NewPostgres(pg)
		if err := p.Migrate(ctx); err != nil {
			return nil, err
		}
		s = p
	case "memory":
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	return WithTimeout(s, cfg.RemoteTimeout), nil
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds each call on s. A zero or negative timeout returns s unchanged.
func WithTimeout(s Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return s
	}
	return &timeoutStore{next: s, timeout: timeout}
}

func (t *timeoutStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Fetch(ctx, name)
}

func (t *timeoutStore) Commit(ctx context.Context, name string, data []byte, message string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Commit(ctx, name, data, message)
}

func (t *timeoutStore) Create(ctx context.Context, name string, data []byte, message string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Create(ctx, name, data, message)
}
