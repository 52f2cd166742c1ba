package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Divas-Gupta30/hmo-assistant/internal/config"
	"github.com/Divas-Gupta30/hmo-assistant/internal/conversation"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists conversation states keyed by state ID.
type SessionStore interface {
	Load(ctx context.Context, id string) (*conversation.State, error)
	Save(ctx context.Context, s *conversation.State) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// OpenSessionStore builds the session backend selected in cfg.
func OpenSessionStore(ctx context.Context, cfg *config.Config) (SessionStore, error) {
	switch cfg.SessionBackend {
	case "sqlite":
		return OpenSQLite(ctx, cfg.SessionDSN)
	case "postgres":
		dsn := cfg.SessionDSN
		if dsn == "" || dsn == "sessions.db" {
			dsn = cfg.DatabaseURL
		}
		return OpenPostgres(ctx, dsn)
	case "redis":
		return OpenRedis(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.SessionTTL)
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.SessionBackend)
	}
}
