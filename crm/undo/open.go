package undo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

const (
	BackendMemory   = "memory"
	BackendUpstash  = "upstash"
	BackendPostgres = "postgres"
)

// Config is read from UNDO_* variables. The Upstash backend reads its own
// UPSTASH_REDIS_* block.
type Config struct {
	Backend     string        `default:"memory"`
	TTL         time.Duration `default:"24h"`
	PostgresDSN string        `envconfig:"POSTGRES_DSN"`
}

// Open builds the configured backend. The Postgres table is created on
// open.
func Open(ctx context.Context, cfg Config, upstash UpstashConfig) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	log.Debug().Str("backend", backend).Msg("opening undo store")

	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendUpstash:
		return NewUpstashStore(upstash, WithTTL(cfg.TTL))
	case BackendPostgres:
		db, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown undo backend %q", contractx.ErrConfig, cfg.Backend)
	}
}
