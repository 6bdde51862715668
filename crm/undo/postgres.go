package undo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

type undoRow struct {
	bun.BaseModel `bun:"table:crm_undo_entries,alias:u"`

	UserID     string    `bun:"user_id,pk"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	Action     string    `bun:"action,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
}

func (r undoRow) entry() Entry {
	return Entry{
		UserID:     r.UserID,
		EntityType: contractx.ItemType(r.EntityType),
		EntityID:   r.EntityID,
		Action:     r.Action,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// PostgresStore keeps one row per user in crm_undo_entries.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects with pgdriver and wraps the pool in bun.
func OpenPostgres(dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: undo postgres dsn is required", contractx.ErrConfig)
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*undoRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create undo table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, e Entry) error {
	e, err := normalize(e)
	if err != nil {
		return err
	}
	row := &undoRow{
		UserID:     e.UserID,
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		Action:     e.Action,
		CreatedAt:  e.CreatedAt,
	}
	if _, err := s.upsertQuery(row).Exec(ctx); err != nil {
		return fmt.Errorf("save undo entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (Entry, error) {
	key, err := userKey(userID)
	if err != nil {
		return Entry{}, err
	}
	row := new(undoRow)
	if err := s.selectQuery(row, key).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("load undo entry: %w", err)
	}
	e, err := normalize(row.entry())
	if err != nil {
		return Entry{}, fmt.Errorf("invalid undo entry loaded from store: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) error {
	key, err := userKey(userID)
	if err != nil {
		return err
	}
	if _, err := s.deleteQuery(key).Exec(ctx); err != nil {
		return fmt.Errorf("clear undo entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) upsertQuery(row *undoRow) *bun.InsertQuery {
	return s.db.NewInsert().
		Model(row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("entity_type = EXCLUDED.entity_type").
		Set("entity_id = EXCLUDED.entity_id").
		Set("action = EXCLUDED.action").
		Set("created_at = EXCLUDED.created_at")
}

func (s *PostgresStore) selectQuery(row *undoRow, userID string) *bun.SelectQuery {
	return s.db.NewSelect().Model(row).Where("user_id = ?", userID).Limit(1)
}

func (s *PostgresStore) deleteQuery(userID string) *bun.DeleteQuery {
	return s.db.NewDelete().Model((*undoRow)(nil)).Where("user_id = ?", userID)
}
