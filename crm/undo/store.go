// Package undo keeps the last record each user created so it can be
// deleted again. Every backend is last-write-wins per user.
package undo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
)

var (
	ErrNotFound     = errors.New("nothing to undo")
	ErrInvalidUser  = errors.New("undo user id is empty")
	ErrInvalidEntry = errors.New("undo entry is incomplete")
)

const ActionCreate = "create"

// Entry is the most recent write of one user.
type Entry struct {
	UserID     string             `json:"user_id"`
	EntityType contractx.ItemType `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Action     string             `json:"action"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Store is the persistence contract used by the toolkit. Load returns
// ErrNotFound when the user has no entry.
type Store interface {
	Save(ctx context.Context, e Entry) error
	Load(ctx context.Context, userID string) (Entry, error)
	Clear(ctx context.Context, userID string) error
}

// normalize fills defaults and rejects entries that could not be undone.
func normalize(e Entry) (Entry, error) {
	e.UserID = strings.TrimSpace(e.UserID)
	e.EntityID = strings.TrimSpace(e.EntityID)
	e.EntityType = contractx.ParseItemType(string(e.EntityType))
	if e.UserID == "" {
		return Entry{}, ErrInvalidUser
	}
	if e.EntityID == "" || e.EntityType == "" {
		return Entry{}, fmt.Errorf("%w: entity type and id are required", ErrInvalidEntry)
	}
	if e.Action == "" {
		e.Action = ActionCreate
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	} else {
		e.CreatedAt = e.CreatedAt.UTC()
	}
	return e, nil
}

func userKey(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUser
	}
	return userID, nil
}
