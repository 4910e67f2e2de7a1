package session

import (
	"context"
	"errors"
)

var (
	ErrItemNotFound    = errors.New("item not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Store persists items and sessions.
type Store interface {
	PutItem(ctx context.Context, it Item) error
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)

	PutSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	UpdateSession(ctx context.Context, s Session) error
	ListSessions(ctx context.Context, itemID string) ([]Session, error)
}
