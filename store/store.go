// Package store provides persistence for per-chat OAuth credentials.
package store

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/hyeonwoo/calmate/server/service/calendar"
)

// Driver is the storage backend. GetToken returns (nil, nil) when the
// chat has no stored token.
type Driver interface {
	GetToken(ctx context.Context, chatID int64) (*oauth2.Token, error)
	UpsertToken(ctx context.Context, chatID int64, token *oauth2.Token) error
	DeleteToken(ctx context.Context, chatID int64) error
	ListChatIDs(ctx context.Context) ([]int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Store is the persistence facade handed to the rest of the system.
type Store struct {
	driver Driver
}

// New creates a Store and applies pending migrations.
func New(ctx context.Context, driver Driver) (*Store, error) {
	if err := driver.Migrate(ctx); err != nil {
		return nil, err
	}
	return &Store{driver: driver}, nil
}

func (s *Store) GetToken(ctx context.Context, chatID int64) (*oauth2.Token, error) {
	return s.driver.GetToken(ctx, chatID)
}

func (s *Store) UpsertToken(ctx context.Context, chatID int64, token *oauth2.Token) error {
	return s.driver.UpsertToken(ctx, chatID, token)
}

func (s *Store) DeleteToken(ctx context.Context, chatID int64) error {
	return s.driver.DeleteToken(ctx, chatID)
}

func (s *Store) ListChatIDs(ctx context.Context) ([]int64, error) {
	return s.driver.ListChatIDs(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

var _ calendar.TokenStore = (*Store)(nil)
