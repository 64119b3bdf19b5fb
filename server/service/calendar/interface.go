// Package calendar defines the shared-calendar backend contract and its
// Google Calendar implementation.
package calendar

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// Sentinel errors surfaced by Service implementations. The dispatcher maps
// these onto user-facing messages, so implementations must return them (or
// wrap them) rather than raw transport errors where they apply.
var (
	// ErrNotFound indicates the event id does not exist.
	ErrNotFound = errors.New("event not found")

	// ErrPermissionDenied indicates the backend rejected the operation.
	ErrPermissionDenied = errors.New("calendar permission denied")

	// ErrUnauthenticated indicates the chat has no usable credentials.
	ErrUnauthenticated = errors.New("chat not authenticated")
)

// Event is one calendar event.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	// AllDay marks date-only events; Start/End hold civil-date midnights
	// and End is exclusive, Google-style.
	AllDay bool
}

// Range is a half-open [Start, End) query window.
type Range struct {
	Start time.Time
	End   time.Time
}

// EventPatch carries the fields of an update; nil means unchanged.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// Service is the calendar backend as the core engine sees it.
//
// Operations act on the single shared calendar. chatID selects whose
// credentials perform the call; AnyChat lets read paths use whichever
// authenticated chat is available (the daily digest has no acting user).
type Service interface {
	Create(ctx context.Context, chatID int64, event *Event) (*Event, error)
	Update(ctx context.Context, chatID int64, id string, patch *EventPatch) (*Event, error)
	Delete(ctx context.Context, chatID int64, id string) error
	Get(ctx context.Context, chatID int64, id string) (*Event, error)
	List(ctx context.Context, chatID int64, r Range) ([]*Event, error)
}

// AnyChat selects any authenticated chat's credentials for read calls.
const AnyChat int64 = 0

// TokenStore persists per-chat OAuth tokens.
type TokenStore interface {
	GetToken(ctx context.Context, chatID int64) (*oauth2.Token, error)
	UpsertToken(ctx context.Context, chatID int64, token *oauth2.Token) error
	DeleteToken(ctx context.Context, chatID int64) error
	ListChatIDs(ctx context.Context) ([]int64, error)
}
