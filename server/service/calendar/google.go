package calendar

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleConfig holds the Google Calendar client configuration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	CalendarID   string
	Location     *time.Location
}

// Google implements Service against the Google Calendar API with per-chat
// OAuth credentials persisted in a TokenStore.
type Google struct {
	oauth      *oauth2.Config
	tokens     TokenStore
	calendarID string
	loc        *time.Location
}

// NewGoogle creates a Google Calendar service.
func NewGoogle(cfg GoogleConfig, tokens TokenStore) *Google {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gcal.CalendarScope},
			Endpoint:     google.Endpoint,
		},
		tokens:     tokens,
		calendarID: cfg.CalendarID,
		loc:        loc,
	}
}

// AuthURL returns the OAuth consent URL for a chat. The chat id travels in
// the state parameter and comes back on the callback.
func (g *Google) AuthURL(chatID int64) string {
	state := formatChatID(chatID)
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token, verifies the shared
// calendar is reachable with it, and persists it. Returns the calendar's
// display name.
func (g *Google) Exchange(ctx context.Context, chatID int64, code string) (string, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, "code exchange failed")
	}

	srv, err := g.serviceWithToken(ctx, token)
	if err != nil {
		return "", err
	}
	cal, err := srv.Calendars.Get(g.calendarID).Context(ctx).Do()
	if err != nil {
		if isStatus(err, 403) || isStatus(err, 404) {
			return "", ErrPermissionDenied
		}
		return "", errors.Wrap(err, "calendar access check failed")
	}

	if err := g.tokens.UpsertToken(ctx, chatID, token); err != nil {
		return "", errors.Wrap(err, "persist token")
	}

	name := cal.Summary
	if name == "" {
		name = g.calendarID
	}
	return name, nil
}

// Authenticated reports whether the chat has a stored token.
func (g *Google) Authenticated(ctx context.Context, chatID int64) bool {
	token, err := g.tokens.GetToken(ctx, chatID)
	return err == nil && token != nil
}

// AuthenticatedChats lists every chat with a stored token.
func (g *Google) AuthenticatedChats(ctx context.Context) ([]int64, error) {
	return g.tokens.ListChatIDs(ctx)
}

func (g *Google) Create(ctx context.Context, chatID int64, event *Event) (*Event, error) {
	srv, err := g.service(ctx, chatID)
	if err != nil {
		return nil, err
	}
	created, err := srv.Events.Insert(g.calendarID, g.toGoogle(event)).Context(ctx).Do()
	if err != nil {
		return nil, g.mapError(err)
	}
	return g.fromGoogle(created), nil
}

func (g *Google) Update(ctx context.Context, chatID int64, id string, patch *EventPatch) (*Event, error) {
	srv, err := g.service(ctx, chatID)
	if err != nil {
		return nil, err
	}
	current, err := srv.Events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		return nil, g.mapError(err)
	}

	if patch.Title != nil {
		current.Summary = *patch.Title
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	if patch.Start != nil {
		current.Start = g.toDateTime(*patch.Start, current.Start != nil && current.Start.Date != "")
	}
	if patch.End != nil {
		current.End = g.toDateTime(*patch.End, current.End != nil && current.End.Date != "")
	}

	updated, err := srv.Events.Update(g.calendarID, id, current).Context(ctx).Do()
	if err != nil {
		return nil, g.mapError(err)
	}
	return g.fromGoogle(updated), nil
}

func (g *Google) Delete(ctx context.Context, chatID int64, id string) error {
	srv, err := g.service(ctx, chatID)
	if err != nil {
		return err
	}
	if err := srv.Events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		return g.mapError(err)
	}
	return nil
}

func (g *Google) Get(ctx context.Context, chatID int64, id string) (*Event, error) {
	srv, err := g.service(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ev, err := srv.Events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		return nil, g.mapError(err)
	}
	return g.fromGoogle(ev), nil
}

func (g *Google) List(ctx context.Context, chatID int64, r Range) ([]*Event, error) {
	srv, err := g.service(ctx, chatID)
	if err != nil {
		return nil, err
	}
	result, err := srv.Events.List(g.calendarID).
		TimeMin(r.Start.Format(time.RFC3339)).
		TimeMax(r.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, g.mapError(err)
	}

	events := make([]*Event, 0, len(result.Items))
	for _, item := range result.Items {
		events = append(events, g.fromGoogle(item))
	}
	return events, nil
}

// service builds an API client with the chat's credentials. chatID == AnyChat
// walks the stored tokens until one works.
func (g *Google) service(ctx context.Context, chatID int64) (*gcal.Service, error) {
	if chatID == AnyChat {
		chatIDs, err := g.tokens.ListChatIDs(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list chats")
		}
		for _, id := range chatIDs {
			srv, err := g.service(ctx, id)
			if err == nil {
				return srv, nil
			}
			slog.Warn("skipping unusable credentials", "chat_id", id, "error", err)
		}
		return nil, ErrUnauthenticated
	}

	token, err := g.tokens.GetToken(ctx, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "load token")
	}
	if token == nil {
		return nil, ErrUnauthenticated
	}

	// TokenSource refreshes transparently; persist the refreshed token so
	// the next process start does not need the old refresh token again.
	ts := g.oauth.TokenSource(ctx, token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if fresh.AccessToken != token.AccessToken {
		if err := g.tokens.UpsertToken(ctx, chatID, fresh); err != nil {
			slog.Warn("failed to persist refreshed token", "chat_id", chatID, "error", err)
		}
	}

	return g.serviceWithToken(ctx, fresh)
}

func (g *Google) serviceWithToken(ctx context.Context, token *oauth2.Token) (*gcal.Service, error) {
	srv, err := gcal.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, errors.Wrap(err, "create calendar client")
	}
	return srv, nil
}

func (g *Google) toGoogle(event *Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
	}
	if event.AllDay {
		out.Start = &gcal.EventDateTime{Date: event.Start.In(g.loc).Format("2006-01-02")}
		out.End = &gcal.EventDateTime{Date: event.End.In(g.loc).Format("2006-01-02")}
	} else {
		out.Start = g.toDateTime(event.Start, false)
		out.End = g.toDateTime(event.End, false)
	}
	return out
}

func (g *Google) toDateTime(t time.Time, allDay bool) *gcal.EventDateTime {
	if allDay {
		return &gcal.EventDateTime{Date: t.In(g.loc).Format("2006-01-02")}
	}
	return &gcal.EventDateTime{
		DateTime: t.In(g.loc).Format(time.RFC3339),
		TimeZone: g.loc.String(),
	}
}

func (g *Google) fromGoogle(item *gcal.Event) *Event {
	event := &Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	event.Start, event.AllDay = g.parseDateTime(item.Start)
	event.End, _ = g.parseDateTime(item.End)
	return event
}

func (g *Google) parseDateTime(dt *gcal.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, g.loc)
		if err != nil {
			return time.Time{}, true
		}
		return t, true
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return t.In(g.loc), false
}

func (g *Google) mapError(err error) error {
	if isStatus(err, 404) || isStatus(err, 410) {
		return ErrNotFound
	}
	if isStatus(err, 403) {
		return ErrPermissionDenied
	}
	return errors.Wrap(err, "calendar request failed")
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

func formatChatID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
