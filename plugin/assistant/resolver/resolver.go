// Package resolver turns a vague target description ("the meeting", "3시
// 일정") into a concrete calendar event, or reports that it cannot do so
// safely. A wrong delete is worse than asking again, so the resolver only
// guesses when exactly one plausible event exists.
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hyeonwoo/calmate/server/service/calendar"
)

// Hint carries whatever the user gave us to identify an event. Every
// field is optional; an empty Hint still resolves when the window holds
// exactly one event.
type Hint struct {
	// EventID, when set, bypasses matching entirely. Not-found is then
	// terminal with no fallback.
	EventID string

	// Title is matched by case-insensitive containment in either
	// direction, so "sync" finds "Team Sync" and "팀 회의 준비" finds
	// "팀 회의".
	Title string

	// Time is the hinted start time as "HH:MM". Used to narrow the
	// field when the title alone leaves several candidates.
	Time string
}

// Outcome is the result of a resolution attempt. Either Event is non-nil
// (resolved, possibly ViaFallback), or Event is nil and Candidates
// carries whatever matched (ambiguous).
type Outcome struct {
	Event *calendar.Event

	// ViaFallback marks that the event was chosen only because it was
	// the single event in the window, not because a hint matched.
	// Callers echo the title back so the user sees what was acted on.
	ViaFallback bool

	Candidates []*calendar.Event
}

// Resolved reports whether a single event was identified.
func (o *Outcome) Resolved() bool { return o.Event != nil }

// Resolver finds events through the calendar query interface.
type Resolver struct {
	svc calendar.Service
	loc *time.Location
}

func New(svc calendar.Service, loc *time.Location) *Resolver {
	return &Resolver{svc: svc, loc: loc}
}

// Resolve applies the matching ladder, first hit wins: explicit id,
// title filter, time filter, single survivor, single-event fallback,
// then ambiguous.
func (r *Resolver) Resolve(ctx context.Context, chatID int64, hint Hint, window calendar.Range) (*Outcome, error) {
	if hint.EventID != "" {
		ev, err := r.svc.Get(ctx, chatID, hint.EventID)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve event %s", hint.EventID)
		}
		return &Outcome{Event: ev}, nil
	}

	all, err := r.svc.List(ctx, chatID, window)
	if err != nil {
		return nil, errors.Wrap(err, "list events for resolution")
	}

	candidates := all
	if hint.Title != "" {
		candidates = filterByTitle(candidates, hint.Title)
	}
	if len(candidates) > 1 && hint.Time != "" {
		candidates = filterByTime(candidates, hint.Time, r.loc)
	}

	if len(candidates) == 1 {
		return &Outcome{Event: candidates[0]}, nil
	}
	if len(all) == 1 {
		return &Outcome{Event: all[0], ViaFallback: true}, nil
	}

	if len(candidates) == 0 {
		candidates = all
	}
	return &Outcome{Candidates: candidates}, nil
}

// filterByTitle keeps events whose title contains the hint or whose
// title is contained in the hint, case-insensitively.
func filterByTitle(events []*calendar.Event, hint string) []*calendar.Event {
	needle := strings.ToLower(strings.TrimSpace(hint))
	if needle == "" {
		return events
	}
	var out []*calendar.Event
	for _, ev := range events {
		title := strings.ToLower(ev.Title)
		if strings.Contains(title, needle) || strings.Contains(needle, title) {
			out = append(out, ev)
		}
	}
	return out
}

// filterByTime prefers events starting exactly at the hinted HH:MM; when
// none match exactly it keeps the single closest start time instead.
func filterByTime(events []*calendar.Event, hhmm string, loc *time.Location) []*calendar.Event {
	var exact []*calendar.Event
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		if ev.Start.In(loc).Format("15:04") == hhmm {
			exact = append(exact, ev)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	hinted, err := time.ParseInLocation("15:04", hhmm, loc)
	if err != nil {
		return events
	}
	hintMin := hinted.Hour()*60 + hinted.Minute()

	best := -1
	bestDiff := 0
	for i, ev := range events {
		if ev.AllDay {
			continue
		}
		start := ev.Start.In(loc)
		diff := start.Hour()*60 + start.Minute() - hintMin
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best < 0 {
		return events
	}
	return []*calendar.Event{events[best]}
}
