// Package digest delivers the morning schedule notice at a fixed local
// time each day.
package digest

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyeonwoo/calmate/plugin/assistant"
)

// Deliverer sends one reply to one chat.
type Deliverer interface {
	Deliver(chatID int64, reply *assistant.Reply)
}

// Runner fires the daily digest.
type Runner struct {
	dispatcher *assistant.Dispatcher
	deliverer  Deliverer

	hour   int
	minute int
	loc    *time.Location

	now func() time.Time // test hook
}

// NewRunner creates a digest runner firing at hour:minute in loc.
func NewRunner(dispatcher *assistant.Dispatcher, deliverer Deliverer, hour, minute int, loc *time.Location) *Runner {
	return &Runner{
		dispatcher: dispatcher,
		deliverer:  deliverer,
		hour:       hour,
		minute:     minute,
		loc:        loc,
		now:        time.Now,
	}
}

// Run sleeps until the next firing time, runs the digest, and repeats
// until ctx is canceled.
func (r *Runner) Run(ctx context.Context) {
	for {
		wait := time.Until(r.nextFire(r.now()))
		slog.Info("daily digest scheduled", "in", wait.Round(time.Second))

		select {
		case <-ctx.Done():
			slog.Info("digest runner stopped")
			return
		case <-time.After(wait):
			r.RunOnce(ctx)
		}
	}
}

// RunOnce builds today's digest and fans it out to every recipient.
func (r *Runner) RunOnce(ctx context.Context) {
	replies, err := r.dispatcher.DailyDigest(ctx)
	if err != nil {
		slog.Error("daily digest failed", "error", err)
		return
	}
	if len(replies) == 0 {
		return
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for chatID, reply := range replies {
		chatID, reply := chatID, reply
		g.Go(func() error {
			r.deliverer.Deliver(chatID, reply)
			return nil
		})
	}
	_ = g.Wait()
	slog.Info("daily digest delivered", "recipients", len(replies))
}

// nextFire is the next hour:minute occurrence strictly after now.
func (r *Runner) nextFire(now time.Time) time.Time {
	now = now.In(r.loc)
	fire := time.Date(now.Year(), now.Month(), now.Day(), r.hour, r.minute, 0, 0, r.loc)
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}
