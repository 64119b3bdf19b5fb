package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hyeonwoo/calmate/internal/profile"
	"github.com/hyeonwoo/calmate/plugin/assistant"
	"github.com/hyeonwoo/calmate/plugin/geo"
	"github.com/hyeonwoo/calmate/plugin/nlp"
	"github.com/hyeonwoo/calmate/server/router/oauthcb"
	"github.com/hyeonwoo/calmate/server/runner/digest"
	"github.com/hyeonwoo/calmate/server/service/calendar"
	"github.com/hyeonwoo/calmate/server/telegram"
	"github.com/hyeonwoo/calmate/store"
	"github.com/hyeonwoo/calmate/store/db"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "calmate",
		Short:   "Natural language shared calendar bot for Telegram",
		Version: version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("calmate exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	p, err := profile.FromEnv(version)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	loc := p.Location()
	slog.Info("starting calmate",
		"version", p.Version,
		"mode", p.Mode,
		"timezone", loc.String(),
	)

	driver, err := db.NewDriver(p)
	if err != nil {
		return err
	}
	st, err := store.New(ctx, driver)
	if err != nil {
		return err
	}
	defer st.Close()

	cal := calendar.NewGoogle(calendar.GoogleConfig{
		ClientID:     p.GoogleClientID,
		ClientSecret: p.GoogleClientSecret,
		RedirectURL:  p.GoogleRedirectURL,
		CalendarID:   p.SharedCalendarID,
		Location:     loc,
	}, st)

	reasoner := nlp.NewClient(&nlp.Config{
		BaseURL:  p.OpenAIBaseURL,
		APIKey:   p.OpenAIAPIKey,
		Model:    p.OpenAIModel,
		Timezone: loc,
	})

	var geocoder geo.Service
	if p.GoogleMapsAPIKey != "" {
		geocoder = geo.NewGoogle(&geo.Config{APIKey: p.GoogleMapsAPIKey})
	} else {
		slog.Warn("maps api key not set, navigation is disabled")
	}

	dispatcher := assistant.New(&assistant.Config{
		Calendar: cal,
		Reasoner: reasoner,
		Geocoder: geocoder,
		Roster:   cal,
		Timezone: loc,
	})

	bot, err := telegram.New(p.TelegramToken, dispatcher, cal)
	if err != nil {
		return err
	}

	callback := oauthcb.New(cal, p.OAuthPort, bot.Notify)

	hour, minute, err := p.DigestClock()
	if err != nil {
		return err
	}
	digestRunner := digest.NewRunner(dispatcher, bot, hour, minute, loc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(ctx)
	})
	g.Go(func() error {
		return callback.Start(ctx)
	})
	g.Go(func() error {
		digestRunner.Run(ctx)
		return nil
	})
	g.Go(func() error {
		dispatcher.RunSweeper(ctx, 10*time.Minute)
		return nil
	})

	err = g.Wait()
	slog.Info("calmate stopped")
	return err
}
