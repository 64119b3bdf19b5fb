package profile

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hyeonwoo/calmate/server/timezone"
)

// Profile is the configuration to start the bot process.
// All values come from CALMATE_* environment variables.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Data is the data directory (sqlite database lives here)
	Data string
	// DSN points to the token database. Defaults to <Data>/calmate.db
	DSN string

	// TelegramToken is the Telegram bot API token
	TelegramToken string

	// OpenAIAPIKey is the API key for the reasoning backend
	OpenAIAPIKey string
	// OpenAIBaseURL overrides the OpenAI endpoint (empty = default)
	OpenAIBaseURL string
	// OpenAIModel is the chat model used for both reasoning passes
	OpenAIModel string

	// GoogleClientID / GoogleClientSecret are the OAuth client credentials
	GoogleClientID     string
	GoogleClientSecret string
	// GoogleRedirectURL is the OAuth callback URL
	GoogleRedirectURL string
	// GoogleMapsAPIKey enables geocoding; navigation is disabled without it
	GoogleMapsAPIKey string

	// SharedCalendarID is the single calendar every chat operates on
	SharedCalendarID string

	// Timezone is the IANA zone all dates are interpreted in
	Timezone string

	// DailyReportTime is the local "HH:MM" the daily digest fires at
	DailyReportTime string

	// OAuthPort is the port for the OAuth callback server
	OAuthPort int

	// Version is the current version of the bot
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Location resolves the configured timezone, falling back to UTC.
func (p *Profile) Location() *time.Location {
	loc, err := timezone.Parse(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DigestClock parses DailyReportTime into hour and minute.
func (p *Profile) DigestClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", p.DailyReportTime)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid daily report time %q", p.DailyReportTime)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks that every required value is present.
func (p *Profile) Validate() error {
	if p.TelegramToken == "" {
		return errors.New("telegram token is required (CALMATE_TELEGRAM_TOKEN)")
	}
	if p.OpenAIAPIKey == "" {
		return errors.New("OpenAI API key is required (CALMATE_OPENAI_API_KEY)")
	}
	if p.GoogleClientID == "" || p.GoogleClientSecret == "" {
		return errors.New("Google OAuth client credentials are required")
	}
	if p.SharedCalendarID == "" {
		return errors.New("shared calendar id is required (CALMATE_SHARED_CALENDAR_ID)")
	}
	if !timezone.IsValid(p.Timezone) {
		return errors.Errorf("invalid timezone %q", p.Timezone)
	}
	if _, _, err := p.DigestClock(); err != nil {
		return err
	}
	return nil
}

// FromEnv loads the profile from CALMATE_* environment variables.
func FromEnv(version string) (*Profile, error) {
	v := viper.New()
	v.SetEnvPrefix("calmate")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "dev")
	v.SetDefault("data", "./data")
	v.SetDefault("openai_model", "gpt-4.1")
	v.SetDefault("google_redirect_url", "http://localhost:8080/oauth/callback")
	v.SetDefault("timezone", "Asia/Seoul")
	v.SetDefault("daily_report_time", "09:00")
	v.SetDefault("oauth_port", 8080)

	p := &Profile{
		Mode:               v.GetString("mode"),
		Data:               v.GetString("data"),
		DSN:                v.GetString("dsn"),
		TelegramToken:      v.GetString("telegram_token"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIBaseURL:      v.GetString("openai_base_url"),
		OpenAIModel:        v.GetString("openai_model"),
		GoogleClientID:     v.GetString("google_client_id"),
		GoogleClientSecret: v.GetString("google_client_secret"),
		GoogleRedirectURL:  v.GetString("google_redirect_url"),
		GoogleMapsAPIKey:   v.GetString("google_maps_api_key"),
		SharedCalendarID:   v.GetString("shared_calendar_id"),
		Timezone:           v.GetString("timezone"),
		DailyReportTime:    v.GetString("daily_report_time"),
		OAuthPort:          v.GetInt("oauth_port"),
		Version:            version,
	}

	if p.DSN == "" {
		p.DSN = p.Data + "/calmate.db"
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
