// Package oauthcb serves the Google OAuth redirect endpoint. Google
// sends the user's browser here after consent; the chat id rides in the
// state parameter.
package oauthcb

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hyeonwoo/calmate/server/service/calendar"
)

const successHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>인증 완료</title>
<style>
body{display:flex;justify-content:center;align-items:center;height:100vh;margin:0;
font-family:-apple-system,sans-serif;background:#f0f2f5}
.card{text-align:center;background:#fff;padding:40px 60px;border-radius:16px;
box-shadow:0 2px 12px rgba(0,0,0,.1)}
h1{font-size:48px;margin:0}
p{color:#333;font-size:18px;margin-top:16px}
</style></head>
<body><div class="card"><h1>&#x2705;</h1>
<p>인증이 완료되었습니다!<br>텔레그램 앱으로 돌아가세요.</p></div></body></html>`

const errorHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>인증 실패</title>
<style>
body{display:flex;justify-content:center;align-items:center;height:100vh;margin:0;
font-family:-apple-system,sans-serif;background:#f0f2f5}
.card{text-align:center;background:#fff;padding:40px 60px;border-radius:16px;
box-shadow:0 2px 12px rgba(0,0,0,.1)}
h1{font-size:48px;margin:0}
p{color:#c00;font-size:18px;margin-top:16px}
</style></head>
<body><div class="card"><h1>&#x274C;</h1>
<p>%s</p></div></body></html>`

// Notifier delivers the authentication result to the chat, since the
// browser redirect happens outside the chat transport.
type Notifier func(chatID int64, text string)

// Server is the OAuth callback HTTP server.
type Server struct {
	echo     *echo.Echo
	calendar *calendar.Google
	notify   Notifier
	port     int
}

// New creates the callback server.
func New(cal *calendar.Google, port int, notify Notifier) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, calendar: cal, notify: notify, port: port}
	e.GET("/oauth/callback", s.handleCallback)
	return s
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(fmt.Sprintf(":%d", s.port))
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "oauth callback server")
	}
}

func (s *Server) handleCallback(c echo.Context) error {
	code := c.QueryParam("code")
	state := c.QueryParam("state")
	if code == "" || state == "" {
		return s.renderError(c, "인증 코드 또는 상태 정보가 없습니다.<br>다시 시도해주세요.")
	}

	chatID, err := strconv.ParseInt(state, 10, 64)
	if err != nil {
		return s.renderError(c, "잘못된 인증 요청입니다.")
	}

	calendarName, err := s.calendar.Exchange(c.Request().Context(), chatID, code)
	if err != nil {
		slog.Error("oauth exchange failed", "chat_id", chatID, "error", err)
		message := "인증 처리 중 오류가 발생했습니다."
		if errors.Is(err, calendar.ErrPermissionDenied) {
			message = "공유 캘린더에 접근할 수 없습니다. 캘린더 공유 설정을 확인해주세요."
		}
		if s.notify != nil {
			s.notify(chatID, "❌ 인증 실패\n"+message)
		}
		return s.renderError(c, "인증에 실패했습니다.<br>"+message)
	}

	slog.Info("chat authenticated", "chat_id", chatID, "calendar", calendarName)
	if s.notify != nil {
		s.notify(chatID, fmt.Sprintf(
			"✅ 인증 성공!\n'%s' 캘린더에 연결되었습니다.\n\n이제 자연어로 일정을 관리할 수 있습니다.\n예: \"내일 오후 3시에 팀 회의\"",
			calendarName))
	}
	return c.HTML(http.StatusOK, successHTML)
}

func (s *Server) renderError(c echo.Context, message string) error {
	return c.HTML(http.StatusOK, fmt.Sprintf(errorHTML, message))
}
