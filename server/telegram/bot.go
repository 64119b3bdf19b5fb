// Package telegram is the chat transport: it pumps Telegram updates into
// the assistant engine and delivers its replies.
package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/hyeonwoo/calmate/plugin/assistant"
	"github.com/hyeonwoo/calmate/server/service/calendar"
)

const (
	msgAlreadyAuthed = "이미 인증되었습니다!\n자연어로 일정을 관리하세요.\n\n💡 사용 예시:\n• \"내일 오후 3시에 팀 회의\"\n• \"오늘 일정 뭐야?\"\n• \"이번 주 일정 알려줘\"\n• \"내일 팀 회의 삭제해줘\"\n• \"팀 회의 시간 4시로 변경해줘\"\n• \"2월 일정 다 지워줘\""
	msgAuthUsage     = "사용법: /auth <인증코드>\n인증코드는 Google 인증 후 주소창에서 code= 뒤의 값입니다."
	msgResetDone     = "대화 기록을 초기화했습니다."
	msgRateLimited   = "요청이 너무 잦습니다. 잠시 후 다시 시도해주세요."
	msgNeedAuth      = "먼저 /start 로 인증을 완료해주세요."
)

// Bot runs the Telegram update loop.
type Bot struct {
	api        *tgbotapi.BotAPI
	dispatcher *assistant.Dispatcher
	calendar   *calendar.Google
	limiter    *chatLimiter
	seq        *assistant.Sequencer
}

// New creates the bot.
func New(token string, dispatcher *assistant.Dispatcher, cal *calendar.Google) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}
	return &Bot{
		api:        api,
		dispatcher: dispatcher,
		calendar:   cal,
		// One message per 2 seconds sustained, short bursts allowed.
		limiter: newChatLimiter(2*time.Second, 5),
		seq:     assistant.NewSequencer(),
	}, nil
}

// Run consumes updates until ctx is canceled. Each update is handled on
// its own goroutine, but the chat's queue position is reserved here in
// the loop, so back-to-back messages from one chat are processed in
// arrival order no matter how the goroutines get scheduled.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("telegram bot started", "username", b.api.Self.UserName)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			msg := update.Message
			run := b.seq.Reserve(msg.Chat.ID)
			go run(func() { b.handleMessage(ctx, msg) })
		}
	}
}

// Notify sends a plain message outside the request/reply cycle, used by
// the OAuth callback server to report authentication results.
func (b *Bot) Notify(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Error("failed to notify chat", "chat_id", chatID, "error", err)
	}
}

// Deliver sends an assistant reply to a chat.
func (b *Bot) Deliver(chatID int64, reply *assistant.Reply) {
	if reply == nil || len(reply.Messages) == 0 {
		return
	}
	for i, text := range reply.Messages {
		msg := tgbotapi.NewMessage(chatID, text)
		if i == len(reply.Messages)-1 {
			switch {
			case reply.RequestLocation:
				keyboard := tgbotapi.NewReplyKeyboard(
					tgbotapi.NewKeyboardButtonRow(
						tgbotapi.NewKeyboardButtonLocation("📍 현재 위치 공유"),
					),
				)
				keyboard.ResizeKeyboard = true
				keyboard.OneTimeKeyboard = true
				msg.ReplyMarkup = keyboard
			case reply.RemoveKeyboard:
				msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
			}
		}
		if _, err := b.api.Send(msg); err != nil {
			slog.Error("failed to send message", "chat_id", chatID, "error", err)
			return
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Location != nil {
		reply := b.dispatcher.HandleLocation(ctx, chatID, assistant.Coordinates{
			Lat: msg.Location.Latitude,
			Lng: msg.Location.Longitude,
		})
		b.Deliver(chatID, reply)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if !b.limiter.Allow(chatID) {
		slog.Warn("chat rate limited", "chat_id", chatID)
		b.Notify(chatID, msgRateLimited)
		return
	}
	if !b.calendar.Authenticated(ctx, chatID) {
		b.Notify(chatID, msgNeedAuth)
		return
	}

	b.Deliver(chatID, b.dispatcher.HandleMessage(ctx, chatID, text))
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if b.calendar.Authenticated(ctx, chatID) {
			b.Notify(chatID, msgAlreadyAuthed)
			return
		}
		b.Notify(chatID,
			"안녕하세요! 📅 캘린더 봇입니다.\n\nGoogle 계정을 연동하려면 아래 링크를 열어주세요:\n\n"+
				b.calendar.AuthURL(chatID)+
				"\n\n권한을 허용하면 자동으로 인증이 완료됩니다!")

	case "auth":
		// Manual fallback for when the redirect cannot reach the
		// callback server.
		code := strings.TrimSpace(msg.CommandArguments())
		if code == "" {
			b.Notify(chatID, msgAuthUsage)
			return
		}
		b.Notify(chatID, "🔄 인증 처리 중...")
		name, err := b.calendar.Exchange(ctx, chatID, code)
		if err != nil {
			slog.Error("manual auth failed", "chat_id", chatID, "error", err)
			b.Notify(chatID, "❌ 인증 실패\n인증 코드를 확인하고 다시 시도해주세요.")
			return
		}
		b.Notify(chatID, "✅ 인증 성공!\n'"+name+"' 캘린더에 연결되었습니다.\n\n이제 자연어로 일정을 관리할 수 있습니다.\n예: \"내일 오후 3시에 팀 회의\"")

	case "today":
		if !b.calendar.Authenticated(ctx, chatID) {
			b.Notify(chatID, msgNeedAuth)
			return
		}
		b.Deliver(chatID, b.dispatcher.Today(ctx, chatID))

	case "reset":
		b.dispatcher.Reset(chatID)
		b.Notify(chatID, msgResetDone)

	default:
		b.Notify(chatID, "지원하지 않는 명령입니다. 자연어로 일정을 말씀해주세요.")
	}
}
