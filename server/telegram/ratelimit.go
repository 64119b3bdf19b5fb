package telegram

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// chatLimiter rate limits inbound messages per chat so one chat cannot
// monopolize the reasoning backend.
type chatLimiter struct {
	mu     sync.Mutex
	limits map[int64]*rate.Limiter

	every time.Duration
	burst int
}

func newChatLimiter(every time.Duration, burst int) *chatLimiter {
	return &chatLimiter{
		limits: make(map[int64]*rate.Limiter),
		every:  every,
		burst:  burst,
	}
}

// Allow reports whether the chat may submit another message now.
func (l *chatLimiter) Allow(chatID int64) bool {
	l.mu.Lock()
	limiter, ok := l.limits[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.limits[chatID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
