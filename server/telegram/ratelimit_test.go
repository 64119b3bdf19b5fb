package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatLimiter(t *testing.T) {
	t.Run("BurstThenBlocked", func(t *testing.T) {
		l := newChatLimiter(time.Hour, 3)
		for i := 0; i < 3; i++ {
			assert.True(t, l.Allow(1), "burst request %d", i)
		}
		assert.False(t, l.Allow(1))
	})

	t.Run("ChatsAreIndependent", func(t *testing.T) {
		l := newChatLimiter(time.Hour, 1)
		assert.True(t, l.Allow(1))
		assert.False(t, l.Allow(1))
		assert.True(t, l.Allow(2))
	})
}
