package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Run("EmptyChatYieldsEmpty", func(t *testing.T) {
		s := NewStore()
		assert.Empty(t, s.Get(42))
		assert.Zero(t, s.Len(42))
	})

	t.Run("AppendAndGetPreserveOrder", func(t *testing.T) {
		s := NewStore()
		s.Append(1, UserTurn("안녕"))
		s.Append(1, AssistantTurn("무엇을 도와드릴까요?"))

		turns := s.Get(1)
		require.Len(t, turns, 2)
		assert.Equal(t, RoleUser, turns[0].Role)
		assert.Equal(t, "안녕", turns[0].Content)
		assert.Equal(t, RoleAssistant, turns[1].Role)
	})

	t.Run("FIFOEvictionAtCapacity", func(t *testing.T) {
		s := NewStore()
		for i := 0; i < MaxTurns+25; i++ {
			s.Append(7, UserTurn(fmt.Sprintf("msg-%d", i)))
		}

		turns := s.Get(7)
		require.Len(t, turns, MaxTurns)
		assert.Equal(t, "msg-25", turns[0].Content)
		assert.Equal(t, fmt.Sprintf("msg-%d", MaxTurns+24), turns[len(turns)-1].Content)
	})

	t.Run("MultiTurnAppendEvictsAsOne", func(t *testing.T) {
		s := NewStore()
		for i := 0; i < MaxTurns; i++ {
			s.Append(7, UserTurn("old"))
		}
		s.Append(7,
			AssistantToolCallTurn("call-1", "add_event", `{"title":"회의"}`),
			ToolResultTurn("call-1", "done"),
		)

		turns := s.Get(7)
		require.Len(t, turns, MaxTurns)
		assert.Equal(t, "call-1", turns[len(turns)-1].ToolCallID)
		assert.Equal(t, RoleTool, turns[len(turns)-1].Role)
	})

	t.Run("EvictionNeverOrphansToolTurns", func(t *testing.T) {
		s := NewStore()
		// Each mutation appends a user, an assistant tool-call, and a tool
		// result turn together. 34 groups cross the bound mid-group; a
		// naive trim would leave a tool result at the head with no
		// preceding tool call, which the reasoning backend rejects.
		for i := 0; i < 34; i++ {
			callID := fmt.Sprintf("call-%d", i)
			s.Append(7,
				UserTurn(fmt.Sprintf("msg-%d", i)),
				AssistantToolCallTurn(callID, "add_event", `{"title":"회의"}`),
				ToolResultTurn(callID, "done"),
			)
		}

		turns := s.Get(7)
		require.NotEmpty(t, turns)
		assert.LessOrEqual(t, len(turns), MaxTurns)
		assert.Equal(t, RoleUser, turns[0].Role)
		for i, turn := range turns {
			if turn.Role == RoleTool {
				require.Greater(t, i, 0)
				assert.Equal(t, turn.ToolCallID, turns[i-1].ToolCallID,
					"tool result at %d must follow its tool call", i)
			}
		}
	})

	t.Run("Reset", func(t *testing.T) {
		s := NewStore()
		s.Append(9, UserTurn("hello"))
		s.Reset(9)
		assert.Empty(t, s.Get(9))

		// Reset of an unknown chat is a no-op.
		s.Reset(12345)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		s := NewStore()
		s.Append(3, UserTurn("a"), UserTurn("b"))
		turns := s.Get(3)
		turns[0].Content = "mutated"
		assert.Equal(t, "a", s.Get(3)[0].Content)
	})
}

func TestStoreConcurrentAppends(t *testing.T) {
	s := NewStore()
	const chats = 8
	const perChat = 50

	var wg sync.WaitGroup
	for chat := int64(0); chat < chats; chat++ {
		for i := 0; i < perChat; i++ {
			wg.Add(1)
			go func(chat int64, i int) {
				defer wg.Done()
				s.Append(chat, UserTurn(fmt.Sprintf("%d-%d", chat, i)))
			}(chat, i)
		}
	}
	wg.Wait()

	for chat := int64(0); chat < chats; chat++ {
		assert.Equal(t, perChat, s.Len(chat), "chat %d", chat)
	}
}
