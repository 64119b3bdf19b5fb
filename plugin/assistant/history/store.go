// Package history keeps the per-chat conversation log the reasoning backend
// is replayed with. Each chat owns one bounded FIFO sequence; the store is
// the only writer of that sequence.
package history

import (
	"sync"
	"time"
)

// MaxTurns is the per-chat history bound. Oldest turns are evicted first.
const MaxTurns = 100

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one conversation turn. Immutable once appended.
type Turn struct {
	Role    string
	Content string

	// ToolCallID links an assistant tool-call turn to its tool-result
	// turn. ToolName/ToolArgs are set only on assistant tool-call turns.
	ToolCallID string
	ToolName   string
	ToolArgs   string

	CreatedAt time.Time
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, CreatedAt: time.Now()}
}

// AssistantTurn builds a plain assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content, CreatedAt: time.Now()}
}

// AssistantToolCallTurn builds the assistant turn that requested a tool call.
func AssistantToolCallTurn(callID, name, rawArgs string) Turn {
	return Turn{
		Role:       RoleAssistant,
		ToolCallID: callID,
		ToolName:   name,
		ToolArgs:   rawArgs,
		CreatedAt:  time.Now(),
	}
}

// ToolResultTurn builds the turn carrying a tool execution result.
func ToolResultTurn(callID, content string) Turn {
	return Turn{Role: RoleTool, ToolCallID: callID, Content: content, CreatedAt: time.Now()}
}

// Store holds every chat's conversation log.
//
// The outer map is guarded by its own mutex; each log carries a per-chat
// mutex so appends for different chats never contend.
type Store struct {
	mu   sync.RWMutex
	logs map[int64]*chatLog
}

type chatLog struct {
	mu    sync.Mutex
	turns []Turn
}

// NewStore creates an empty history store.
func NewStore() *Store {
	return &Store{logs: make(map[int64]*chatLog)}
}

// Append adds turns to a chat's log, evicting the oldest beyond MaxTurns.
func (s *Store) Append(chatID int64, turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	log := s.log(chatID)
	log.mu.Lock()
	defer log.mu.Unlock()

	log.turns = append(log.turns, turns...)
	if excess := len(log.turns) - MaxTurns; excess > 0 {
		log.turns = append([]Turn(nil), log.turns[excess:]...)
		// Eviction must not cut through a turn group: a tool result whose
		// assistant tool-call turn was evicted is rejected by the reasoning
		// backend on replay. Every group starts with a user turn, so keep
		// dropping until the head is one.
		for len(log.turns) > 0 && log.turns[0].Role != RoleUser {
			log.turns = log.turns[1:]
		}
	}
}

// Get returns a copy of the chat's log, oldest first. A chat with no
// history yields an empty slice, never an error.
func (s *Store) Get(chatID int64) []Turn {
	s.mu.RLock()
	log, ok := s.logs[chatID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	return append([]Turn(nil), log.turns...)
}

// Len returns the chat's current history length.
func (s *Store) Len(chatID int64) int {
	s.mu.RLock()
	log, ok := s.logs[chatID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	return len(log.turns)
}

// Reset clears the chat's history.
func (s *Store) Reset(chatID int64) {
	s.mu.RLock()
	log, ok := s.logs[chatID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	log.mu.Lock()
	defer log.mu.Unlock()
	log.turns = nil
}

func (s *Store) log(chatID int64) *chatLog {
	s.mu.RLock()
	log, ok := s.logs[chatID]
	s.mu.RUnlock()
	if ok {
		return log
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok = s.logs[chatID]; ok {
		return log
	}
	log = &chatLog{}
	s.logs[chatID] = log
	return log
}
