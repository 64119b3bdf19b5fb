// Package nlp is the reasoning backend contract: two explicit passes
// against the same chat-completion API. Interpret turns a conversation
// into either a direct reply or one structured tool call; Summarize turns
// a conversation that already contains tool results into natural Korean.
package nlp

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyeonwoo/calmate/plugin/assistant/history"
)

// ToolCall is one structured action request extracted from the model
// response. Args is the parsed form of RawArgs; RawArgs is kept verbatim
// for replaying into history.
type ToolCall struct {
	ID      string
	Name    string
	RawArgs string
	Args    map[string]any
}

// Result is the outcome of an Interpret pass. Exactly one of Text or
// Call is set.
type Result struct {
	Text string
	Call *ToolCall
}

// Service is the reasoning backend as the dispatcher sees it.
type Service interface {
	// Interpret replays the conversation with the tool schema attached
	// and returns the model's next move.
	Interpret(ctx context.Context, turns []history.Turn, tools []openai.Tool) (*Result, error)

	// Summarize replays the conversation, whose tail holds tool
	// results, without tools and returns the model's prose reply.
	Summarize(ctx context.Context, turns []history.Turn) (string, error)
}
