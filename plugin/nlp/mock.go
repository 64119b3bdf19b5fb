package nlp

import (
	"context"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyeonwoo/calmate/plugin/assistant/history"
)

// MockService is a scripted Service for testing. Interpret pops from
// Steps in order; Summarize returns SummarizeReply and records what it
// was asked to summarize.
type MockService struct {
	mu sync.Mutex

	// Steps are consumed one per Interpret call. A step with Err set
	// fails; otherwise its Result is returned. When Steps runs out,
	// Interpret returns a plain text result.
	Steps []MockStep

	SummarizeReply string
	SummarizeErr   error

	InterpretCalls  int
	InterpretTurns  [][]history.Turn
	SummarizeCalls  int
	SummarizedTurns [][]history.Turn
}

// MockStep is one scripted Interpret outcome.
type MockStep struct {
	Result *Result
	Err    error
}

func (m *MockService) Interpret(_ context.Context, turns []history.Turn, _ []openai.Tool) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InterpretCalls++
	m.InterpretTurns = append(m.InterpretTurns, append([]history.Turn(nil), turns...))

	if len(m.Steps) == 0 {
		return &Result{Text: "무엇을 도와드릴까요?"}, nil
	}
	step := m.Steps[0]
	m.Steps = m.Steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Result, nil
}

func (m *MockService) Summarize(_ context.Context, turns []history.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummarizeCalls++
	m.SummarizedTurns = append(m.SummarizedTurns, append([]history.Turn(nil), turns...))
	if m.SummarizeErr != nil {
		return "", m.SummarizeErr
	}
	return m.SummarizeReply, nil
}

var _ Service = (*MockService)(nil)
