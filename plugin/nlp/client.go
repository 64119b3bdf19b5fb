package nlp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyeonwoo/calmate/plugin/assistant/history"
)

// Config holds the chat-completion backend configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timezone  *time.Location
}

// Client talks to an OpenAI-compatible chat-completion endpoint.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	loc       *time.Location

	now func() time.Time // test hook
}

// NewClient creates a reasoning client.
func NewClient(cfg *Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		loc:       cfg.Timezone,
		now:       time.Now,
	}
}

// Interpret asks the model what to do next. The returned Result carries
// either prose or a single tool call; when the model requests several
// calls only the first is honored.
func (c *Client) Interpret(ctx context.Context, turns []history.Turn, tools []openai.Tool) (*Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:      c.model,
		Messages:   c.buildMessages(turns),
		Tools:      tools,
		ToolChoice: "auto",
		MaxTokens:  c.maxTokens,
	})
	if err != nil {
		return nil, errors.Wrap(err, "interpret chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty chat response")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		content := msg.Content
		if content == "" {
			content = "무엇을 도와드릴까요?"
		}
		return &Result{Text: content}, nil
	}

	call := msg.ToolCalls[0]
	args := map[string]any{}
	if raw := call.Function.Arguments; raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, errors.Wrapf(err, "parse arguments for %s", call.Function.Name)
		}
	}
	if len(msg.ToolCalls) > 1 {
		slog.Warn("model requested multiple tool calls, honoring first",
			"count", len(msg.ToolCalls), "first", call.Function.Name)
	}

	return &Result{Call: &ToolCall{
		ID:      call.ID,
		Name:    call.Function.Name,
		RawArgs: call.Function.Arguments,
		Args:    args,
	}}, nil
}

// Summarize replays the conversation without tools so the model turns
// the latest tool result into a natural reply.
func (c *Client) Summarize(ctx context.Context, turns []history.Turn) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  c.buildMessages(turns),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "summarize chat completion")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty summary response")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages prepends the dated system prompt and converts history
// turns into the wire shape, preserving tool-call linkage.
func (c *Client) buildMessages(turns []history.Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(c.now().In(c.loc)),
	})

	for _, turn := range turns {
		switch {
		case turn.Role == history.RoleAssistant && turn.ToolCallID != "":
			messages = append(messages, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   turn.ToolCallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      turn.ToolName,
						Arguments: turn.ToolArgs,
					},
				}},
			})
		case turn.Role == history.RoleTool:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: turn.ToolCallID,
				Content:    turn.Content,
			})
		default:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    turn.Role,
				Content: turn.Content,
			})
		}
	}
	return messages
}

var _ Service = (*Client)(nil)
