package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/avi1989/ask/internal/cache"
	"github.com/avi1989/ask/internal/session"
	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// OpenAI is a Client backed by an OpenAI-compatible chat-completions
// endpoint.
type OpenAI struct {
	client openai.Client
	logger *zap.Logger
}

// Option configures an OpenAI client.
type Option func(*openAIOptions)

type openAIOptions struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// WithBaseURL points the client at an alternative endpoint.
func WithBaseURL(url string) Option {
	return func(o *openAIOptions) {
		o.baseURL = url
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *openAIOptions) {
		o.httpClient = c
	}
}

// WithLogger sets the logger for request and response debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *openAIOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOpenAI returns a client authenticated with apiKey. Failed requests are
// not retried.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	o := openAIOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		logger: o.logger,
	}
}

// Complete sends req with tool choice "auto" and returns the first choice.
func (c *OpenAI) Complete(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: toParams(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = toolParams(req.Tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("auto"),
		}
	}

	c.logger.Debug("chat completion request",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Int("tools", len(req.Tools)),
	)

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return nil, badRequestError(req.Model, err)
		}
		return nil, fmt.Errorf("OpenAI API Error: %w", err)
	}

	if len(completion.Choices) == 0 {
		return &Response{}, nil
	}
	choice := completion.Choices[0]
	resp := &Response{
		FinishReason: choice.FinishReason,
		Content:      choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			// Some compatible endpoints omit call ids; tool results need one.
			id = "call_" + uuid.NewString()
		}
		resp.ToolCalls = append(resp.ToolCalls, session.ToolCall{
			ID:   id,
			Type: "function",
			Function: session.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	c.logger.Debug("chat completion response",
		zap.String("finish_reason", resp.FinishReason),
		zap.Int("tool_calls", len(resp.ToolCalls)),
	)
	return resp, nil
}

func toParams(messages []session.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case session.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case session.RoleAssistant:
			out = append(out, assistantParam(m))
		case session.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func assistantParam(m session.Message) openai.ChatCompletionMessageParamUnion {
	msg := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" || len(m.ToolCalls) == 0 {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(m.Content),
		}
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}

func toolParams(tools []cache.Tool) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		fn := openai.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: openai.FunctionParameters(t.Parameters),
		}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out
}
