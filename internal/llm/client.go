// Package llm adapts the chat-completions API to the transcript and tool
// types used by the rest of ask.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avi1989/ask/internal/cache"
	"github.com/avi1989/ask/internal/session"
)

// Finish reasons the orchestrator reacts to.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
)

// Client sends one chat-completion request.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single model turn.
type Request struct {
	Model    string
	Messages []session.Message
	Tools    []cache.Tool
}

// Response is the first choice of a completion. FinishReason is empty when
// the API returned no choice or did not report one.
type Response struct {
	FinishReason string
	Content      string
	ToolCalls    []session.ToolCall
}

// Message returns the assistant transcript entry for the response.
func (r *Response) Message() session.Message {
	return session.Assistant(r.Content, r.ToolCalls...)
}

// ErrMissingAPIKey is returned when none of the key variables is set.
var ErrMissingAPIKey = errors.New("no API key found: set ASK_API_KEY, OPENROUTER_API_KEY or OPENAI_API_KEY")

// ResolveAPIKey picks the API key for baseURL from the environment.
// OPENROUTER_API_KEY is only consulted for OpenRouter endpoints.
func ResolveAPIKey(baseURL string, getenv func(string) string) (string, error) {
	if key := strings.TrimSpace(getenv("ASK_API_KEY")); key != "" {
		return key, nil
	}
	if strings.Contains(strings.ToLower(baseURL), "openrouter") {
		if key := strings.TrimSpace(getenv("OPENROUTER_API_KEY")); key != "" {
			return key, nil
		}
	}
	if key := strings.TrimSpace(getenv("OPENAI_API_KEY")); key != "" {
		return key, nil
	}
	return "", ErrMissingAPIKey
}

func badRequestError(model string, err error) error {
	return fmt.Errorf("API request failed with 400 error. This might be due to:\n1. Invalid model name: '%s'\n2. Request format issues\n3. API rate limits or permissions\n\nOriginal error: %w", model, err)
}
