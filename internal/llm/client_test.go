package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/avi1989/ask/internal/cache"
	"github.com/avi1989/ask/internal/session"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		env     map[string]string
		want    string
	}{
		{
			name: "ask key wins",
			env:  map[string]string{"ASK_API_KEY": "ask", "OPENAI_API_KEY": "oai"},
			want: "ask",
		},
		{
			name:    "openrouter key for openrouter url",
			baseURL: "https://openrouter.ai/api/v1",
			env:     map[string]string{"OPENROUTER_API_KEY": "or", "OPENAI_API_KEY": "oai"},
			want:    "or",
		},
		{
			name: "openrouter key ignored elsewhere",
			env:  map[string]string{"OPENROUTER_API_KEY": "or", "OPENAI_API_KEY": "oai"},
			want: "oai",
		},
		{
			name:    "openai fallback for openrouter url",
			baseURL: "https://openrouter.ai/api/v1",
			env:     map[string]string{"OPENAI_API_KEY": "oai"},
			want:    "oai",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAPIKey(tt.baseURL, envMap(tt.env))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ResolveAPIKey("", envMap(nil))
	require.ErrorIs(t, err, ErrMissingAPIKey)
	for _, name := range []string{"ASK_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY"} {
		assert.Contains(t, err.Error(), name)
	}
}

func newTestServer(t *testing.T, handler func(t *testing.T, body map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer test-key", got)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		status, resp := handler(t, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteSendsTranscriptAndTools(t *testing.T) {
	srv := newTestServer(t, func(t *testing.T, body map[string]any) (int, string) {
		assert.Equal(t, "gpt-4.1-mini", body["model"])
		assert.Equal(t, "auto", body["tool_choice"])

		messages := body["messages"].([]any)
		require.Len(t, messages, 4)
		assistant := messages[2].(map[string]any)
		assert.Equal(t, "assistant", assistant["role"])
		calls := assistant["tool_calls"].([]any)
		require.Len(t, calls, 1)
		assert.Equal(t, "call_1", calls[0].(map[string]any)["id"])
		tool := messages[3].(map[string]any)
		assert.Equal(t, "tool", tool["role"])
		assert.Equal(t, "call_1", tool["tool_call_id"])

		tools := body["tools"].([]any)
		require.Len(t, tools, 1)
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		assert.Equal(t, "execute_command", fn["name"])

		return http.StatusOK, `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4.1-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{"id": "call_2", "type": "function", "function": {"name": "fs_read", "arguments": "{\"path\":\"a\"}"}}]
    }
  }]
}`
	})

	client := NewOpenAI("test-key", WithBaseURL(srv.URL))
	resp, err := client.Complete(context.Background(), Request{
		Model: "gpt-4.1-mini",
		Messages: []session.Message{
			session.System("prompt"),
			session.User("hi"),
			session.Assistant("", session.ToolCall{ID: "call_1", Type: "function", Function: session.FunctionCall{Name: "execute_command", Arguments: `{"command":"ls"}`}}),
			session.ToolResult("call_1", "a\n"),
		},
		Tools: []cache.Tool{{Name: "execute_command", Description: "run", Parameters: map[string]any{"type": "object", "properties": map[string]any{}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_2", resp.ToolCalls[0].ID)
	assert.Equal(t, "function", resp.ToolCalls[0].Type)
	assert.Equal(t, "fs_read", resp.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"path":"a"}`, resp.ToolCalls[0].Function.Arguments)
}

func TestCompleteWithoutChoicesIsAbsentFinish(t *testing.T) {
	srv := newTestServer(t, func(t *testing.T, body map[string]any) (int, string) {
		_, hasTools := body["tools"]
		assert.False(t, hasTools)
		return http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`
	})

	resp, err := NewOpenAI("test-key", WithBaseURL(srv.URL)).Complete(context.Background(), Request{
		Model:    "m",
		Messages: []session.Message{session.User("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "", resp.FinishReason)
	assert.Equal(t, "", resp.Content)
}

func TestCompleteAnnotatesBadRequest(t *testing.T) {
	srv := newTestServer(t, func(t *testing.T, body map[string]any) (int, string) {
		return http.StatusBadRequest, `{"error":{"message":"bad model","type":"invalid_request_error","code":"model_not_found","param":"model"}}`
	})

	_, err := NewOpenAI("test-key", WithBaseURL(srv.URL)).Complete(context.Background(), Request{
		Model:    "nope",
		Messages: []session.Message{session.User("hi")},
	})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "API request failed with 400 error. This might be due to:\n1. Invalid model name: 'nope'\n"), err.Error())
	assert.Contains(t, err.Error(), "\n\nOriginal error: ")
}

func TestCompleteWrapsOtherErrors(t *testing.T) {
	srv := newTestServer(t, func(t *testing.T, body map[string]any) (int, string) {
		return http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error","code":"x","param":""}}`
	})

	_, err := NewOpenAI("test-key", WithBaseURL(srv.URL)).Complete(context.Background(), Request{
		Model:    "m",
		Messages: []session.Message{session.User("hi")},
	})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "OpenAI API Error: "), err.Error())

	var apiErr *openai.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestCompleteFillsMissingCallIDs(t *testing.T) {
	srv := newTestServer(t, func(t *testing.T, body map[string]any) (int, string) {
		return http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"","type":"function","function":{"name":"execute_command","arguments":"{}"}}]}}]}`
	})

	resp, err := NewOpenAI("test-key", WithBaseURL(srv.URL)).Complete(context.Background(), Request{
		Model:    "m",
		Messages: []session.Message{session.User("hi")},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.True(t, strings.HasPrefix(resp.ToolCalls[0].ID, "call_"), resp.ToolCalls[0].ID)
	assert.Greater(t, len(resp.ToolCalls[0].ID), len("call_"))
}

func TestResponseMessage(t *testing.T) {
	resp := &Response{FinishReason: FinishStop, Content: "done"}
	assert.Equal(t, session.Message{Role: session.RoleAssistant, Content: "done"}, resp.Message())

	call := session.ToolCall{ID: "c1", Type: "function", Function: session.FunctionCall{Name: "execute_command"}}
	resp = &Response{FinishReason: FinishToolCalls, ToolCalls: []session.ToolCall{call}}
	assert.Equal(t, []session.ToolCall{call}, resp.Message().ToolCalls)
}
