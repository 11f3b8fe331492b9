package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLLM(url string) *LLMService {
	return NewLLMService(LLMConfig{ApiURL: url + "/", ApiKey: "sk-test", Model: "deepseek-chat", Timeout: time.Second})
}

func TestLLMService_Complete(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			assert.Equal(t, "deepseek-chat", req.Model)
			if assert.NotNil(t, req.ResponseFormat) {
				assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
			}
			if assert.Len(t, req.Messages, 1) {
				assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[0].Role)
				assert.Equal(t, "prompt", req.Messages[0].Content)
			}
		}

		w.Header().Set("Content-Type", "application/json")

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"summary\":\"ok\"}"}}]}`))
	})

	llm := newTestLLM(srv.URL)
	assert.True(t, llm.Configured())

	out, err := llm.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
}

func TestLLMService_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"overloaded"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`},
		{"garbage", http.StatusOK, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			})

			_, err := newTestLLM(srv.URL).Complete(context.Background(), "prompt")
			assert.ErrorIs(t, err, ErrModel)
		})
	}
}

func TestLLMService_Timeout(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	llm := NewLLMService(LLMConfig{ApiURL: srv.URL, ApiKey: "k", Model: "m", Timeout: 50 * time.Millisecond})
	_, err := llm.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrModel)
}

func TestLLMService_TestConnectionMisconfigured(t *testing.T) {
	llm := NewLLMService(LLMConfig{ApiURL: "https://api.deepseek.com", Model: "deepseek-chat", Timeout: time.Second})
	assert.False(t, llm.Configured())

	_, err := llm.TestConnection(context.Background())
	assert.ErrorIs(t, err, ErrModel)
}
