package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

var ErrModel = errors.New("model call failed")

// ChatClient 单轮对话,返回模型输出的原始文本
type ChatClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMService OpenAI兼容接口(DeepSeek)
type LLMService struct {
	client *openai.Client
	apiURL string
	apiKey string
	model  string
}

type LLMConfig struct {
	ApiURL  string
	ApiKey  string
	Model   string
	Timeout time.Duration
}

func NewLLMService(cfg LLMConfig) *LLMService {
	apiURL := strings.TrimRight(cfg.ApiURL, "/")

	clientCfg := openai.DefaultConfig(cfg.ApiKey)
	clientCfg.BaseURL = apiURL
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &LLMService{
		client: openai.NewClientWithConfig(clientCfg),
		apiURL: apiURL,
		apiKey: cfg.ApiKey,
		model:  cfg.Model,
	}
}

// Configured 是否配置了API密钥
func (s *LLMService) Configured() bool {
	return s.apiURL != "" && s.apiKey != "" && s.model != ""
}

// Complete 调用LLM,要求返回JSON
func (s *LLMService) Complete(ctx context.Context, prompt string) (string, error) {
	return s.chat(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
}

// TestConnection 测试LLM连接
func (s *LLMService) TestConnection(ctx context.Context) (string, error) {
	if s.apiURL == "" {
		return "", fmt.Errorf("%w: api url not configured", ErrModel)
	}
	if s.apiKey == "" {
		return "", fmt.Errorf("%w: api key not configured", ErrModel)
	}
	if s.model == "" {
		return "", fmt.Errorf("%w: model not configured", ErrModel)
	}
	return s.chat(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hi"},
		},
	})
}

func (s *LLMService) chat(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModel, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty response", ErrModel)
	}

	return resp.Choices[0].Message.Content, nil
}
