package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"potluck/internal/logger"
	"potluck/internal/model"
)

const (
	maxContentRunes = 1000
	maxSummaryRunes = 200
	maxTitleRunes   = 200
	maxTags         = 2
	maxTagRunes     = 20
)

const summaryPrompt = `Analyze this tech news article.
Title: %s
Content: %s...

Output valid JSON only:
{
  "title": "Original title cleaned up, same language, < 200 chars (optional)",
  "summary": "Chinese summary in markdown, < 200 chars. Focus on value/impact.",
  "tags": ["Tag1", "Tag2"] (Max 2 tags, English, e.g. "AI", "Rust", "Vue")
}`

// summaryReply 模型返回的JSON结构
type summaryReply struct {
	Title   string   `json:"title" validate:"max=200"`
	Summary string   `json:"summary" validate:"required,max=200"`
	Tags    []string `json:"tags"`
}

// Summarizer 调用模型生成摘要,任何失败都降级为截断结果
type Summarizer struct {
	client   ChatClient
	logger   logger.Logger
	validate *validator.Validate
}

// NewSummarizer client 为 nil 时始终使用降级结果
func NewSummarizer(client ChatClient, log logger.Logger) *Summarizer {
	return &Summarizer{
		client:   client,
		logger:   log,
		validate: validator.New(),
	}
}

// Summarize 总是返回结果,不会失败
func (s *Summarizer) Summarize(ctx context.Context, title, content string) model.AISummary {
	content = truncate(content, maxContentRunes)

	if s.client == nil {
		return fallbackSummary(title, content)
	}

	raw, err := s.client.Complete(ctx, fmt.Sprintf(summaryPrompt, title, content))
	if err != nil {
		s.logger.Warn("AI summary failed, using fallback",
			logger.String("title", title), logger.Error(err))
		return fallbackSummary(title, content)
	}

	summary, err := s.parse(raw, title)
	if err != nil {
		s.logger.Warn("AI summary rejected, using fallback",
			logger.String("title", title), logger.Error(err))
		return fallbackSummary(title, content)
	}
	return summary
}

// parse 解析并校验模型输出
func (s *Summarizer) parse(raw, originalTitle string) (model.AISummary, error) {
	raw = stripCodeFence(raw)
	if raw == "" {
		return model.AISummary{}, fmt.Errorf("%w: empty reply", ErrModel)
	}

	var reply summaryReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return model.AISummary{}, fmt.Errorf("%w: invalid json: %v", ErrModel, err)
	}

	reply.Title = strings.TrimSpace(reply.Title)
	reply.Summary = strings.TrimSpace(reply.Summary)
	if err := s.validate.Struct(reply); err != nil {
		return model.AISummary{}, fmt.Errorf("%w: schema: %v", ErrModel, err)
	}

	result := model.AISummary{
		Title:   reply.Title,
		Summary: reply.Summary,
		Tags:    normalizeTags(reply.Tags),
	}
	if result.Title == "" {
		result.Title = originalTitle
	}
	return result, nil
}

// normalizeTags 丢弃空白/过长的标签,最多保留两个
func normalizeTags(tags []string) []string {
	out := make([]string, 0, maxTags)
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || len([]rune(tag)) > maxTagRunes {
			continue
		}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	if len(out) == 0 {
		return []string{model.DefaultTag}
	}
	return out
}

func fallbackSummary(title, content string) model.AISummary {
	return model.AISummary{
		Title:   title,
		Summary: strings.TrimSpace(truncate(content, maxSummaryRunes)),
		Tags:    []string{model.DefaultTag},
	}
}

func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}

// truncate 按字符截断
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
