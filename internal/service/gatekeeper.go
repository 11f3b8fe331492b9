package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"potluck/internal/logger"
)

const maxReasonRunes = 200

const filterPrompt = `You are a news filter. Decide whether this article is worth reading.
Only significant tech news and industry developments are worth reading.
Ads, job postings and low-value content are not.
Title: %s
Content: %s...

Output valid JSON only:
{"worth": true or false, "reason": "short reason, < 200 chars"}`

// FilterResult 筛选结果
type FilterResult struct {
	Worth  bool
	Reason string
}

// filterReply 模型返回的JSON结构
type filterReply struct {
	Worth  *bool  `json:"worth" validate:"required"`
	Reason string `json:"reason" validate:"max=200"`
}

// Gatekeeper 入库前由模型判断文章是否值得保留
// 模型不可用或输出不合法时放行
type Gatekeeper struct {
	client   ChatClient
	logger   logger.Logger
	validate *validator.Validate
}

func NewGatekeeper(client ChatClient, log logger.Logger) *Gatekeeper {
	return &Gatekeeper{
		client:   client,
		logger:   log,
		validate: validator.New(),
	}
}

// Review 筛选单篇文章
func (g *Gatekeeper) Review(ctx context.Context, title, content string) FilterResult {
	if g.client == nil {
		return FilterResult{Worth: true}
	}

	content = truncate(content, maxContentRunes)
	raw, err := g.client.Complete(ctx, fmt.Sprintf(filterPrompt, title, content))
	if err != nil {
		g.logger.Warn("AI filter failed, keeping article",
			logger.String("title", title), logger.Error(err))
		return FilterResult{Worth: true}
	}

	result, err := g.parse(raw)
	if err != nil {
		g.logger.Warn("AI filter rejected, keeping article",
			logger.String("title", title), logger.Error(err))
		return FilterResult{Worth: true}
	}
	return result
}

func (g *Gatekeeper) parse(raw string) (FilterResult, error) {
	raw = stripCodeFence(raw)
	if raw == "" {
		return FilterResult{}, fmt.Errorf("%w: empty reply", ErrModel)
	}

	var reply filterReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return FilterResult{}, fmt.Errorf("%w: invalid json: %v", ErrModel, err)
	}

	reply.Reason = strings.TrimSpace(reply.Reason)
	if err := g.validate.Struct(reply); err != nil {
		return FilterResult{}, fmt.Errorf("%w: schema: %v", ErrModel, err)
	}
	return FilterResult{Worth: *reply.Worth, Reason: reply.Reason}, nil
}
