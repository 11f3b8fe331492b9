package service

import (
	"context"
	"strings"
	"time"

	"potluck/internal/model"
)

const (
	DefaultPageSize      = 50
	MaxPageSize          = 100
	DefaultTimelineLimit = 20
	MaxTimelineLimit     = 50
)

type ArticleReader interface {
	ListArticles(ctx context.Context, offset, limit int) ([]model.Article, error)
	CountArticles(ctx context.Context) (int64, error)
	ArticlesBefore(ctx context.Context, cursor time.Time, limit int) ([]model.Article, error)
}

// Page 分页结果
type Page struct {
	Data       []model.NewsItem `json:"data"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"totalPages"`
}

// Timeline 游标分页结果
type Timeline struct {
	Data       []model.NewsItem `json:"data"`
	NextCursor *string          `json:"nextCursor"`
	HasMore    bool             `json:"hasMore"`
}

// ReaderService 只读查询,与抓取流程无关
type ReaderService struct {
	store ArticleReader
	now   func() time.Time
}

func NewReaderService(store ArticleReader) *ReaderService {
	return &ReaderService{store: store, now: time.Now}
}

// ClampPage page >= 1, limit 限制在 [1, MaxPageSize]
func ClampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// ClampTimelineLimit 0或负数使用默认值,最大 MaxTimelineLimit
func ClampTimelineLimit(limit int) int {
	if limit <= 0 {
		return DefaultTimelineLimit
	}
	if limit > MaxTimelineLimit {
		return MaxTimelineLimit
	}
	return limit
}

// ParseCursor 无法解析时返回 now
func ParseCursor(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return now
}

// Latest 按页码分页
func (s *ReaderService) Latest(ctx context.Context, page, limit int) (*Page, error) {
	page, limit = ClampPage(page, limit)

	total, err := s.store.CountArticles(ctx)
	if err != nil {
		return nil, err
	}

	articles, err := s.store.ListArticles(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	return &Page{
		Data:       toNewsItems(articles),
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// Timeline 返回早于 cursor 的文章,多取一条判断是否还有更多
func (s *ReaderService) Timeline(ctx context.Context, rawCursor string, limit int) (*Timeline, error) {
	limit = ClampTimelineLimit(limit)
	cursor := ParseCursor(rawCursor, s.now())

	articles, err := s.store.ArticlesBefore(ctx, cursor, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(articles) > limit
	if hasMore {
		articles = articles[:limit]
	}

	result := &Timeline{Data: toNewsItems(articles), HasMore: hasMore}
	if len(result.Data) > 0 {
		next := result.Data[len(result.Data)-1].PublishedAt
		result.NextCursor = &next
	}
	return result, nil
}

func toNewsItems(articles []model.Article) []model.NewsItem {
	items := make([]model.NewsItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, a.ToNewsItem())
	}
	return items
}
