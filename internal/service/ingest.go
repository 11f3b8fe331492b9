package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"potluck/internal/logger"
	"potluck/internal/metrics"
	"potluck/internal/model"
	"potluck/internal/store"
)

type FeedSource interface {
	ActiveFeeds(ctx context.Context) ([]model.Feed, error)
}

type ArticleStore interface {
	ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	InsertArticle(ctx context.Context, article *model.Article) error
}

type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]model.RawItem, error)
}

type ArticleSummarizer interface {
	Summarize(ctx context.Context, title, content string) model.AISummary
}

type ArticleGatekeeper interface {
	Review(ctx context.Context, title, content string) FilterResult
}

// outcomeKind 单个Feed的处理结果
type outcomeKind int

const (
	outcomeInserted outcomeKind = iota
	outcomeSkipped
	outcomeFailed
)

type feedOutcome struct {
	kind     outcomeKind
	added    int
	skipped  int
	filtered int
	reason   string
}

// IngestService 抓取流程编排: 校验 -> 抓取 -> 去重 -> 筛选 -> 摘要 -> 入库
type IngestService struct {
	feeds      FeedSource
	articles   ArticleStore
	fetcher    Fetcher
	summarizer ArticleSummarizer
	gatekeeper ArticleGatekeeper
	logger     logger.Logger
	metrics    *metrics.Ingest
	maxItems   int
	now        func() time.Time
	group      singleflight.Group
}

type IngestOption func(*IngestService)

func WithMetrics(m *metrics.Ingest) IngestOption {
	return func(s *IngestService) { s.metrics = m }
}

// WithGatekeeper 摘要前先筛选, 不设置时全部保留
func WithGatekeeper(g ArticleGatekeeper) IngestOption {
	return func(s *IngestService) { s.gatekeeper = g }
}

func WithMaxItems(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.maxItems = n
		}
	}
}

func WithClock(now func() time.Time) IngestOption {
	return func(s *IngestService) { s.now = now }
}

func NewIngestService(feeds FeedSource, articles ArticleStore, fetcher Fetcher,
	summarizer ArticleSummarizer, log logger.Logger, opts ...IngestOption) *IngestService {
	s := &IngestService{
		feeds:      feeds,
		articles:   articles,
		fetcher:    fetcher,
		summarizer: summarizer,
		logger:     log,
		maxItems:   5,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 执行一次完整抓取
// 并发触发时合并为同一次运行,后来者拿到相同的统计结果
func (s *IngestService) Run(ctx context.Context) (*model.IngestionStats, error) {
	v, err, shared := s.group.Do("ingestion", func() (any, error) {
		return s.run(context.WithoutCancel(ctx))
	})
	if shared {
		s.logger.Info("Joined in-flight ingestion run")
	}

	stats, _ := v.(*model.IngestionStats)
	if stats == nil {
		stats = &model.IngestionStats{ErrorDetails: []string{}}
	}
	copied := *stats
	copied.ErrorDetails = append([]string{}, stats.ErrorDetails...)
	return &copied, err
}

func (s *IngestService) run(ctx context.Context) (*model.IngestionStats, error) {
	start := time.Now()
	stats := &model.IngestionStats{ErrorDetails: []string{}}

	feeds, err := s.feeds.ActiveFeeds(ctx)
	if err != nil {
		s.metrics.ObserveRun(0, 0, 0, 0, time.Since(start), err)
		return stats, fmt.Errorf("load active feeds: %w", err)
	}
	if len(feeds) == 0 {
		s.logger.Info("No active feeds")
	}

	for _, feed := range feeds {
		outcome, err := s.processFeed(ctx, feed)
		s.fold(stats, outcome)
		if err != nil {
			s.logger.Error("Ingestion aborted", logger.String("feed", feed.Name), logger.Error(err))
			s.metrics.ObserveRun(stats.Added, stats.Skipped, stats.Filtered, stats.Errors, time.Since(start), err)
			return stats, err
		}
	}

	s.logger.Info("Ingestion finished",
		logger.Int("processed", stats.Processed),
		logger.Int("added", stats.Added),
		logger.Int("skipped", stats.Skipped),
		logger.Int("filtered", stats.Filtered),
		logger.Int("errors", stats.Errors),
		logger.Duration("elapsed", time.Since(start)))
	s.metrics.ObserveRun(stats.Added, stats.Skipped, stats.Filtered, stats.Errors, time.Since(start), nil)
	return stats, nil
}

func (s *IngestService) fold(stats *model.IngestionStats, o feedOutcome) {
	stats.Added += o.added
	stats.Skipped += o.skipped
	stats.Filtered += o.filtered
	if o.kind == outcomeFailed {
		stats.Errors++
		stats.ErrorDetails = append(stats.ErrorDetails, o.reason)
		return
	}
	stats.Processed++
}

// processFeed 处理单个Feed;返回的 error 只用于存储不可用这类致命错误
func (s *IngestService) processFeed(ctx context.Context, feed model.Feed) (feedOutcome, error) {
	log := s.logger.With(logger.String("feed", feed.Name), logger.String("url", feed.URL))

	failed := func(err error) feedOutcome {
		log.Warn("Feed failed", logger.Error(err))
		return feedOutcome{kind: outcomeFailed, reason: fmt.Sprintf("%s: %v", feed.Name, err)}
	}

	if err := ValidateFeedURL(feed.URL); err != nil {
		return failed(err), nil
	}

	items, err := s.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return failed(err), nil
	}

	candidates := s.candidates(items)
	if len(candidates) == 0 {
		return feedOutcome{kind: outcomeSkipped}, nil
	}

	urls := make([]string, 0, len(candidates))
	for _, item := range candidates {
		urls = append(urls, item.Link)
	}
	existing, err := s.articles.ExistingURLs(ctx, urls)
	if err != nil {
		return failed(err), fmt.Errorf("deduplicate %s: %w", feed.Name, err)
	}

	outcome := feedOutcome{kind: outcomeSkipped}
	for _, item := range candidates {
		if _, ok := existing[item.Link]; ok {
			outcome.skipped++
			continue
		}

		if s.gatekeeper != nil {
			if verdict := s.gatekeeper.Review(ctx, item.Title, item.Content); !verdict.Worth {
				outcome.filtered++
				log.Debug("Article filtered", logger.String("article", item.Link), logger.String("reason", verdict.Reason))
				continue
			}
		}

		article := s.buildArticle(ctx, feed, item)
		err := s.articles.InsertArticle(ctx, article)
		switch {
		case errors.Is(err, store.ErrDuplicate):
			outcome.skipped++
		case err != nil:
			f := failed(fmt.Errorf("insert %s: %w", item.Link, err))
			f.added, f.skipped, f.filtered = outcome.added, outcome.skipped, outcome.filtered
			return f, nil
		default:
			outcome.added++
			outcome.kind = outcomeInserted
			log.Debug("Article added", logger.String("article", item.Link))
		}
	}
	return outcome, nil
}

// candidates 取前 maxItems 条同时有标题和链接的条目
func (s *IngestService) candidates(items []model.RawItem) []model.RawItem {
	out := make([]model.RawItem, 0, s.maxItems)
	for _, item := range items {
		if item.Title == "" || item.Link == "" {
			continue
		}
		out = append(out, item)
		if len(out) == s.maxItems {
			break
		}
	}
	return out
}

func (s *IngestService) buildArticle(ctx context.Context, feed model.Feed, item model.RawItem) *model.Article {
	ai := s.summarizer.Summarize(ctx, item.Title, item.Content)

	published := s.now()
	if item.Published != nil {
		published = *item.Published
	}

	feedID := feed.ID
	article := &model.Article{
		FeedID:      &feedID,
		Title:       ai.Title,
		URL:         item.Link,
		Tags:        ai.Tags,
		Source:      feed.Name,
		PublishedAt: published.UTC(),
	}
	if article.Title == "" {
		article.Title = item.Title
	}
	if ai.Summary != "" {
		summary := ai.Summary
		article.Summary = &summary
	}
	return article
}
