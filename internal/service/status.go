package service

import (
	"context"
	"time"

	"potluck/internal/store"
)

type CountsSource interface {
	Counts(ctx context.Context) (*store.Counts, error)
}

type StatusService struct {
	store CountsSource
}

type SystemStatus struct {
	// 文章统计
	TotalArticles int64      `json:"total_articles"`
	LatestArticle *time.Time `json:"latest_article,omitempty"`

	// 订阅源统计
	TotalFeeds  int64 `json:"total_feeds"`
	ActiveFeeds int64 `json:"active_feeds"`

	// 定时任务信息
	NextIngestTime *time.Time `json:"next_ingest_time,omitempty"`
}

func NewStatusService(s CountsSource) *StatusService {
	return &StatusService{store: s}
}

// GetSystemStatus 获取系统状态
func (s *StatusService) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &SystemStatus{
		TotalArticles: counts.TotalArticles,
		LatestArticle: counts.LatestArticle,
		TotalFeeds:    counts.TotalFeeds,
		ActiveFeeds:   counts.ActiveFeeds,
	}, nil
}
