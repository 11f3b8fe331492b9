package model

import "time"

// DefaultTag 模型未给出标签时使用
const DefaultTag = "Tech"

type Article struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	FeedID      *string   `gorm:"size:36;index" json:"feed_id"`
	Title       string    `gorm:"size:500;not null" json:"title"`
	URL         string    `gorm:"size:500;uniqueIndex;not null" json:"url"`
	Summary     *string   `gorm:"type:text" json:"summary"`
	Tags        []string  `gorm:"serializer:json" json:"tags"`
	Source      string    `gorm:"size:255" json:"source"`
	PublishedAt time.Time `gorm:"index;not null" json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewsItem 对外输出的文章格式
type NewsItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Summary     string `json:"summary"`
	Tag         string `json:"tag"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt"`
}

// ToNewsItem 规范化为对外格式
func (a Article) ToNewsItem() NewsItem {
	item := NewsItem{
		Title:       a.Title,
		URL:         a.URL,
		Tag:         DefaultTag,
		Source:      a.Source,
		PublishedAt: a.PublishedAt.UTC().Format(time.RFC3339Nano),
	}
	if a.Summary != nil {
		item.Summary = *a.Summary
	}
	if len(a.Tags) > 0 && a.Tags[0] != "" {
		item.Tag = a.Tags[0]
	}
	if item.Source == "" {
		item.Source = "Unknown"
	}
	return item
}
