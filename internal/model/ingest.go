package model

import "time"

// IngestionStats 单次抓取统计
type IngestionStats struct {
	Processed    int      `json:"processed"`
	Added        int      `json:"added"`
	Skipped      int      `json:"skipped"`
	Filtered     int      `json:"filtered"`
	Errors       int      `json:"errors"`
	ErrorDetails []string `json:"errorDetails"`
}

// AISummary 模型生成的摘要
type AISummary struct {
	Title   string   `json:"title,omitempty"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// RawItem 从订阅源解析出的原始条目
type RawItem struct {
	Title     string
	Link      string
	Content   string
	Published *time.Time
}
