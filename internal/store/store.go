package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"potluck/internal/model"
)

var (
	ErrStorage   = errors.New("storage error")
	ErrDuplicate = errors.New("article already exists")
	ErrNotFound  = errors.New("record not found")
)

type Store struct {
	db *gorm.DB
}

// Open 打开sqlite数据库并自动迁移
func Open(path string, silent bool) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && !isMemory(path) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	} else {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&model.Feed{}, &model.Article{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file:")
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// ===== Feed =====

// ActiveFeeds 获取所有启用的Feed
func (s *Store) ActiveFeeds(ctx context.Context) ([]model.Feed, error) {
	var feeds []model.Feed
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&feeds).Error
	if err != nil {
		return nil, wrap("query active feeds", err)
	}
	return feeds, nil
}

func (s *Store) CreateFeed(ctx context.Context, feed *model.Feed) error {
	if feed.ID == "" {
		feed.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(feed).Error; err != nil {
		return wrap("create feed", err)
	}
	return nil
}

func (s *Store) ListFeeds(ctx context.Context) ([]model.Feed, error) {
	var feeds []model.Feed
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&feeds).Error; err != nil {
		return nil, wrap("list feeds", err)
	}
	return feeds, nil
}

// SetFeedActive 启用/停用Feed
func (s *Store) SetFeedActive(ctx context.Context, id string, active bool) error {
	result := s.db.WithContext(ctx).
		Model(&model.Feed{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return wrap("update feed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ===== Article =====

// ExistingURLs 一次查询返回已入库的URL集合
func (s *Store) ExistingURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(urls) == 0 {
		return existing, nil
	}

	var found []string
	err := s.db.WithContext(ctx).
		Model(&model.Article{}).
		Where("url IN ?", urls).
		Pluck("url", &found).Error
	if err != nil {
		return nil, wrap("query existing urls", err)
	}
	for _, u := range found {
		existing[u] = struct{}{}
	}
	return existing, nil
}

// InsertArticle 插入文章,URL冲突时返回ErrDuplicate
func (s *Store) InsertArticle(ctx context.Context, article *model.Article) error {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}
	article.PublishedAt = article.PublishedAt.UTC()

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(article)
	if result.Error != nil {
		return wrap("insert article", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// ListArticles 按发布时间倒序分页
func (s *Store) ListArticles(ctx context.Context, offset, limit int) ([]model.Article, error) {
	var articles []model.Article
	err := s.db.WithContext(ctx).
		Order("published_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, wrap("list articles", err)
	}
	return articles, nil
}

func (s *Store) CountArticles(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Article{}).Count(&total).Error; err != nil {
		return 0, wrap("count articles", err)
	}
	return total, nil
}

// ArticlesBefore 返回早于cursor的文章,按发布时间倒序
func (s *Store) ArticlesBefore(ctx context.Context, cursor time.Time, limit int) ([]model.Article, error) {
	var articles []model.Article
	err := s.db.WithContext(ctx).
		Where("published_at < ?", cursor.UTC()).
		Order("published_at DESC").
		Limit(limit).
		Find(&articles).Error
	if err != nil {
		return nil, wrap("query timeline", err)
	}
	return articles, nil
}

// Counts 状态页统计
type Counts struct {
	TotalArticles int64
	TotalFeeds    int64
	ActiveFeeds   int64
	LatestArticle *time.Time
}

func (s *Store) Counts(ctx context.Context) (*Counts, error) {
	c := &Counts{}
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.Article{}).Count(&c.TotalArticles).Error; err != nil {
		return nil, wrap("count articles", err)
	}
	if err := db.Model(&model.Feed{}).Count(&c.TotalFeeds).Error; err != nil {
		return nil, wrap("count feeds", err)
	}
	if err := db.Model(&model.Feed{}).Where("is_active = ?", true).Count(&c.ActiveFeeds).Error; err != nil {
		return nil, wrap("count active feeds", err)
	}

	var latest model.Article
	err := db.Order("published_at DESC").Limit(1).Find(&latest).Error
	if err != nil {
		return nil, wrap("latest article", err)
	}
	if latest.ID != "" {
		c.LatestArticle = &latest.PublishedAt
	}
	return c, nil
}
