package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"potluck/internal/logger"
	"potluck/internal/model"
	"potluck/internal/ratelimit"
	"potluck/internal/service"
)

type Ingestor interface {
	Run(ctx context.Context) (*model.IngestionStats, error)
}

type Handler struct {
	ingest      Ingestor
	reader      *service.ReaderService
	status      *service.StatusService
	limiter     *ratelimit.Limiter
	apiKey      string
	cacheMaxAge time.Duration
	logger      logger.Logger
	scheduler   interface {
		GetNextIngestTime() time.Time
	}
}

type Options struct {
	Ingest      Ingestor
	Reader      *service.ReaderService
	Status      *service.StatusService
	Limiter     *ratelimit.Limiter
	APIKey      string
	CacheMaxAge time.Duration
	Logger      logger.Logger
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		ingest:      opts.Ingest,
		reader:      opts.Reader,
		status:      opts.Status,
		limiter:     opts.Limiter,
		apiKey:      opts.APIKey,
		cacheMaxAge: opts.CacheMaxAge,
		logger:      opts.Logger,
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	GetNextIngestTime() time.Time
}) {
	h.scheduler = scheduler
}

// NewRouter 创建gin引擎并注册路由
// trustedProxies 为空时 ClientIP 只取连接地址,忽略 X-Forwarded-For
func NewRouter(h *Handler, trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), RequestLogger(h.logger))
	h.RegisterRoutes(r)
	return r, nil
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		// Ingest
		api.POST("/ingest", h.limiter.Middleware(h.logger), BearerAuth(h.apiKey, h.logger), h.Ingest)

		// Articles
		api.GET("/latest", h.Latest)
		api.GET("/timeline", h.Timeline)

		// Status
		api.GET("/status", h.GetStatus)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ===== Ingest =====

// Ingest 触发一次抓取,返回统计
func (h *Handler) Ingest(c *gin.Context) {
	stats, err := h.ingest.Run(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Ingestion aborted: storage unavailable",
			"stats": stats,
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ===== Articles =====

// Latest 页码分页
func (h *Handler) Latest(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", service.DefaultPageSize)

	result, err := h.reader.Latest(c.Request.Context(), page, limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch articles"})
		return
	}

	h.setCache(c)
	c.JSON(http.StatusOK, result)
}

// Timeline 游标分页
func (h *Handler) Timeline(c *gin.Context) {
	limit := queryInt(c, "limit", service.DefaultTimelineLimit)

	result, err := h.reader.Timeline(c.Request.Context(), c.Query("cursor"), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch timeline"})
		return
	}

	h.setCache(c)
	c.JSON(http.StatusOK, result)
}

// ===== Status =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load status"})
		return
	}

	// 添加定时任务信息
	if h.scheduler != nil {
		if next := h.scheduler.GetNextIngestTime(); !next.IsZero() {
			status.NextIngestTime = &next
		}
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) setCache(c *gin.Context) {
	if h.cacheMaxAge <= 0 {
		return
	}
	secs := int(h.cacheMaxAge.Seconds())
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d, s-maxage=%d", secs, secs))
}

// queryInt 参数缺失或无法解析时返回默认值
func queryInt(c *gin.Context, key string, def int) int {
	raw, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
