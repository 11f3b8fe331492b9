package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"potluck/internal/logger"
)

// pruneThreshold 超过该数量的key时清理过期窗口
const pruneThreshold = 1024

type window struct {
	count   int
	resetAt time.Time
}

// Limiter 固定窗口计数器,状态只在内存中
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	length  time.Duration
	max     int
	now     func() time.Time
}

type Option func(*Limiter)

// WithClock 注入时钟,便于测试
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(length time.Duration, max int, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		length:  length,
		max:     max,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow 判断key在当前窗口内是否还可以请求
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if len(l.windows) >= pruneThreshold {
			l.prune(now)
		}
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.length)}
		return true
	}

	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

func (l *Limiter) prune(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// Middleware 按客户端IP限流,超限返回429
func (l *Limiter) Middleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !l.Allow(ip) {
			log.Warn("Rate limit exceeded", logger.String("client_ip", ip), logger.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
