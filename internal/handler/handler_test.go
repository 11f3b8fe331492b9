package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potluck/internal/logger"
	"potluck/internal/model"
	"potluck/internal/ratelimit"
	"potluck/internal/service"
	"potluck/internal/store"
)

type fakeIngestor struct {
	calls int
	stats *model.IngestionStats
	err   error
}

func (f *fakeIngestor) Run(context.Context) (*model.IngestionStats, error) {
	f.calls++
	return f.stats, f.err
}

type fixedScheduler time.Time

func (s fixedScheduler) GetNextIngestTime() time.Time { return time.Time(s) }

type testEnv struct {
	router *gin.Engine
	ingest *fakeIngestor
	store  *store.Store
}

func newTestEnv(t *testing.T, apiKey string, rateMax int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ing := &fakeIngestor{stats: &model.IngestionStats{Processed: 1, Added: 1, ErrorDetails: []string{}}}
	h := NewHandler(Options{
		Ingest:      ing,
		Reader:      service.NewReaderService(s),
		Status:      service.NewStatusService(s),
		Limiter:     ratelimit.New(time.Minute, rateMax),
		APIKey:      apiKey,
		CacheMaxAge: 5 * time.Minute,
		Logger:      logger.NewNop(),
	})

	r, err := NewRouter(h, nil)
	require.NoError(t, err)
	return &testEnv{router: r, ingest: ing, store: s}
}

func (e *testEnv) do(method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T, n int) {
	t.Helper()
	newest := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		a := model.Article{
			Title:       fmt.Sprintf("article %d", i),
			URL:         fmt.Sprintf("https://example.com/%d", i),
			Source:      "Example",
			PublishedAt: newest.Add(-time.Duration(i) * time.Minute),
		}
		require.NoError(t, e.store.InsertArticle(context.Background(), &a))
	}
}

func TestIngest_RejectsMissingOrWrongToken(t *testing.T) {
	env := newTestEnv(t, "secret", 10)

	w := env.do(http.MethodPost, "/api/ingest", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, "/api/ingest", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthorized")
	assert.Equal(t, 0, env.ingest.calls)
}

func TestIngest_Authorized(t *testing.T) {
	env := newTestEnv(t, "secret", 10)

	w := env.do(http.MethodPost, "/api/ingest", "secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.ingest.calls)

	var stats model.IngestionStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Added)
}

func TestIngest_NoSecretRunsUnprotected(t *testing.T) {
	env := newTestEnv(t, "", 10)

	w := env.do(http.MethodPost, "/api/ingest", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.ingest.calls)
}

func TestIngest_RateLimited(t *testing.T) {
	env := newTestEnv(t, "secret", 2)

	assert.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/ingest", "secret").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/ingest", "bad").Code)

	w := env.do(http.MethodPost, "/api/ingest", "secret")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 1, env.ingest.calls)
}

func postIngestFrom(r *gin.Engine, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil)
	req.RemoteAddr = remoteAddr
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestIngest_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	env := newTestEnv(t, "secret", 5)

	for i := 0; i < 5; i++ {
		code := postIngestFrom(env.router, "203.0.113.9:40000", fmt.Sprintf("198.51.100.%d", i))
		assert.Equal(t, http.StatusOK, code)
	}
	code := postIngestFrom(env.router, "203.0.113.9:40001", "198.51.100.99")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, 5, env.ingest.calls)
}

func TestIngest_RateLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ing := &fakeIngestor{stats: &model.IngestionStats{ErrorDetails: []string{}}}
	h := NewHandler(Options{
		Ingest:  ing,
		Limiter: ratelimit.New(time.Minute, 1),
		APIKey:  "secret",
		Logger:  logger.NewNop(),
	})
	r, err := NewRouter(h, []string{"10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, postIngestFrom(r, "10.0.0.1:5000", "198.51.100.1"))
	assert.Equal(t, http.StatusOK, postIngestFrom(r, "10.0.0.1:5000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, postIngestFrom(r, "10.0.0.1:5000", "198.51.100.1"))
}

func TestNewRouter_InvalidTrustedProxy(t *testing.T) {
	h := NewHandler(Options{Limiter: ratelimit.New(time.Minute, 1), Logger: logger.NewNop()})
	_, err := NewRouter(h, []string{"not-an-ip"})
	assert.Error(t, err)
}

func TestIngest_StorageFailureReturns500WithStats(t *testing.T) {
	env := newTestEnv(t, "secret", 10)
	env.ingest.err = errors.New("storage unavailable")
	env.ingest.stats = &model.IngestionStats{Processed: 2, Added: 1, ErrorDetails: []string{}}

	w := env.do(http.MethodPost, "/api/ingest", "secret")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Error string               `json:"error"`
		Stats model.IngestionStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
	assert.Equal(t, 2, body.Stats.Processed)
}

func TestLatest_DefaultsAndCacheHeader(t *testing.T) {
	env := newTestEnv(t, "", 10)
	env.seed(t, 3)

	w := env.do(http.MethodGet, "/api/latest", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=300, s-maxage=300", w.Header().Get("Cache-Control"))

	var page service.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, service.DefaultPageSize, page.Limit)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "article 0", page.Data[0].Title)
	assert.Equal(t, model.DefaultTag, page.Data[0].Tag)
}

func TestLatest_ClampsParams(t *testing.T) {
	env := newTestEnv(t, "", 10)
	env.seed(t, 3)

	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"?page=0&limit=0", 1, 1},
		{"?page=-2&limit=500", 1, service.MaxPageSize},
		{"?page=abc&limit=xyz", 1, service.DefaultPageSize},
		{"?page=2&limit=2", 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/latest"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			var page service.Page
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantLimit, page.Limit)
		})
	}
}

func TestTimeline_FollowsCursor(t *testing.T) {
	env := newTestEnv(t, "", 10)
	env.seed(t, 3)

	w := env.do(http.MethodGet, "/api/timeline?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Cache-Control"))

	var first service.Timeline
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Len(t, first.Data, 2)
	assert.True(t, first.HasMore)
	require.NotNil(t, first.NextCursor)

	req := httptest.NewRequest(http.MethodGet, "/api/timeline?limit=2", nil)
	q := req.URL.Query()
	q.Set("cursor", *first.NextCursor)
	req.URL.RawQuery = q.Encode()
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var second service.Timeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Data, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "article 2", second.Data[0].Title)
}

func TestReaders_StorageErrorNoCache(t *testing.T) {
	env := newTestEnv(t, "", 10)
	require.NoError(t, env.store.Close())

	for _, target := range []string{"/api/latest", "/api/timeline", "/api/status"} {
		w := env.do(http.MethodGet, target, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code, target)
		assert.Empty(t, w.Header().Get("Cache-Control"), target)
	}
}

func TestStatus_IncludesNextIngestTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.CreateFeed(context.Background(), &model.Feed{URL: "https://example.com/rss", Name: "Example", IsActive: true}))

	h := NewHandler(Options{
		Status:  service.NewStatusService(s),
		Limiter: ratelimit.New(time.Minute, 5),
		Logger:  logger.NewNop(),
	})
	next := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	h.SetScheduler(fixedScheduler(next))
	r, err := NewRouter(h, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status service.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.EqualValues(t, 1, status.TotalFeeds)
	assert.EqualValues(t, 1, status.ActiveFeeds)
	require.NotNil(t, status.NextIngestTime)
	assert.True(t, status.NextIngestTime.Equal(next))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "", 10)
	w := env.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
