package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"potluck/internal/model"
)

const (
	userAgent    = "potluck/1.0 (+https://github.com/potluck)"
	maxFeedBytes = 10 << 20
)

var (
	ErrFetchTimeout = errors.New("feed fetch timeout")
	ErrFetchNetwork = errors.New("feed network error")
	ErrFetchParse   = errors.New("feed parse error")
)

// FetchError 抓取失败,Kind 为上面三种之一
type FetchError struct {
	Kind error
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

type FeedService struct {
	client  *http.Client
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewFeedService(timeout time.Duration) *FeedService {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &FeedService{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				// 跳转目标同样需要通过地址校验
				return ValidateFeedURL(req.URL.String())
			},
		},
		parser:  gofeed.NewParser(),
		timeout: timeout,
	}
}

// Fetch 抓取并解析单个Feed,整个过程受 timeout 限制
func (s *FeedService) Fetch(ctx context.Context, feedURL string) ([]model.RawItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fail := func(kind, err error) error {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = ErrFetchTimeout
		}
		return &FetchError{Kind: kind, URL: feedURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fail(ErrFetchNetwork, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fail(ErrFetchNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fail(ErrFetchNetwork, fmt.Errorf("unexpected status %s", resp.Status))
	}

	parsed, err := s.parser.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fail(ErrFetchParse, err)
	}

	items := make([]model.RawItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		items = append(items, toRawItem(item))
	}
	return items, nil
}

func toRawItem(item *gofeed.Item) model.RawItem {
	raw := model.RawItem{
		Title:     strings.TrimSpace(item.Title),
		Link:      extractLink(item),
		Content:   textSnippet(item.Description),
		Published: parseTime(item),
	}
	if raw.Content == "" {
		raw.Content = textSnippet(item.Content)
	}
	return raw
}

// extractLink 优先Link,GUID看起来是URL时作为兜底
func extractLink(item *gofeed.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	if strings.HasPrefix(item.GUID, "http") {
		return strings.TrimSpace(item.GUID)
	}
	return ""
}

func parseTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

// textSnippet 去掉HTML标签并压缩空白
func textSnippet(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
