package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidURL = errors.New("invalid feed URL")

var (
	blockedHosts        = []string{"localhost", "127.0.0.1", "0.0.0.0"}
	blockedHostPrefixes = []string{"192.168.", "10.", "172."}
	blockedHostSuffixes = []string{".local", ".internal"}
)

// ValidateFeedURL 只允许 http/https,拒绝本机及内网地址
// 按字面前缀匹配,不解析DNS
func ValidateFeedURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	for _, h := range blockedHosts {
		if host == h {
			return fmt.Errorf("%w: host %s not allowed", ErrInvalidURL, host)
		}
	}
	for _, p := range blockedHostPrefixes {
		if strings.HasPrefix(host, p) {
			return fmt.Errorf("%w: private host %s not allowed", ErrInvalidURL, host)
		}
	}
	for _, s := range blockedHostSuffixes {
		if strings.HasSuffix(host, s) {
			return fmt.Errorf("%w: internal host %s not allowed", ErrInvalidURL, host)
		}
	}
	return nil
}

// IsSafeFeedURL ValidateFeedURL 的布尔形式
func IsSafeFeedURL(raw string) bool {
	return ValidateFeedURL(raw) == nil
}
