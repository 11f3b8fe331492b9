package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteSnapshot 将最新的 n 篇文章写成静态JSON
func WriteSnapshot(ctx context.Context, reader *ReaderService, path string, n int) (int, error) {
	page, err := reader.Latest(ctx, 1, n)
	if err != nil {
		return 0, err
	}

	data, err := json.MarshalIndent(page.Data, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create snapshot dir: %w", err)
	}

	// 先写临时文件再rename
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("rename snapshot: %w", err)
	}
	return len(page.Data), nil
}
