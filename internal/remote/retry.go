package remote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jobfinder/internal/model"
)

// StatusClass はHTTPステータスコードに基づく呼び出し結果の分類。
type StatusClass int

const (
	// StatusOK は成功（2xx）。
	StatusOK StatusClass = iota
	// StatusStop は再試行しても結果が変わらないステータス（429以外の4xxなど）。
	StatusStop
	// StatusBackoff は待機後の再試行で回復し得るステータス（429/5xx）。
	StatusBackoff
)

const (
	// defaultInitialBackoff は再試行の初回待機時間。
	defaultInitialBackoff = 200 * time.Millisecond
	// maxBackoff は再試行の最大待機時間。
	maxBackoff = 5 * time.Second
)

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode <= 299:
		return StatusOK
	case statusCode == http.StatusTooManyRequests:
		return StatusBackoff
	case statusCode >= 500:
		return StatusBackoff
	default:
		return StatusStop
	}
}

// retryPolicy は一覧・取得リクエストの再試行方針。
type retryPolicy struct {
	maxRetries int
	initial    time.Duration
}

// WithRetry はGETリクエストが通信失敗または429/5xxで失敗した場合に
// 最大maxRetries回まで指数バックオフで再試行する。
// 作成・更新・削除は重複実行を避けるため再試行しない。
func WithRetry(maxRetries int, initialBackoff time.Duration) Option {
	return func(c *Client) {
		if maxRetries <= 0 {
			return
		}
		if initialBackoff <= 0 {
			initialBackoff = defaultInitialBackoff
		}
		c.retry = retryPolicy{maxRetries: maxRetries, initial: initialBackoff}
	}
}

// CalculateBackoff は再試行回数に基づいて指数バックオフ遅延を計算する。
// 初回initial、2倍ずつ増加、最大5秒。
func CalculateBackoff(initial time.Duration, attempt int) time.Duration {
	delay := initial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// shouldRetry は失敗したリクエストを再試行すべきかを判定する。
func shouldRetry(method string, err error) bool {
	if method != http.MethodGet {
		return false
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case model.ErrCodeNetwork:
		return true
	case model.ErrCodeRemoteStatus:
		return ClassifyHTTPStatus(apiErr.Status) == StatusBackoff
	default:
		return false
	}
}

// doWithRetry はattemptを実行し、再試行方針に従って失敗時に繰り返す。
func (c *Client) doWithRetry(ctx context.Context, method, path string, attempt func() ([]byte, error)) ([]byte, error) {
	for n := 0; ; n++ {
		body, err := attempt()
		if err == nil || n >= c.retry.maxRetries || !shouldRetry(method, err) || ctx.Err() != nil {
			return body, err
		}

		delay := CalculateBackoff(c.retry.initial, n)
		c.logger.Warn("リモートAPIの呼び出しを再試行します",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("retry", n+1),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, err
		case <-timer.C:
		}
	}
}
