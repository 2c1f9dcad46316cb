// Package remote はjson-server互換のREST APIに対するクライアントを提供する。
// コレクション単位のCRUD（一覧・取得・作成・部分更新・削除）を汎用クライアントで扱い、
// お気に入り・ユーザーの各リソースはその上に型付きで実装する。
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/jobfinder/internal/model"
)

const (
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（5MB）。
	maxResponseSize = 5 << 20
	// maxErrorBodySize はエラー時にログへ残すボディの最大サイズ。
	maxErrorBodySize = 512
	// requestIDHeader はリクエスト追跡用のヘッダー名。
	requestIDHeader = "X-Request-ID"
)

// RequestRecorder はリモートリクエストの計測インターフェース。
// metrics.Collectorが実装する。
type RequestRecorder interface {
	RecordRemoteRequest(method string, statusCode int, duration time.Duration)
}

// Client はjson-server互換APIの汎用クライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	limiter    *rate.Limiter
	recorder   RequestRecorder
	retry      retryPolicy
}

// Option はClientの任意設定。
type Option func(*Client)

// WithRateLimit はクライアント側のリクエスト流量を制限する。
// rpsが0以下の場合は制限しない。
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRecorder はリクエスト計測先を設定する。
func WithRecorder(r RequestRecorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは "http://localhost:3000" のようなAPIのルートURL。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Inf, 0),
		recorder:   noopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List はコレクションのレコード一覧を取得し、outにデコードする。
// queryはjson-serverのフィールドフィルタ（例: userId=3）としてそのまま送信される。
func (c *Client) List(ctx context.Context, collection string, query url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, collection, query, nil)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Get は指定IDのレコードを取得し、outにデコードする。
func (c *Client) Get(ctx context.Context, collection string, id model.ID, out any) error {
	body, err := c.do(ctx, http.MethodGet, collection+"/"+url.PathEscape(id.String()), nil, nil)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Create はレコードを作成し、サーバーが返したレコード（採番済みID付き）をoutにデコードする。
func (c *Client) Create(ctx context.Context, collection string, in any, out any) error {
	body, err := c.do(ctx, http.MethodPost, collection, nil, in)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Patch は指定IDのレコードを部分更新し、更新後のレコードをoutにデコードする。
func (c *Client) Patch(ctx context.Context, collection string, id model.ID, in any, out any) error {
	body, err := c.do(ctx, http.MethodPatch, collection+"/"+url.PathEscape(id.String()), nil, in)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Delete は指定IDのレコードを削除する。レスポンスボディは読み捨てる。
func (c *Client) Delete(ctx context.Context, collection string, id model.ID) error {
	_, err := c.do(ctx, http.MethodDelete, collection+"/"+url.PathEscape(id.String()), nil, nil)
	return err
}

// do はHTTPリクエストを実行し、2xxの場合はレスポンスボディを返す。
// 通信失敗はNETWORK_ERROR、2xx以外はREMOTE_STATUSのAPIErrorとして返す。
// GETはWithRetryの設定に従って再試行する。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	return c.doWithRetry(ctx, method, path, func() ([]byte, error) {
		return c.send(ctx, method, path, query, in)
	})
}

// send は1回分のリクエストを送信する。
func (c *Client) send(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + "/" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.RecordRemoteRequest(method, 0, time.Since(start))
		c.logger.Error("リモートAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkError(err)
	}
	defer resp.Body.Close()
	c.recorder.RecordRemoteRequest(method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.logger.Error("リモートAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewRemoteStatusError(resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkError(err)
	}

	c.logger.Debug("リモートAPIを呼び出しました",
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", requestID),
		slog.Int("http_status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return body, nil
}

// decode はレスポンスボディをoutにデコードする。outがnilの場合は何もしない。
func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return model.NewInvalidPayloadError(err.Error())
	}
	return nil
}

type noopRecorder struct{}

func (noopRecorder) RecordRemoteRequest(string, int, time.Duration) {}
