// Package check はステータスページの取得と状態判定を提供する。
// FeedFetcher / PageScraper が取得を、Classify が純粋関数としての判定を担う。
package check

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/statuswatch/internal/model"
)

const (
	userAgent = "StatusWatch/1.0 (+status page monitor)"

	// DefaultTimeout は1回の取得に許す最大時間。
	DefaultTimeout = 12 * time.Second
	// DefaultMaxBodySize はレスポンスボディの最大読み取りサイズ（5MB）。
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardが満たす。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// fetchBody はURLをGETし、2xxの場合のみボディを返す。
// 失敗はすべて FetchErrorNetwork として返す（タイムアウトを含む）。
func fetchBody(ctx context.Context, guard SSRFValidator, rawURL, accept string, timeout time.Duration, maxBodySize int64) ([]byte, string, error) {
	if guard != nil {
		if err := guard.ValidateURL(rawURL); err != nil {
			return nil, "", model.NewNetworkError(rawURL, fmt.Errorf("SSRF検証に失敗: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", model.NewNetworkError(rawURL, fmt.Errorf("リクエスト作成に失敗: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	client := newClient(guard, timeout, maxBodySize)
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", model.NewNetworkError(rawURL, fmt.Errorf("HTTPリクエスト失敗: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", model.NewNetworkError(rawURL, fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", model.NewNetworkError(rawURL, fmt.Errorf("レスポンス読み取り失敗: %w", err))
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// newClient はSSRFGuardが設定されていればSSRF防止付きクライアントを返す。
func newClient(guard SSRFValidator, timeout time.Duration, maxBodySize int64) *http.Client {
	if guard != nil {
		return guard.NewSafeClient(timeout, maxBodySize)
	}
	return &http.Client{Timeout: timeout}
}
