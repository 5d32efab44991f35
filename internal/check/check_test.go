package check

import (
	"net/http"
	"time"
)

// mockSSRFGuard はSSRFValidatorのテスト用モック。
// httptestサーバー（127.0.0.1）に接続できるよう通常のクライアントを返す。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return m.validateErr
}

// stubSanitizer はタグを除去しない単純なPlainTexter。
type stubSanitizer struct{}

func (stubSanitizer) PlainText(s string) string {
	return "plain:" + s
}
