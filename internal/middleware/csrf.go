package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookie。フロントエンドが読み取れるようHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	// csrfHeaderName は状態変更リクエストでトークンを送り返すヘッダー。
	csrfHeaderName = "X-CSRF-Token"
	csrfTokenBytes = 32
	csrfCookieTTL  = 86400
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はダブルサブミットCookie方式のCSRF対策ミドルウェアを返す。
// 安全なメソッドではトークンCookieを発行し、状態変更メソッドではCookieとヘッダーの一致を要求する。
func NewCSRFMiddleware(config CSRFConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				if c, err := r.Cookie(csrfCookieName); err != nil || c.Value == "" {
					if err := setCSRFCookie(w, config); err != nil {
						logger.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := csrfMismatch(r); reason != "" {
				logger.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteForbidden(w, "CSRFトークンの検証に失敗しました。")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// csrfMismatch は検証失敗の理由を返す。検証に成功した場合は空文字列。
func csrfMismatch(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "missing cookie token"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "missing header token"
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return "token mismatch"
	}
	return ""
}

func setCSRFCookie(w http.ResponseWriter, config CSRFConfig) error {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    hex.EncodeToString(b),
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieTTL,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
