// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, company, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeInvalidMethod   = "INVALID_CHECK_METHOD"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeCompanyNotFound = "COMPANY_NOT_FOUND"
	ErrCodeCompanyLimit    = "COMPANY_LIMIT"
)

// NewValidationError は必須項目の欠落などの入力検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s が不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewInvalidCheckMethodError は未知のチェック方式が指定された場合のエラーを生成する。
func NewInvalidCheckMethodError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMethod,
		Message:  fmt.Sprintf("無効なチェック方式です: %s", method),
		Category: "validation",
		Action:   "チェック方式には feed（rss）または scrape を指定してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているステータスページのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewCompanyNotFoundError は企業が見つからない場合のエラーを生成する。
// 他ユーザーが所有する企業も同じエラーとして扱う。
func NewCompanyNotFoundError(companyID string) *APIError {
	return &APIError{
		Code:     ErrCodeCompanyNotFound,
		Message:  fmt.Sprintf("指定された企業が見つかりません: %s", companyID),
		Category: "company",
		Action:   "企業IDを確認してください。",
	}
}

// NewCompanyLimitError は登録上限エラーを生成する。
func NewCompanyLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeCompanyLimit,
		Message:  fmt.Sprintf("登録できる企業数が上限（%d件）に達しています。", limit),
		Category: "company",
		Action:   "不要な企業を削除してから、新しい企業を登録してください。",
	}
}

// FetchErrorKind はステータスページ取得失敗の種別。
type FetchErrorKind string

const (
	// FetchErrorNetwork は到達不能・タイムアウト・非2xx応答。
	FetchErrorNetwork FetchErrorKind = "network"
	// FetchErrorParse はフィード/HTMLとして解析できないペイロード。
	FetchErrorParse FetchErrorKind = "parse"
)

// FetchError はFeedFetcher / PageScraperが返す型付きの失敗。
// 呼び出し側は種別に関わらず同じ縮退処理を行う。
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s): %v", e.URL, e.Kind, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewNetworkError はネットワーク種別のFetchErrorを生成する。
func NewNetworkError(url string, err error) *FetchError {
	return &FetchError{Kind: FetchErrorNetwork, URL: url, Err: err}
}

// NewParseError はパース種別のFetchErrorを生成する。
func NewParseError(url string, err error) *FetchError {
	return &FetchError{Kind: FetchErrorParse, URL: url, Err: err}
}
