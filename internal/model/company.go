// Package model はドメインモデルを定義する。
package model

import "time"

// CompanyStatus は監視対象企業の集約ヘルス状態を表す。
// JSONでは文字列リテラル（up / partially_down / fully_down）として表現する。
type CompanyStatus string

const (
	// StatusUp は正常稼働。
	StatusUp CompanyStatus = "up"
	// StatusPartiallyDown は一部障害、または状態を判定できなかった場合の縮退状態。
	StatusPartiallyDown CompanyStatus = "partially_down"
	// StatusFullyDown は全面障害。
	StatusFullyDown CompanyStatus = "fully_down"
)

// Valid は定義済みのステータス値かを返す。
func (s CompanyStatus) Valid() bool {
	switch s {
	case StatusUp, StatusPartiallyDown, StatusFullyDown:
		return true
	}
	return false
}

// CheckMethod はステータスページの取得方式を表す。作成時に固定される。
type CheckMethod string

const (
	// CheckMethodFeed はRSS/Atomフィードを取得する方式。
	CheckMethodFeed CheckMethod = "feed"
	// CheckMethodScrape はHTMLページの本文テキストを走査する方式。
	CheckMethodScrape CheckMethod = "scrape"
)

// ParseCheckMethod は入力文字列をCheckMethodに変換する。
// 旧フロントエンドの "rss" は feed の別名として受け付ける。
func ParseCheckMethod(s string) (CheckMethod, bool) {
	switch s {
	case "feed", "rss":
		return CheckMethodFeed, true
	case "scrape":
		return CheckMethodScrape, true
	}
	return "", false
}

// Incident はステータスページから抽出した直近のインシデント記述子。
type Incident struct {
	Title      string
	Summary    string // 最大200文字
	OccurredAt *time.Time
}

// Company は監視対象の企業を表す。
type Company struct {
	ID             string
	OwnerID        string
	Name           string
	StatusPageURL  string
	CheckMethod    CheckMethod
	Status         CompanyStatus
	LastCheckedAt  *time.Time
	LatestIncident *Incident
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CompanyHistory はステータスチェック1回分の追記専用ログ。
// 作成後に更新・削除されることはない（企業削除時のCASCADEを除く）。
type CompanyHistory struct {
	ID        string
	CompanyID string
	Status    CompanyStatus
	Incident  *Incident
	CreatedAt time.Time
}
