// Package model はドメインモデルを定義する。
package model

import "time"

// FeedItem はステータスページのフィードから取得した1件のエントリ。
// 各フィールドは欠落し得るため、空文字列 / nil を許容する。
type FeedItem struct {
	Title       string
	BodyText    string // 未加工のコンテンツ（マークアップを含み得る）
	Snippet     string // マークアップを除去した要約
	PublishedAt *time.Time
}
