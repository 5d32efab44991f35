// Package model はドメインモデルを定義する。
package model

import "time"

// Session は外部の認証サービスが発行したログインセッションを表す。
// 本サービスはセッションの検証のみを行い、発行・失効は行わない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
