// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/statuswatch/internal/model"
)

// CompanyRepository は監視対象企業の永続化インターフェース。
type CompanyRepository interface {
	// FindByID は指定IDの企業を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Company, error)

	// FindByOwnerAndID は所有者が一致する場合のみ企業を返す。見つからない場合はnilを返す。
	FindByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Company, error)

	// ListByOwner は所有者の企業一覧を作成日時の昇順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Company, error)

	// ListAll は全企業を返す。バッチリフレッシュで使用する。
	ListAll(ctx context.Context) ([]*model.Company, error)

	// CountByOwner は所有者の企業数を返す。
	CountByOwner(ctx context.Context, ownerID string) (int, error)

	// Create は企業を作成する。
	Create(ctx context.Context, company *model.Company) error

	// UpdateCheckResult はステータスと最終チェック日時を更新する。
	// replaceIncidentがtrueの場合のみ最新インシデントも置き換える。それ以外の項目は変更しない。
	UpdateCheckResult(ctx context.Context, company *model.Company, replaceIncident bool) error

	// DeleteByOwner は所有者が一致する企業を削除する。削除した場合はtrueを返す。
	// 履歴はCASCADE削除される。
	DeleteByOwner(ctx context.Context, ownerID, id string) (bool, error)
}

// CompanyHistoryRepository は追記専用の履歴ログ。更新・削除の操作は持たない。
type CompanyHistoryRepository interface {
	// Append は履歴を1件追加する。
	Append(ctx context.Context, history *model.CompanyHistory) error

	// ListByCompany は企業の履歴を新しい順に最大limit件返す。
	ListByCompany(ctx context.Context, companyID string, limit int) ([]*model.CompanyHistory, error)
}

// SessionRepository はセッションデータの参照インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteExpired はbefore以前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
