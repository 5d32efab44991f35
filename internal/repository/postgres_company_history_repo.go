package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/statuswatch/internal/model"
)

// PostgresCompanyHistoryRepo はPostgreSQLを使用した履歴リポジトリ。INSERTとSELECTのみを発行する。
type PostgresCompanyHistoryRepo struct {
	db *sql.DB
}

// NewPostgresCompanyHistoryRepo はPostgresCompanyHistoryRepoを生成する。
func NewPostgresCompanyHistoryRepo(db *sql.DB) *PostgresCompanyHistoryRepo {
	return &PostgresCompanyHistoryRepo{db: db}
}

// Append は履歴を1件追加する。seqはDB側で採番される。
func (r *PostgresCompanyHistoryRepo) Append(ctx context.Context, history *model.CompanyHistory) error {
	if !history.Status.Valid() {
		return fmt.Errorf("不正なステータスです: %q", history.Status)
	}
	title, summary, occurredAt := incidentColumns(history.Incident)

	query, args, err := psql.Insert("company_histories").
		Columns("id", "company_id", "status", "incident_title", "incident_summary", "incident_at", "created_at").
		Values(history.ID, history.CompanyID, string(history.Status), title, summary, occurredAt, history.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("履歴追加クエリの構築に失敗しました: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("履歴の追加に失敗しました: %w", err)
	}
	return nil
}

// ListByCompany は企業の履歴を新しい順に最大limit件返す。
// 同一時刻の行は挿入順（seq）の降順で並べる。
func (r *PostgresCompanyHistoryRepo) ListByCompany(ctx context.Context, companyID string, limit int) ([]*model.CompanyHistory, error) {
	query, args, err := historyListQuery(companyID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("履歴一覧クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("履歴一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var histories []*model.CompanyHistory
	for rows.Next() {
		h := &model.CompanyHistory{}
		var status string
		var title, summary sql.NullString
		var occurredAt sql.NullTime

		if err := rows.Scan(&h.ID, &h.CompanyID, &status, &title, &summary, &occurredAt, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("履歴の読み取りに失敗しました: %w", err)
		}
		h.Status = model.CompanyStatus(status)
		h.Incident = incidentFromColumns(title, summary, occurredAt)
		histories = append(histories, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("履歴一覧の走査に失敗しました: %w", err)
	}
	return histories, nil
}

func historyListQuery(companyID string, limit int) sq.SelectBuilder {
	b := psql.Select("id", "company_id", "status", "incident_title", "incident_summary", "incident_at", "created_at").
		From("company_histories").
		Where(sq.Eq{"company_id": companyID}).
		OrderBy("created_at DESC", "seq DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b
}

// compile-time interface check
var _ CompanyHistoryRepository = (*PostgresCompanyHistoryRepo)(nil)
