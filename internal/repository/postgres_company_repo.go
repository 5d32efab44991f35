package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/hitoshi/statuswatch/internal/model"
)

// psql はPostgreSQLのプレースホルダ（$1, $2...）を使うクエリビルダー。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var companyColumns = []string{
	"id", "owner_id", "name", "status_page_url", "check_method", "status",
	"last_checked_at", "latest_incident_title", "latest_incident_summary", "latest_incident_at",
	"created_at", "updated_at",
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresCompanyRepo はPostgreSQLを使用した企業リポジトリ。
type PostgresCompanyRepo struct {
	db *sql.DB
}

// NewPostgresCompanyRepo はPostgresCompanyRepoを生成する。
func NewPostgresCompanyRepo(db *sql.DB) *PostgresCompanyRepo {
	return &PostgresCompanyRepo{db: db}
}

// FindByID は指定IDの企業を取得する。見つからない場合はnilを返す。
func (r *PostgresCompanyRepo) FindByID(ctx context.Context, id string) (*model.Company, error) {
	return r.findOne(ctx, sq.Eq{"id": id})
}

// FindByOwnerAndID は所有者が一致する場合のみ企業を返す。
func (r *PostgresCompanyRepo) FindByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Company, error) {
	return r.findOne(ctx, sq.Eq{"id": id, "owner_id": ownerID})
}

func (r *PostgresCompanyRepo) findOne(ctx context.Context, where sq.Eq) (*model.Company, error) {
	query, args, err := psql.Select(companyColumns...).From("companies").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("企業取得クエリの構築に失敗しました: %w", err)
	}

	company, err := scanCompany(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("企業の取得に失敗しました: %w", err)
	}
	return company, nil
}

// ListByOwner は所有者の企業一覧を作成日時の昇順で返す。
func (r *PostgresCompanyRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Company, error) {
	return r.list(ctx, listCompaniesQuery(ownerID))
}

// ListAll は全企業を返す。
func (r *PostgresCompanyRepo) ListAll(ctx context.Context) ([]*model.Company, error) {
	return r.list(ctx, listCompaniesQuery(""))
}

// listCompaniesQuery は企業一覧のSELECTを構築する。ownerIDが空の場合は全件を対象にする。
func listCompaniesQuery(ownerID string) sq.SelectBuilder {
	b := psql.Select(companyColumns...).From("companies").OrderBy("created_at ASC", "id ASC")
	if ownerID != "" {
		b = b.Where(sq.Eq{"owner_id": ownerID})
	}
	return b
}

func (r *PostgresCompanyRepo) list(ctx context.Context, b sq.SelectBuilder) ([]*model.Company, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("企業一覧クエリの構築に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("企業一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var companies []*model.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("企業の読み取りに失敗しました: %w", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("企業一覧の走査に失敗しました: %w", err)
	}
	return companies, nil
}

// CountByOwner は所有者の企業数を返す。
func (r *PostgresCompanyRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	query, args, err := psql.Select("count(*)").From("companies").Where(sq.Eq{"owner_id": ownerID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("企業数クエリの構築に失敗しました: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("企業数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は企業を作成する。
func (r *PostgresCompanyRepo) Create(ctx context.Context, company *model.Company) error {
	title, summary, occurredAt := incidentColumns(company.LatestIncident)

	query, args, err := psql.Insert("companies").
		Columns(companyColumns...).
		Values(
			company.ID, company.OwnerID, company.Name, company.StatusPageURL,
			string(company.CheckMethod), string(company.Status),
			nullTime(company.LastCheckedAt), title, summary, occurredAt,
			company.CreatedAt, company.UpdatedAt,
		).ToSql()
	if err != nil {
		return fmt.Errorf("企業作成クエリの構築に失敗しました: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("企業の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateCheckResult はステータスと最終チェック日時を更新する。
// replaceIncidentがfalseの場合、最新インシデントの列には触れない。
func (r *PostgresCompanyRepo) UpdateCheckResult(ctx context.Context, company *model.Company, replaceIncident bool) error {
	if !company.Status.Valid() {
		return fmt.Errorf("不正なステータスです: %q", company.Status)
	}

	builder := psql.Update("companies").
		Set("status", string(company.Status)).
		Set("last_checked_at", nullTime(company.LastCheckedAt)).
		Set("updated_at", company.UpdatedAt)

	if replaceIncident {
		title, summary, occurredAt := incidentColumns(company.LatestIncident)
		builder = builder.
			Set("latest_incident_title", title).
			Set("latest_incident_summary", summary).
			Set("latest_incident_at", occurredAt)
	}

	query, args, err := builder.Where(sq.Eq{"id": company.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("チェック結果更新クエリの構築に失敗しました: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("チェック結果の更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByOwner は所有者が一致する企業を削除する。
func (r *PostgresCompanyRepo) DeleteByOwner(ctx context.Context, ownerID, id string) (bool, error) {
	query, args, err := psql.Delete("companies").Where(sq.Eq{"id": id, "owner_id": ownerID}).ToSql()
	if err != nil {
		return false, fmt.Errorf("企業削除クエリの構築に失敗しました: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("企業の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

func scanCompany(row rowScanner) (*model.Company, error) {
	company := &model.Company{}
	var checkMethod, status string
	var lastCheckedAt, incidentAt sql.NullTime
	var title, summary sql.NullString

	if err := row.Scan(
		&company.ID, &company.OwnerID, &company.Name, &company.StatusPageURL,
		&checkMethod, &status,
		&lastCheckedAt, &title, &summary, &incidentAt,
		&company.CreatedAt, &company.UpdatedAt,
	); err != nil {
		return nil, err
	}

	company.CheckMethod = model.CheckMethod(checkMethod)
	company.Status = model.CompanyStatus(status)
	if !company.Status.Valid() {
		return nil, fmt.Errorf("企業 %s のステータスが不正です: %q", company.ID, status)
	}
	company.LastCheckedAt = timePtr(lastCheckedAt)
	company.LatestIncident = incidentFromColumns(title, summary, incidentAt)
	return company, nil
}

// incidentColumns はインシデントを3つのNULL許容カラムに分解する。
func incidentColumns(in *model.Incident) (sql.NullString, sql.NullString, sql.NullTime) {
	if in == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullTime{}
	}
	// タイトル・要約ともに空のインシデントでも「存在する」ことを区別するため、タイトルは常にValidにする。
	return sql.NullString{String: in.Title, Valid: true}, nullString(in.Summary), nullTime(in.OccurredAt)
}

// incidentFromColumns はincidentColumnsの逆変換。タイトルがNULLならインシデントなし。
func incidentFromColumns(title, summary sql.NullString, occurredAt sql.NullTime) *model.Incident {
	if !title.Valid {
		return nil
	}
	return &model.Incident{
		Title:      title.String,
		Summary:    nullStringValue(summary),
		OccurredAt: timePtr(occurredAt),
	}
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// compile-time interface check
var _ CompanyRepository = (*PostgresCompanyRepo)(nil)
