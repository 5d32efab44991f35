// Package refresh は企業ステータスのリフレッシュ処理を提供する。
// 取得 → 判定 → 企業レコード更新 → 履歴追記 を1企業単位で実行し、
// バッチでは上限付きの並列度で全企業を処理する。
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/statuswatch/internal/check"
	"github.com/hitoshi/statuswatch/internal/metrics"
	"github.com/hitoshi/statuswatch/internal/model"
	"github.com/hitoshi/statuswatch/internal/repository"
)

// DefaultMaxConcurrency はバッチリフレッシュの既定の並列数。
const DefaultMaxConcurrency = 5

// FeedFetcher はフィード取得のインターフェース。
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]model.FeedItem, error)
}

// PageScraper はHTMLページ本文取得のインターフェース。
type PageScraper interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Outcome は1企業分のリフレッシュ結果。
type Outcome struct {
	CompanyID string
	Status    model.CompanyStatus
	Incident  *model.Incident
	CheckedAt time.Time
	// FetchErr は取得失敗の原因。縮退判定の場合のみ非nil。
	FetchErr error
}

// Degraded は取得失敗による縮退判定かを返す。
func (o Outcome) Degraded() bool {
	return o.FetchErr != nil
}

// Service はステータスリフレッシュを実行する。
type Service struct {
	companyRepo    repository.CompanyRepository
	historyRepo    repository.CompanyHistoryRepository
	feeds          FeedFetcher
	pages          PageScraper
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	locks          *keyedMutex
	maxConcurrency int
	now            func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はDefaultMaxConcurrencyを使用する。mcはnilでもよい。
func NewService(
	companyRepo repository.CompanyRepository,
	historyRepo repository.CompanyHistoryRepository,
	feeds FeedFetcher,
	pages PageScraper,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
) *Service {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Service{
		companyRepo:    companyRepo,
		historyRepo:    historyRepo,
		feeds:          feeds,
		pages:          pages,
		metrics:        mc,
		logger:         logger,
		locks:          newKeyedMutex(),
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// RefreshOne は1企業のステータスを取得・判定し、企業レコードを更新して履歴を1行追記する。
// companyはその場で更新される。取得失敗はエラーではなく縮退判定として扱い、
// 永続化に失敗した場合のみエラーを返す。
func (s *Service) RefreshOne(ctx context.Context, company *model.Company) (Outcome, error) {
	unlock := s.locks.Lock(company.ID)
	defer unlock()

	start := time.Now()
	result, fetchErr := s.check(ctx, company)
	checkedAt := s.now().UTC()

	company.Status = result.Status
	company.LastCheckedAt = &checkedAt
	if result.Structured {
		company.LatestIncident = result.Incident
	}
	company.UpdatedAt = checkedAt

	outcome := Outcome{
		CompanyID: company.ID,
		Status:    result.Status,
		Incident:  result.Incident,
		CheckedAt: checkedAt,
		FetchErr:  fetchErr,
	}

	s.record(company, outcome, result.Degraded, time.Since(start))

	if err := s.companyRepo.UpdateCheckResult(ctx, company, result.Structured); err != nil {
		return outcome, fmt.Errorf("企業 %s のチェック結果の保存に失敗: %w", company.ID, err)
	}

	history := &model.CompanyHistory{
		ID:        uuid.New().String(),
		CompanyID: company.ID,
		Status:    company.Status,
		Incident:  copyIncident(company.LatestIncident),
		CreatedAt: checkedAt,
	}
	if err := s.historyRepo.Append(ctx, history); err != nil {
		return outcome, fmt.Errorf("企業 %s の履歴追記に失敗: %w", company.ID, err)
	}
	if s.metrics != nil {
		s.metrics.RecordHistoryAppended()
	}

	return outcome, nil
}

// check はチェック方式に応じて取得し、判定結果と取得エラーを返す。
func (s *Service) check(ctx context.Context, company *model.Company) (check.Result, error) {
	var in check.Input

	switch company.CheckMethod {
	case model.CheckMethodScrape:
		in = check.InputFromPage(s.pages.Fetch(ctx, company.StatusPageURL))
	default:
		in = check.InputFromFeed(s.feeds.Fetch(ctx, company.StatusPageURL))
	}

	var fetchErr error
	if failed, ok := in.(check.FailedInput); ok {
		fetchErr = failed.Err
	}
	return check.Classify(in), fetchErr
}

// copyIncident は履歴行が企業レコードとポインタを共有しないよう複製する。
func copyIncident(in *model.Incident) *model.Incident {
	if in == nil {
		return nil
	}
	out := *in
	if in.OccurredAt != nil {
		t := *in.OccurredAt
		out.OccurredAt = &t
	}
	return &out
}

// record はリフレッシュ結果をログとメトリクスに記録する。
func (s *Service) record(company *model.Company, outcome Outcome, degraded bool, elapsed time.Duration) {
	method := string(company.CheckMethod)

	attrs := []any{
		slog.String("company_id", company.ID),
		slog.String("check_method", method),
		slog.String("status", string(outcome.Status)),
		slog.Float64("duration_ms", float64(elapsed.Milliseconds())),
	}

	if degraded {
		kind := fetchErrorKind(outcome.FetchErr)
		attrs = append(attrs, slog.String("fetch_error_kind", kind))
		if outcome.FetchErr != nil {
			attrs = append(attrs, slog.String("error", outcome.FetchErr.Error()))
		}
		s.logger.Warn("ステータスページの取得に失敗したため縮退判定しました", attrs...)
		if s.metrics != nil {
			s.metrics.RecordFetchFailure(method, kind)
		}
	} else {
		s.logger.Info("企業ステータスをリフレッシュしました", attrs...)
	}

	if s.metrics != nil {
		s.metrics.RecordRefresh(method, string(outcome.Status))
		s.metrics.RecordCheckLatency(method, elapsed)
	}
}

// fetchErrorKind はエラーの種別ラベルを返す。FetchError以外はnetworkとして扱う。
func fetchErrorKind(err error) string {
	var fe *model.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return string(model.FetchErrorNetwork)
}

// RefreshCompanies は企業を上限付きの並列度でリフレッシュし、処理を試行した企業数を返す。
// 1企業の失敗は他の企業の処理を中断しない。
func (s *Service) RefreshCompanies(ctx context.Context, companies []*model.Company) int {
	if len(companies) == 0 {
		return 0
	}

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, company := range companies {
		wg.Add(1)
		sem <- struct{}{}

		go func(c *model.Company) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := s.RefreshOne(ctx, c); err != nil {
				s.logger.Error("企業のリフレッシュに失敗しました",
					slog.String("company_id", c.ID),
					slog.String("error", err.Error()),
				)
			}
		}(company)
	}

	wg.Wait()
	return len(companies)
}

// RefreshAll は全企業をリフレッシュし、処理を試行した企業数を返す。
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	start := time.Now()

	companies, err := s.companyRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("企業一覧の取得に失敗: %w", err)
	}

	count := s.RefreshCompanies(ctx, companies)

	s.logger.Info("バッチリフレッシュが完了しました",
		slog.Int("updated_count", count),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return count, nil
}
