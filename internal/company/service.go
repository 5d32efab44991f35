// Package company は監視対象企業の登録・参照・削除のドメインロジックを提供する。
package company

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/statuswatch/internal/model"
	"github.com/hitoshi/statuswatch/internal/refresh"
	"github.com/hitoshi/statuswatch/internal/repository"
)

const (
	// MaxCompaniesPerOwner はユーザーあたりの登録上限。
	MaxCompaniesPerOwner = 100
	// MaxNameLength は企業名の最大文字数。
	MaxNameLength = 200
	// DefaultHistoryLimit は履歴取得件数の既定値。
	DefaultHistoryLimit = 100
)

// URLValidator はSSRF検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Detector はHTMLページからフィードURLを検出するインターフェース。
type Detector interface {
	DetectFeedURL(ctx context.Context, inputURL string) (string, error)
}

// Refresher はステータスリフレッシュのインターフェース。
type Refresher interface {
	RefreshOne(ctx context.Context, company *model.Company) (refresh.Outcome, error)
	RefreshCompanies(ctx context.Context, companies []*model.Company) int
}

// RegisterInput は企業登録の入力。
type RegisterInput struct {
	Name          string
	StatusPageURL string
	CheckMethod   string
}

// Service は企業管理のサービス層。
// すべての操作は所有者IDでスコープされ、他ユーザーの企業は存在しないものとして扱う。
type Service struct {
	companyRepo  repository.CompanyRepository
	historyRepo  repository.CompanyHistoryRepository
	ssrfGuard    URLValidator
	detector     Detector
	refresher    Refresher
	logger       *slog.Logger
	historyLimit int
}

// NewService はServiceの新しいインスタンスを生成する。
// historyLimitが0以下の場合はDefaultHistoryLimitを使用する。
func NewService(
	companyRepo repository.CompanyRepository,
	historyRepo repository.CompanyHistoryRepository,
	ssrfGuard URLValidator,
	detector Detector,
	refresher Refresher,
	logger *slog.Logger,
	historyLimit int,
) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Service{
		companyRepo:  companyRepo,
		historyRepo:  historyRepo,
		ssrfGuard:    ssrfGuard,
		detector:     detector,
		refresher:    refresher,
		logger:       logger,
		historyLimit: historyLimit,
	}
}

// Register は企業を登録し、初回チェックを実行する。
// フロー: 入力検証 → 登録上限チェック → フィードURL検出（feed方式のみ） → 保存 → 初回リフレッシュ
// 初回リフレッシュの失敗は登録失敗として扱わない。
func (s *Service) Register(ctx context.Context, ownerID string, in RegisterInput) (*model.Company, error) {
	name, method, pageURL, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	count, err := s.companyRepo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("企業数の確認に失敗しました: %w", err)
	}
	if count >= MaxCompaniesPerOwner {
		return nil, model.NewCompanyLimitError(MaxCompaniesPerOwner)
	}

	if method == model.CheckMethodFeed && s.detector != nil {
		pageURL = s.resolveFeedURL(ctx, pageURL)
	}

	now := time.Now().UTC()
	company := &model.Company{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Name:          name,
		StatusPageURL: pageURL,
		CheckMethod:   method,
		Status:        model.StatusUp,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.companyRepo.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("企業の保存に失敗しました: %w", err)
	}

	if _, err := s.refresher.RefreshOne(ctx, company); err != nil {
		s.logger.Warn("初回チェックの保存に失敗しました",
			slog.String("company_id", company.ID),
			slog.String("error", err.Error()),
		)
	}

	return company, nil
}

// validate は登録入力を検証し、正規化した値を返す。
func (s *Service) validate(in RegisterInput) (string, model.CheckMethod, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", "", "", model.NewValidationError("name", "必須項目です")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", "", "", model.NewValidationError("name", fmt.Sprintf("%d文字以内で入力してください", MaxNameLength))
	}

	method, ok := model.ParseCheckMethod(strings.ToLower(strings.TrimSpace(in.CheckMethod)))
	if !ok {
		return "", "", "", model.NewInvalidCheckMethodError(in.CheckMethod)
	}

	rawURL := strings.TrimSpace(in.StatusPageURL)
	if rawURL == "" {
		return "", "", "", model.NewValidationError("statusPageUrl", "必須項目です")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", "", model.NewInvalidURLError(rawURL)
	}
	if s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
			return "", "", "", model.NewSSRFBlockedError()
		}
	}

	return name, method, rawURL, nil
}

// resolveFeedURL はHTMLページが広告するフィードURLを返す。検出できない場合は入力URLのまま。
func (s *Service) resolveFeedURL(ctx context.Context, pageURL string) string {
	feedURL, err := s.detector.DetectFeedURL(ctx, pageURL)
	if err != nil {
		s.logger.Info("フィードURLを検出できなかったため入力URLを使用します",
			slog.String("url", pageURL),
			slog.String("error", err.Error()),
		)
		return pageURL
	}
	return feedURL
}

// List は所有者の企業一覧を返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.Company, error) {
	companies, err := s.companyRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("企業一覧の取得に失敗しました: %w", err)
	}
	return companies, nil
}

// Get は所有者の企業を1件返す。
func (s *Service) Get(ctx context.Context, ownerID, companyID string) (*model.Company, error) {
	if !validCompanyID(companyID) {
		return nil, model.NewCompanyNotFoundError(companyID)
	}
	company, err := s.companyRepo.FindByOwnerAndID(ctx, ownerID, companyID)
	if err != nil {
		return nil, fmt.Errorf("企業の取得に失敗しました: %w", err)
	}
	if company == nil {
		return nil, model.NewCompanyNotFoundError(companyID)
	}
	return company, nil
}

// History は企業の履歴を新しい順に返す。limitが0以下または上限超過の場合は上限件数を返す。
func (s *Service) History(ctx context.Context, ownerID, companyID string, limit int) ([]*model.CompanyHistory, error) {
	if _, err := s.Get(ctx, ownerID, companyID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	histories, err := s.historyRepo.ListByCompany(ctx, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	return histories, nil
}

// Delete は企業とその履歴を削除する。
func (s *Service) Delete(ctx context.Context, ownerID, companyID string) error {
	if !validCompanyID(companyID) {
		return model.NewCompanyNotFoundError(companyID)
	}
	deleted, err := s.companyRepo.DeleteByOwner(ctx, ownerID, companyID)
	if err != nil {
		return fmt.Errorf("企業の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewCompanyNotFoundError(companyID)
	}
	return nil
}

// Refresh は所有者の企業1件を即時リフレッシュし、更新後の企業を返す。
func (s *Service) Refresh(ctx context.Context, ownerID, companyID string) (*model.Company, error) {
	company, err := s.Get(ctx, ownerID, companyID)
	if err != nil {
		return nil, err
	}
	if _, err := s.refresher.RefreshOne(ctx, company); err != nil {
		return nil, err
	}
	return company, nil
}

// RefreshOwned は所有者の全企業をリフレッシュし、処理を試行した件数を返す。
func (s *Service) RefreshOwned(ctx context.Context, ownerID string) (int, error) {
	companies, err := s.List(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return s.refresher.RefreshCompanies(ctx, companies), nil
}

// validCompanyID は企業IDがUUID形式かを返す。形式外のIDは存在しない企業として扱う。
func validCompanyID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
