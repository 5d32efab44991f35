package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/statuswatch/internal/company"
	"github.com/hitoshi/statuswatch/internal/middleware"
	"github.com/hitoshi/statuswatch/internal/model"
)

// CompanyServiceInterface は企業ハンドラーが必要とするサービスインターフェース。
type CompanyServiceInterface interface {
	Register(ctx context.Context, ownerID string, in company.RegisterInput) (*model.Company, error)
	List(ctx context.Context, ownerID string) ([]*model.Company, error)
	Get(ctx context.Context, ownerID, companyID string) (*model.Company, error)
	History(ctx context.Context, ownerID, companyID string, limit int) ([]*model.CompanyHistory, error)
	Delete(ctx context.Context, ownerID, companyID string) error
	Refresh(ctx context.Context, ownerID, companyID string) (*model.Company, error)
	RefreshOwned(ctx context.Context, ownerID string) (int, error)
}

// CompanyHandler は企業管理のHTTPハンドラー。
type CompanyHandler struct {
	service CompanyServiceInterface
	logger  *slog.Logger
}

// NewCompanyHandler はCompanyHandlerを生成する。
func NewCompanyHandler(service CompanyServiceInterface, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{service: service, logger: logger}
}

type registerCompanyRequest struct {
	Name          string `json:"name"`
	StatusPageURL string `json:"statusPageUrl"`
	CheckMethod   string `json:"checkMethod"`
}

type incidentResponse struct {
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	OccurredAt *time.Time `json:"occurredAt"`
}

type companyResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	StatusPageURL  string            `json:"statusPageUrl"`
	CheckMethod    string            `json:"checkMethod"`
	Status         string            `json:"status"`
	LastCheckedAt  *time.Time        `json:"lastCheckedAt"`
	LatestIncident *incidentResponse `json:"latestIncident"`
	CreatedAt      time.Time         `json:"createdAt"`
}

type historyResponse struct {
	ID        string            `json:"id"`
	CompanyID string            `json:"companyId"`
	Status    string            `json:"status"`
	Incident  *incidentResponse `json:"incident"`
	CreatedAt time.Time         `json:"createdAt"`
}

type refreshAllResponse struct {
	UpdatedCount int `json:"updatedCount"`
}

// List は所有者の企業一覧を返す。
// GET /api/companies
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	companies, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]companyResponse, len(companies))
	for i, c := range companies {
		resp[i] = toCompanyResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register は企業を登録し、初回チェック後の状態を返す。
// POST /api/companies
func (h *CompanyHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req registerCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.Register(r.Context(), userID, company.RegisterInput{
		Name:          req.Name,
		StatusPageURL: req.StatusPageURL,
		CheckMethod:   req.CheckMethod,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCompanyResponse(c))
}

// Get は企業1件を返す。
// GET /api/companies/{id}
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyResponse(c))
}

// Delete は企業と履歴を削除する。
// DELETE /api/companies/{id}
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh は企業1件を即時リフレッシュする。
// POST /api/companies/{id}/refresh
func (h *CompanyHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Refresh(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyResponse(c))
}

// RefreshAll は所有者の全企業をリフレッシュし、処理件数を返す。
// POST /api/companies/refresh
func (h *CompanyHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	n, err := h.service.RefreshOwned(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshAllResponse{UpdatedCount: n})
}

// History は企業の履歴を新しい順に返す。
// GET /api/companies/{id}/history?limit=N
func (h *CompanyHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit", "1以上の整数を指定してください"))
			return
		}
		limit = n
	}

	histories, err := h.service.History(r.Context(), userID, chi.URLParam(r, "id"), limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := make([]historyResponse, len(histories))
	for i, hist := range histories {
		resp[i] = historyResponse{
			ID:        hist.ID,
			CompanyID: hist.CompanyID,
			Status:    string(hist.Status),
			Incident:  toIncidentResponse(hist.Incident),
			CreatedAt: hist.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// userID はコンテキストからユーザーIDを取得する。取得できない場合は401を書き込む。
func (h *CompanyHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return "", false
	}
	return userID, true
}

func toCompanyResponse(c *model.Company) companyResponse {
	return companyResponse{
		ID:             c.ID,
		Name:           c.Name,
		StatusPageURL:  c.StatusPageURL,
		CheckMethod:    string(c.CheckMethod),
		Status:         string(c.Status),
		LastCheckedAt:  c.LastCheckedAt,
		LatestIncident: toIncidentResponse(c.LatestIncident),
		CreatedAt:      c.CreatedAt,
	}
}

func toIncidentResponse(in *model.Incident) *incidentResponse {
	if in == nil {
		return nil
	}
	return &incidentResponse{Title: in.Title, Summary: in.Summary, OccurredAt: in.OccurredAt}
}
