package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/service"
)

// Recommender 是 handler 依赖的服务能力（service.Service）
type Recommender interface {
	GetRecommendations(ctx context.Context, userID string, limit int) (*service.Result, error)
	RecordInteraction(ctx context.Context, userID, categoryID string, action core.Action) error
	UpdateProductRelations(ctx context.Context, productID, relatedID string, typ core.RelationType) error
	RequestRecompute(ctx context.Context, userID, reason string) (bool, error)
}

// Options 控制 limit 参数
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

type Handler struct {
	svc  Recommender
	opts Options
}

func NewHandler(svc Recommender, opts Options) *Handler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = service.DefaultLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	return &Handler{svc: svc, opts: opts}
}

type interactionRequest struct {
	CategoryID string `json:"category_id" validate:"required"`
	Action     string `json:"action" validate:"required,oneof=view purchase review"`
}

type relationRequest struct {
	ProductID        string `json:"product_id" validate:"required"`
	RelatedProductID string `json:"related_product_id" validate:"required,nefield=ProductID"`
	Type             string `json:"type" validate:"required,oneof=complementary similar frequently_bought_together"`
}

// Recommendations 处理 GET /v1/recommendations
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	limit := h.opts.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, h.opts.MaxLimit)
	}

	res, err := h.svc.GetRecommendations(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, res)
}

// Interactions 处理 POST /v1/interactions
func (h *Handler) Interactions(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.RecordInteraction(r.Context(), UserID(r.Context()), req.CategoryID, core.Action(req.Action)); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Relations 处理 POST /v1/relations
func (h *Handler) Relations(w http.ResponseWriter, r *http.Request) {
	var req relationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := h.svc.UpdateProductRelations(r.Context(), req.ProductID, req.RelatedProductID, core.RelationType(req.Type))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recompute 处理 POST /v1/recompute：异步时返回 202，同步完成时返回 204
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	async, err := h.svc.RequestRecompute(r.Context(), UserID(r.Context()), "api")
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if async {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health 处理 GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}
