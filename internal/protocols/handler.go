package protocols

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/shared/server/middleware"
	"wellness-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the protocols service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the authenticated protocol routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/protocols/daily", h.generateDaily)
	rg.POST("/protocols/preview", h.preview)
	rg.GET("/protocols/today", h.today)
	rg.GET("/protocols", h.list)
}

// RegisterPublicRoutes attaches routes that need no identity.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/catalog", h.catalog)
}

type generateRequest struct {
	Stress       *float64             `json:"stress"`
	Overall      *float64             `json:"overall"`
	LIS          *float64             `json:"lis"`
	CyclePhase   string               `json:"cyclePhase"`
	UserMetadata *engine.UserMetadata `json:"userMetadata"`
	Force        bool                 `json:"force"`
}

func (r generateRequest) input() GenerateInput {
	in := GenerateInput{
		Signal: engine.DailySignal{
			Stress:  *r.Stress,
			Overall: r.Overall,
			LIS:     r.LIS,
		},
		CyclePhase: r.CyclePhase,
		Force:      r.Force,
	}
	if r.UserMetadata != nil {
		in.Metadata = *r.UserMetadata
	}
	return in
}

func (h *Handler) bind(c *gin.Context) (GenerateInput, bool) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return GenerateInput{}, false
	}
	if req.Stress == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "stress is required", []map[string]string{
			{"field": "stress", "issue": "required"},
		})
		return GenerateInput{}, false
	}
	return req.input(), true
}

func (h *Handler) generateDaily(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}
	userID := middleware.UserIDFromContext(c)

	res, err := h.Svc.GenerateDaily(c.Request.Context(), userID, in)
	if err != nil {
		h.fail(c, err, "failed to generate protocol")
		return
	}

	c.Set(middleware.ProtocolIDKey, res.Protocol.ID)
	c.Set(middleware.RuleKey, string(res.Protocol.Rule))
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	respond.JSON(c, status, res.Protocol)
}

func (h *Handler) preview(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}
	userID := middleware.UserIDFromContext(c)

	p, decision, err := h.Svc.Preview(c.Request.Context(), userID, in)
	if err != nil {
		h.fail(c, err, "failed to preview protocol")
		return
	}
	c.Set(middleware.RuleKey, string(decision.Rule))
	respond.OK(c, gin.H{
		"protocol": p,
		"decision": decision,
	})
}

func (h *Handler) today(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	p, err := h.Svc.Today(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "no protocol for today", nil)
			return
		}
		h.fail(c, err, "failed to fetch protocol")
		return
	}
	c.Set(middleware.ProtocolIDKey, p.ID)
	respond.OK(c, p)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := defaultPageSize
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	items, err := h.Svc.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.fail(c, err, "failed to list protocols")
		return
	}
	respond.OK(c, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *Handler) catalog(c *gin.Context) {
	if h.Svc == nil || h.Svc.Engine == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "catalog unavailable", nil)
		return
	}
	cat := h.Svc.Engine.Catalog()
	respond.OK(c, gin.H{
		"version":     cat.Version(),
		"stressReset": cat.StressReset().Title,
		"templates":   cat.All(),
	})
}

func (h *Handler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrInProgress):
		respond.Error(c, http.StatusConflict, "in_progress", "protocol generation already in progress", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	}
}
