package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"wellness-backend/internal/shared/server/middleware"
	"wellness-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.PUT("/me/metadata", h.updateMetadata)
}

type metadataRequest struct {
	IsGLP1 bool     `json:"isGLP1"`
	Tags   []string `json:"tags"`
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}
	if errors.Is(err, ErrNotFound) {
		// no stored profile yet; answer with the token identity
		user = User{
			ID:       userID,
			Email:    middleware.UserEmailFromContext(c),
			FullName: middleware.UserNameFromContext(c),
			Metadata: Metadata{Tags: []string{}},
		}
	}
	respond.OK(c, gin.H{
		"user":    user,
		"isGuest": middleware.IsGuest(c),
	})
}

func (h *Handler) updateMetadata(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	var req metadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.UpdateMetadata(c.Request.Context(), userID, Metadata{IsGLP1: req.IsGLP1, Tags: req.Tags})
	if err != nil {
		if errors.Is(err, ErrInvalidMetadata) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update metadata", nil)
		return
	}
	respond.OK(c, user)
}
