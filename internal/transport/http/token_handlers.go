package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/store"
)

// TokenHandlers exposes device push token registration. The realtime core
// only ever reads active tokens; this is the write side it depends on.
type TokenHandlers struct {
	store store.TokenStore
	log   *zerolog.Logger
}

// NewTokenHandlers creates a new token handlers instance.
func NewTokenHandlers(st store.TokenStore, logger *zerolog.Logger) *TokenHandlers {
	return &TokenHandlers{store: st, log: logger}
}

// RegisterTokenRequest represents the token registration request body.
type RegisterTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required,oneof=android ios web"`
}

// UnregisterTokenRequest represents the token removal request body.
type UnregisterTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register stores or reactivates a device token for the caller.
// POST /api/push-tokens
func (h *TokenHandlers) Register(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid token registration request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.RegisterToken(c.Request.Context(), userID, req.Token, store.TokenPlatform(req.Platform)); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to register token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("user_id", userID).Str("platform", req.Platform).Msg("push token registered")
	c.Status(http.StatusNoContent)
}

// Unregister deactivates a device token.
// DELETE /api/push-tokens
func (h *TokenHandlers) Unregister(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req UnregisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid token removal request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.store.DeactivateToken(c.Request.Context(), req.Token); err != nil {
		h.log.Error().Err(err).Msg("failed to deactivate token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
