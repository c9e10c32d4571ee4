package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/antonybarran/Sam-Search-WA-3/internal/repository"
)

// MaintenanceHandler hosts operational endpoints. When AdminToken is empty
// the endpoints are open; otherwise callers must send X-Admin-Token.
type MaintenanceHandler struct {
	Repo       repository.OpportunityRepository
	AdminToken string
	Logger     *zap.Logger
}

func (h *MaintenanceHandler) Register(r *gin.Engine) {
	r.POST("/maintenance/cleanup", h.cleanup)
}

// @Summary Delete expired opportunities
// @Tags maintenance
// @Param X-Admin-Token header string false "admin token"
// @Success 200 {object} apiResponse
// @Failure 401 {object} apiResponse
// @Router /maintenance/cleanup [post]
func (h *MaintenanceHandler) cleanup(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	if !h.authorized(c) {
		Error(c, http.StatusUnauthorized, "invalid admin token", nil)
		return
	}
	deleted, err := h.Repo.DeleteExpired(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("cleanup failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info("cleanup finished", zap.Int64("deleted", deleted))
	}
	Ok(c, gin.H{"deleted": deleted}, nil)
}

func (h *MaintenanceHandler) authorized(c *gin.Context) bool {
	if h.AdminToken == "" {
		return true
	}
	token := c.GetHeader("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.AdminToken)) == 1
}
