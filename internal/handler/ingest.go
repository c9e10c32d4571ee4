package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/antonybarran/Sam-Search-WA-3/internal/service"
)

type IngestHandler struct {
	Sync   *service.OpportunitySyncService
	Logger *zap.Logger
}

func (h *IngestHandler) Register(r *gin.Engine) {
	group := r.Group("/api/ingest")
	group.POST("/run", h.runIngest)
	group.GET("/state", h.getState)
}

type runIngestRequest struct {
	LookbackDays int      `json:"lookback_days"`
	PageSize     int      `json:"page_size"`
	MaxRecords   int      `json:"max_records"`
	PagePause    string   `json:"page_pause"`
	ZipPause     string   `json:"zip_pause"`
	Zips         []string `json:"zips"`
	NAICS        string   `json:"naics"`
	SetAside     string   `json:"set_aside"`
	Cleanup      *bool    `json:"cleanup"`
}

// @Summary Run an ingest pass
// @Tags ingest
// @Accept json
// @Param request body runIngestRequest false "per-run overrides"
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/ingest/run [post]
func (h *IngestHandler) runIngest(c *gin.Context) {
	if h.Sync == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req runIngestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	result, err := h.Sync.Run(c.Request.Context(), service.SyncOptions{
		LookbackDays: req.LookbackDays,
		PageSize:     req.PageSize,
		MaxRecords:   req.MaxRecords,
		PagePause:    parseDuration(req.PagePause),
		ZipPause:     parseDuration(req.ZipPause),
		Zips:         req.Zips,
		NAICS:        req.NAICS,
		SetAside:     req.SetAside,
		Cleanup:      req.Cleanup,
	})
	if err != nil {
		if errors.Is(err, service.ErrSyncBusy) {
			Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Warn("ingest run failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary Current ingest state
// @Tags ingest
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/ingest/state [get]
func (h *IngestHandler) getState(c *gin.Context) {
	if h.Sync == nil || h.Sync.Store == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	scope := h.Sync.Scope
	if scope == "" {
		scope = service.SyncScope
	}
	state, err := h.Sync.Store.GetSyncState(c.Request.Context(), scope)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("read ingest state failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if state == nil {
		Error(c, http.StatusNotFound, "no ingest runs recorded", nil)
		return
	}
	Ok(c, state, nil)
}

func parseDuration(value string) time.Duration {
	if value == "" {
		return 0
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return 0
}
