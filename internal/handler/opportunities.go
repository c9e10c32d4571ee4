package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/antonybarran/Sam-Search-WA-3/internal/cache"
	"github.com/antonybarran/Sam-Search-WA-3/internal/repository"
	"github.com/antonybarran/Sam-Search-WA-3/internal/service"
)

type OpportunityHandler struct {
	Query    *service.OpportunityQueryService
	Cache    cache.Store
	CacheTTL time.Duration
	Logger   *zap.Logger
}

func (h *OpportunityHandler) Register(r *gin.Engine) {
	r.GET("/opps", h.listOpportunities)
}

// @Summary List opportunities
// @Tags opportunities
// @Param active query bool false "only notices still open (default true)"
// @Param naics query string false "NAICS code filter"
// @Param keyword query string false "keyword in title or description"
// @Param zip query string false "place-of-performance ZIP"
// @Param setaside query string false "set-aside code filter"
// @Param sort query string false "due_then_posted (default) or posted_desc"
// @Param limit query int false "page size (default 100, max 500)"
// @Param offset query int false "page offset"
// @Success 200 {object} apiResponse
// @Router /opps [get]
func (h *OpportunityHandler) listOpportunities(c *gin.Context) {
	if h.Query == nil || h.Query.Repo == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	params := repository.ListOpportunitiesParams{
		Limit:      clampLimit(intQuery(c, "limit", 100), 100),
		Offset:     intQuery(c, "offset", 0),
		ActiveOnly: boolQueryDefault(c, "active", true),
		NAICS:      strQueryPtr(c, "naics"),
		Keyword:    strQueryPtr(c, "keyword"),
		Zip:        strQueryPtr(c, "zip"),
		SetAside:   strQueryPtr(c, "setaside"),
		Sort:       parseSort(c.Query("sort")),
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	key := listCacheKey(params)
	if h.Cache != nil {
		if body, found, err := h.Cache.Get(c.Request.Context(), key); err == nil && found {
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
	}

	result, err := h.Query.List(c.Request.Context(), params)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list opportunities failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}

	body, err := json.Marshal(apiResponse{
		Code:    0,
		Message: "ok",
		Data:    result.Items,
		Meta:    paginationMeta(params.Limit, params.Offset, result.Total),
	})
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Set(c.Request.Context(), key, body, h.cacheTTL()); err != nil && h.Logger != nil {
			h.Logger.Warn("cache write failed", zap.Error(err))
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (h *OpportunityHandler) cacheTTL() time.Duration {
	if h.CacheTTL > 0 {
		return h.CacheTTL
	}
	return 45 * time.Second
}

func parseSort(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "posted", "posted_desc":
		return repository.SortPostedDesc
	default:
		return repository.SortDueThenPosted
	}
}

// listCacheKey folds the normalized filters into one key so equivalent
// requests share a cache entry.
func listCacheKey(p repository.ListOpportunitiesParams) string {
	return fmt.Sprintf("opps:v1:active=%t&naics=%s&keyword=%s&zip=%s&setaside=%s&sort=%s&limit=%d&offset=%d",
		p.ActiveOnly,
		strDeref(p.NAICS),
		strDeref(p.Keyword),
		strDeref(p.Zip),
		strDeref(p.SetAside),
		p.Sort,
		p.Limit,
		p.Offset,
	)
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
