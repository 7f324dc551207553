package admin

import (
	"strings"
	"time"

	"github.com/affisync/internal/http/handlers/shared"
	"github.com/affisync/internal/http/response"
	"github.com/affisync/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListConversions 转化记录列表
func (h *Handler) ListConversions(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	filter := repository.ConversionListFilter{
		Page:        page,
		PageSize:    pageSize,
		TenantID:    strings.TrimSpace(c.Query("tenant_id")),
		NetworkType: strings.TrimSpace(c.Query("network_type")),
		Status:      strings.TrimSpace(c.Query("status")),
	}
	if from := parseDateQuery(c.Query("date_from")); from != nil {
		filter.DateFrom = from
	}
	if to := parseDateQuery(c.Query("date_to")); to != nil {
		filter.DateTo = to
	}

	conversions, total, err := h.NetworkService.ListConversions(filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, conversions, response.NewPagination(page, pageSize, total))
}

func parseDateQuery(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}
	return nil
}
