package public

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/affisync/internal/http/handlers/shared"
	"github.com/affisync/internal/service"

	"github.com/gin-gonic/gin"
)

// 回调体大小上限，防止异常大包占用内存
const maxWebhookBodyBytes = 1 << 20

// 各网络使用的签名头不统一，按优先级逐个尝试
var signatureHeaders = []string{
	"X-Webhook-Signature",
	"X-Signature",
	"X-ShareASale-Signature",
	"X-Impact-Signature",
}

// webhookResponse 回调响应体。
// 对端按 HTTP 状态码决定是否重发，这里不走统一业务码信封。
type webhookResponse struct {
	Success     bool   `json:"success"`
	EventType   string `json:"event_type,omitempty"`
	Error       string `json:"error,omitempty"`
	ShouldRetry bool   `json:"should_retry,omitempty"`
}

// AffiliateWebhook 接收联盟网络的入站回调。
// 可重试失败返回 500 让对端重发，永久失败返回 400。
func (h *Handler) AffiliateWebhook(c *gin.Context) {
	networkType := strings.TrimSpace(c.Param("network_type"))

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, webhookResponse{
			Success: false,
			Error:   "unreadable request body",
		})
		return
	}

	result, err := h.WebhookService.Handle(c.Request.Context(), service.WebhookInput{
		NetworkType: networkType,
		TenantID:    strings.TrimSpace(c.Query("tenant_id")),
		RemoteIP:    c.ClientIP(),
		Signature:   resolveSignature(c),
		ContentType: c.ContentType(),
		Body:        body,
	})
	if err != nil {
		status := http.StatusBadRequest
		if result.ShouldRetry {
			status = http.StatusInternalServerError
		}
		if errors.Is(err, service.ErrNotFound) {
			status = http.StatusNotFound
		}
		shared.RequestLog(c).Warnw("affiliate_webhook_rejected",
			"network_type", networkType,
			"status", status,
			"error", err,
		)
		c.JSON(status, webhookResponse{
			Success:     false,
			EventType:   result.EventType,
			Error:       err.Error(),
			ShouldRetry: result.ShouldRetry,
		})
		return
	}

	c.JSON(http.StatusOK, webhookResponse{
		Success:   true,
		EventType: result.EventType,
	})
}

func resolveSignature(c *gin.Context) string {
	for _, header := range signatureHeaders {
		if value := strings.TrimSpace(c.GetHeader(header)); value != "" {
			return value
		}
	}
	return ""
}
