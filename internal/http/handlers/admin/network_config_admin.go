package admin

import (
	"strings"

	"github.com/affisync/internal/http/handlers/shared"
	"github.com/affisync/internal/http/response"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/queue"
	"github.com/affisync/internal/repository"

	"github.com/gin-gonic/gin"
)

type networkConfigRequest struct {
	TenantID    string                 `json:"tenant_id" binding:"required"`
	NetworkType string                 `json:"network_type" binding:"required"`
	Credentials map[string]interface{} `json:"credentials" binding:"required"`
	Settings    map[string]interface{} `json:"settings"`
	Status      string                 `json:"status"`
}

type syncTriggerRequest struct {
	FullSync bool `json:"full_sync"`
}

// ListNetworkConfigs 网络配置列表
func (h *Handler) ListNetworkConfigs(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	configs, total, err := h.NetworkService.ListConfigs(repository.NetworkConfigListFilter{
		Page:        page,
		PageSize:    pageSize,
		TenantID:    strings.TrimSpace(c.Query("tenant_id")),
		NetworkType: strings.TrimSpace(c.Query("network_type")),
		Status:      strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, configs, response.NewPagination(page, pageSize, total))
}

// GetNetworkConfig 查询单个网络配置
func (h *Handler) GetNetworkConfig(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	cfg, err := h.NetworkService.GetConfig(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, cfg)
}

// CreateNetworkConfig 新建网络配置
func (h *Handler) CreateNetworkConfig(c *gin.Context) {
	var req networkConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	cfg := &models.NetworkConfig{
		TenantID:    req.TenantID,
		NetworkType: req.NetworkType,
		Credentials: models.JSON(req.Credentials),
		Settings:    models.JSON(req.Settings),
		Status:      req.Status,
	}
	if err := h.NetworkService.CreateConfig(cfg); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, cfg)
}

// UpdateNetworkConfig 更新网络配置
func (h *Handler) UpdateNetworkConfig(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	existing, err := h.NetworkService.GetConfig(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var req networkConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	existing.TenantID = req.TenantID
	existing.NetworkType = req.NetworkType
	existing.Credentials = models.JSON(req.Credentials)
	existing.Settings = models.JSON(req.Settings)
	if req.Status != "" {
		existing.Status = req.Status
	}
	if err := h.NetworkService.UpdateConfig(existing); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, existing)
}

// DeleteNetworkConfig 删除网络配置
func (h *Handler) DeleteNetworkConfig(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	if err := h.NetworkService.DeleteConfig(id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, nil)
}

// TestNetworkConnection 验证配置凭证可用
func (h *Handler) TestNetworkConnection(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	if err := h.NetworkService.TestConnection(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithMsg(c, "connection ok", nil)
}

// TriggerNetworkSync 触发一次商品同步。
// 队列可用时入队异步执行，否则同步执行并返回操作记录。
func (h *Handler) TriggerNetworkSync(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req syncTriggerRequest
	_ = c.ShouldBindJSON(&req)

	if _, err := h.NetworkService.GetConfig(id); err != nil {
		respondServiceError(c, err)
		return
	}

	if h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueueNetworkSync(queue.NetworkSyncPayload{
			ConfigID: id,
			FullSync: req.FullSync,
		})
		if err != nil {
			respondServiceError(c, err)
			return
		}
		response.SuccessWithMsg(c, "sync queued", gin.H{"queued": true})
		return
	}

	op, err := h.NetworkService.SyncNetwork(c.Request.Context(), id, req.FullSync)
	if err != nil {
		shared.RequestLog(c).Warnw("admin_sync_failed", "config_id", id, "error", err)
		response.ErrorWithData(c, response.CodeInternal, err.Error(), gin.H{"operation": op})
		return
	}
	response.Success(c, op)
}

// PollNetworkConversions 手动触发一次转化轮询
func (h *Handler) PollNetworkConversions(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	stored, err := h.NetworkService.PollConversions(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"stored": stored})
}

// SyncNetworkCommissions 刷新商家佣金结构
func (h *Handler) SyncNetworkCommissions(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	count, err := h.NetworkService.SyncCommissions(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

type affiliateLinkRequest struct {
	NetworkProductID string            `json:"network_product_id" binding:"required"`
	CustomParams     map[string]string `json:"custom_params"`
}

// GenerateAffiliateLink 生成带子 ID 的推广链接
func (h *Handler) GenerateAffiliateLink(c *gin.Context) {
	id, ok := shared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req affiliateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		shared.RespondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}
	link, err := h.NetworkService.GenerateLink(c.Request.Context(), id, req.NetworkProductID, req.CustomParams)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"link": link})
}
