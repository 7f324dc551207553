package admin

import (
	"errors"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/http/handlers/shared"
	"github.com/affisync/internal/http/response"
	"github.com/affisync/internal/network"
	"github.com/affisync/internal/service"

	"github.com/gin-gonic/gin"
)

// respondServiceError 将服务层错误映射为统一响应
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, "record not found")
	case network.ErrorCode(err) == constants.ErrCodeConfigInvalid:
		shared.RespondError(c, response.CodeBadRequest, err.Error(), nil)
	case network.ErrorCode(err) == constants.ErrCodeUnsupported:
		shared.RespondError(c, response.CodeBadRequest, err.Error(), nil)
	case network.ErrorCode(err) == constants.ErrCodeAuth:
		shared.RespondError(c, response.CodeBadRequest, err.Error(), err)
	default:
		shared.RespondError(c, response.CodeInternal, "internal error", err)
	}
}
