package shared

import (
	"strconv"
	"strings"

	"github.com/affisync/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ParamUint 读取路径中的 uint 参数，非法时返回统一错误响应。
func ParamUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		RespondError(c, response.CodeBadRequest, "invalid "+name, nil)
		return 0, false
	}
	return uint(value), true
}

// QueryBool 读取可选布尔查询参数，缺省返回 nil。
func QueryBool(c *gin.Context, name string) *bool {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &value
}
