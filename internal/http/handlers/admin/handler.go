package admin

import (
	"github.com/affisync/internal/provider"
)

// Handler 运维端处理器
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{
		Container: c,
	}
}
