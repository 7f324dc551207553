package factory

import (
	"context"
	"fmt"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/network"
	"github.com/affisync/internal/network/cj"
	"github.com/affisync/internal/network/impact"
	"github.com/affisync/internal/network/rakuten"
	"github.com/affisync/internal/network/shareasale"
)

// New 按网络类型构造适配器，凭证解析失败返回 config_invalid 错误
func New(cfg *models.NetworkConfig, sink network.EventSink) (network.Adapter, error) {
	if cfg == nil {
		return nil, network.NewError("", constants.ErrCodeConfigInvalid, "missing network config", false, nil)
	}
	switch cfg.NetworkType {
	case constants.NetworkTypeShareASale:
		parsed, err := shareasale.ParseConfig(cfg)
		if err != nil {
			return nil, wrapConfigErr(cfg.NetworkType, err)
		}
		return shareasale.New(parsed, cfg.TenantID, sink, shareasale.Options{}), nil
	case constants.NetworkTypeCJ:
		parsed, err := cj.ParseConfig(cfg)
		if err != nil {
			return nil, wrapConfigErr(cfg.NetworkType, err)
		}
		return cj.New(parsed, cfg.TenantID, sink, cj.Options{}), nil
	case constants.NetworkTypeImpact:
		parsed, err := impact.ParseConfig(cfg)
		if err != nil {
			return nil, wrapConfigErr(cfg.NetworkType, err)
		}
		return impact.New(parsed, cfg.TenantID, sink, impact.Options{}), nil
	case constants.NetworkTypeRakuten:
		parsed, err := rakuten.ParseConfig(cfg)
		if err != nil {
			return nil, wrapConfigErr(cfg.NetworkType, err)
		}
		return rakuten.New(parsed, cfg.TenantID, sink, rakuten.Options{}), nil
	}
	return nil, network.NewError(cfg.NetworkType, constants.ErrCodeConfigInvalid,
		fmt.Sprintf("unsupported network type %q", cfg.NetworkType), false, nil)
}

// ValidateConfig 本地校验凭证完整性，不发出任何网络请求
func ValidateConfig(cfg *models.NetworkConfig) error {
	if cfg == nil {
		return network.NewError("", constants.ErrCodeConfigInvalid, "missing network config", false, nil)
	}
	var err error
	switch cfg.NetworkType {
	case constants.NetworkTypeShareASale:
		_, err = shareasale.ParseConfig(cfg)
	case constants.NetworkTypeCJ:
		_, err = cj.ParseConfig(cfg)
	case constants.NetworkTypeImpact:
		_, err = impact.ParseConfig(cfg)
	case constants.NetworkTypeRakuten:
		_, err = rakuten.ParseConfig(cfg)
	default:
		return network.NewError(cfg.NetworkType, constants.ErrCodeConfigInvalid,
			fmt.Sprintf("unsupported network type %q", cfg.NetworkType), false, nil)
	}
	if err != nil {
		return wrapConfigErr(cfg.NetworkType, err)
	}
	return nil
}

// TestConnection 构造适配器并用一次最小读请求验证凭证可用
func TestConnection(ctx context.Context, cfg *models.NetworkConfig) error {
	adapter, err := New(cfg, nil)
	if err != nil {
		return err
	}
	return adapter.Authenticate(ctx)
}

func wrapConfigErr(networkType string, err error) error {
	return network.NewError(networkType, constants.ErrCodeConfigInvalid, "invalid credentials", false, err)
}
