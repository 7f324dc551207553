package factory

import (
	"testing"

	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/network"
)

func TestNewAllNetworkTypes(t *testing.T) {
	cases := []struct {
		networkType string
		credentials models.JSON
	}{
		{constants.NetworkTypeShareASale, models.JSON{
			"affiliate_id": "1", "api_token": "t", "api_secret": "s",
		}},
		{constants.NetworkTypeCJ, models.JSON{
			"api_token": "t", "website_id": "pid",
		}},
		{constants.NetworkTypeImpact, models.JSON{
			"account_sid": "sid", "auth_token": "t",
		}},
		{constants.NetworkTypeRakuten, models.JSON{
			"key_id": "k", "api_secret": "s", "site_id": "1",
		}},
	}
	for _, c := range cases {
		t.Run(c.networkType, func(t *testing.T) {
			adapter, err := New(&models.NetworkConfig{
				TenantID:    "tenant-1",
				NetworkType: c.networkType,
				Credentials: c.credentials,
			}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adapter.NetworkType() != c.networkType {
				t.Errorf("network type = %s, want %s", adapter.NetworkType(), c.networkType)
			}
		})
	}
}

func TestNewUnsupportedNetworkType(t *testing.T) {
	_, err := New(&models.NetworkConfig{NetworkType: "awin"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if network.ErrorCode(err) != constants.ErrCodeConfigInvalid {
		t.Errorf("error code = %s, want %s", network.ErrorCode(err), constants.ErrCodeConfigInvalid)
	}
}

func TestNewInvalidCredentials(t *testing.T) {
	_, err := New(&models.NetworkConfig{
		NetworkType: constants.NetworkTypeCJ,
		Credentials: models.JSON{"api_token": "t"},
	}, nil)
	if err == nil {
		t.Fatal("expected config error")
	}
	if network.ErrorCode(err) != constants.ErrCodeConfigInvalid {
		t.Errorf("error code = %s, want %s", network.ErrorCode(err), constants.ErrCodeConfigInvalid)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := &models.NetworkConfig{
		NetworkType: constants.NetworkTypeImpact,
		Credentials: models.JSON{"account_sid": "sid", "auth_token": "t"},
	}
	if err := ValidateConfig(valid); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	invalid := &models.NetworkConfig{
		NetworkType: constants.NetworkTypeImpact,
		Credentials: models.JSON{"account_sid": "sid"},
	}
	if err := ValidateConfig(invalid); err == nil {
		t.Error("expected config error")
	}
}

func TestCapabilityMatrix(t *testing.T) {
	signatureRequired := map[string]bool{
		constants.NetworkTypeShareASale: true,
		constants.NetworkTypeCJ:         false,
		constants.NetworkTypeImpact:     true,
		constants.NetworkTypeRakuten:    false,
	}
	configs := map[string]models.JSON{
		constants.NetworkTypeShareASale: {"affiliate_id": "1", "api_token": "t", "api_secret": "s"},
		constants.NetworkTypeCJ:         {"api_token": "t", "website_id": "pid"},
		constants.NetworkTypeImpact:     {"account_sid": "sid", "auth_token": "t"},
		constants.NetworkTypeRakuten:    {"key_id": "k", "api_secret": "s", "site_id": "1"},
	}
	for networkType, credentials := range configs {
		adapter, err := New(&models.NetworkConfig{
			NetworkType: networkType,
			Credentials: credentials,
		}, nil)
		if err != nil {
			t.Fatalf("%s: %v", networkType, err)
		}
		capability := adapter.Capabilities()
		if !capability.ProductSync || !capability.CommissionSync || !capability.Webhooks {
			t.Errorf("%s: product/commission/webhook support expected", networkType)
		}
		if capability.RequiresSignature != signatureRequired[networkType] {
			t.Errorf("%s: requires_signature = %v, want %v",
				networkType, capability.RequiresSignature, signatureRequired[networkType])
		}
		if capability.MaxBatchSize <= 0 {
			t.Errorf("%s: max batch size must be positive", networkType)
		}
		if capability.RateLimits.PerMinute <= 0 {
			t.Errorf("%s: per-minute rate limit must be declared", networkType)
		}
	}
}
