package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/affisync/internal/config"
	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/network"
	"github.com/affisync/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// fakeAdapter 可编排的适配器桩，按字段配置各操作的行为
type fakeAdapter struct {
	networkType    string
	capability     network.Capability
	sink           network.EventSink
	authErr        error
	syncFn         func(ctx context.Context, opts network.SyncOptions, emit network.ProductBatchFunc) (*models.SyncOperation, error)
	lastSyncOpts   network.SyncOptions
	link           string
	conversions    []models.Conversion
	conversionsErr error
	structures     []models.CommissionStructure
	parsePayload   *models.WebhookPayload
	parseErr       error
	handleErr      error
	handleCalls    int
	signatureValid bool
}

func (f *fakeAdapter) NetworkType() string              { return f.networkType }
func (f *fakeAdapter) Capabilities() network.Capability { return f.capability }
func (f *fakeAdapter) Authenticate(ctx context.Context) error {
	return f.authErr
}

func (f *fakeAdapter) SyncProducts(ctx context.Context, opts network.SyncOptions, emit network.ProductBatchFunc) (*models.SyncOperation, error) {
	f.lastSyncOpts = opts
	if f.syncFn != nil {
		return f.syncFn(ctx, opts, emit)
	}
	op := network.NewSyncOperation("tenant-1", f.networkType, opts)
	op.Status = constants.SyncStatusCompleted
	return op, nil
}

func (f *fakeAdapter) GetProducts(ctx context.Context, query network.ProductQuery) (*network.ProductPage, error) {
	return &network.ProductPage{}, nil
}

func (f *fakeAdapter) GetProduct(ctx context.Context, networkProductID string) (*models.AffiliateProduct, error) {
	return nil, network.NewError(f.networkType, constants.ErrCodeRemote, "not found", false, nil)
}

func (f *fakeAdapter) GenerateAffiliateLink(ctx context.Context, networkProductID string, customParams map[string]string) (string, error) {
	return f.link, nil
}

func (f *fakeAdapter) TrackClick(ctx context.Context, input network.ClickInput) error {
	return nil
}

func (f *fakeAdapter) GetConversions(ctx context.Context, query network.ConversionQuery) ([]models.Conversion, error) {
	return f.conversions, f.conversionsErr
}

func (f *fakeAdapter) GetCommissionStructures(ctx context.Context) ([]models.CommissionStructure, error) {
	return f.structures, nil
}

func (f *fakeAdapter) ParseWebhook(body []byte, contentType string) (*models.WebhookPayload, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	if f.parsePayload != nil {
		return f.parsePayload, nil
	}
	return &models.WebhookPayload{
		EventType:   constants.WebhookEventConversionCreated,
		NetworkType: f.networkType,
		Timestamp:   time.Now(),
		Data:        models.JSON{},
	}, nil
}

func (f *fakeAdapter) HandleWebhook(ctx context.Context, payload *models.WebhookPayload) error {
	f.handleCalls++
	return f.handleErr
}

func (f *fakeAdapter) ValidateWebhookSignature(rawBody []byte, signature string) bool {
	return f.signatureValid
}

func (f *fakeAdapter) RateLimit() models.RateLimitInfo {
	return models.RateLimitInfo{}
}

func adapterFactoryFor(fake *fakeAdapter) AdapterFactory {
	return func(cfg *models.NetworkConfig, sink network.EventSink) (network.Adapter, error) {
		fake.sink = sink
		if fake.networkType == "" {
			fake.networkType = cfg.NetworkType
		}
		return fake, nil
	}
}

type serviceTestEnv struct {
	db             *gorm.DB
	cfg            *config.Config
	configRepo     repository.NetworkConfigRepository
	productRepo    repository.ProductRepository
	conversionRepo repository.ConversionRepository
	commissionRepo repository.CommissionRepository
	syncOpRepo     repository.SyncOperationRepository
}

func setupServiceTest(t *testing.T) *serviceTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	err = db.AutoMigrate(
		&models.NetworkConfig{},
		&models.AffiliateProduct{},
		&models.Conversion{},
		&models.CommissionStructure{},
		&models.SyncOperation{},
	)
	if err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Sync.MaxConcurrentSyncs = 2
	cfg.Sync.DefaultIntervalMinutes = 60
	cfg.Sync.ConversionLookbackDays = 7

	return &serviceTestEnv{
		db:             db,
		cfg:            cfg,
		configRepo:     repository.NewNetworkConfigRepository(db),
		productRepo:    repository.NewProductRepository(db),
		conversionRepo: repository.NewConversionRepository(db),
		commissionRepo: repository.NewCommissionRepository(db),
		syncOpRepo:     repository.NewSyncOperationRepository(db),
	}
}

func (env *serviceTestEnv) networkService() *NetworkService {
	return NewNetworkService(env.cfg, env.configRepo, env.productRepo, env.conversionRepo, env.commissionRepo, env.syncOpRepo)
}

func (env *serviceTestEnv) webhookService() *WebhookService {
	return NewWebhookService(env.cfg, env.configRepo, env.productRepo, env.conversionRepo)
}

func (env *serviceTestEnv) seedConfig(t *testing.T, networkType string, settings models.JSON) *models.NetworkConfig {
	t.Helper()
	cfg := &models.NetworkConfig{
		TenantID:    "tenant-1",
		NetworkType: networkType,
		Credentials: models.JSON{
			"affiliate_id": "12345",
			"api_token":    "token",
			"api_secret":   "secret",
		},
		Settings: settings,
		Status:   constants.NetworkConfigStatusActive,
	}
	if err := env.configRepo.Create(cfg); err != nil {
		t.Fatalf("seed config failed: %v", err)
	}
	return cfg
}
