package provider

import (
	"github.com/affisync/internal/cache"
	"github.com/affisync/internal/config"
	"github.com/affisync/internal/logger"
	"github.com/affisync/internal/models"
	"github.com/affisync/internal/queue"
	"github.com/affisync/internal/repository"
	"github.com/affisync/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	NetworkConfigRepo repository.NetworkConfigRepository
	ProductRepo       repository.ProductRepository
	ConversionRepo    repository.ConversionRepository
	CommissionRepo    repository.CommissionRepository
	SyncOperationRepo repository.SyncOperationRepository

	// Services
	NetworkService *service.NetworkService
	WebhookService *service.WebhookService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.NetworkConfigRepo = repository.NewNetworkConfigRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.ConversionRepo = repository.NewConversionRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.SyncOperationRepo = repository.NewSyncOperationRepository(db)
}

func (c *Container) initServices() {
	c.NetworkService = service.NewNetworkService(
		c.Config,
		c.NetworkConfigRepo,
		c.ProductRepo,
		c.ConversionRepo,
		c.CommissionRepo,
		c.SyncOperationRepo,
	)
	c.WebhookService = service.NewWebhookService(
		c.Config,
		c.NetworkConfigRepo,
		c.ProductRepo,
		c.ConversionRepo,
	)
}
