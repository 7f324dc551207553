package worker

import (
	"context"
	"errors"
	"time"

	"github.com/affisync/internal/config"
	"github.com/affisync/internal/constants"
	"github.com/affisync/internal/logger"
	"github.com/affisync/internal/queue"
	"github.com/affisync/internal/repository"

	"github.com/hibiken/asynq"
)

const dueSyncBatchSize = 20

// Service 异步队列服务，附带到期同步与转化轮询调度循环
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	syncCfg  config.SyncConfig
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		syncCfg:  cfg.Sync,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.NetworkService != nil {
		go s.runDueSyncLoop(ctx)
		go s.runConversionPollLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runDueSyncLoop 扫描到期的自动同步配置并入队
func (s *Service) runDueSyncLoop(ctx context.Context) {
	tick := time.Duration(s.syncCfg.SchedulerTickSeconds) * time.Second
	if tick <= 0 {
		tick = time.Minute
	}
	runOnce := func() {
		configs, err := s.consumer.NetworkService.DueSyncConfigs(time.Now(), dueSyncBatchSize)
		if err != nil {
			logger.Warnw("worker_due_sync_scan_failed", "error", err)
			return
		}
		for _, cfg := range configs {
			err := s.consumer.QueueClient.EnqueueNetworkSync(queue.NetworkSyncPayload{
				ConfigID: cfg.ID,
				FullSync: false,
			})
			if err != nil {
				logger.Warnw("worker_due_sync_enqueue_failed", "config_id", cfg.ID, "error", err)
				continue
			}
			logger.Infow("worker_due_sync_enqueued",
				"config_id", cfg.ID,
				"network_type", cfg.NetworkType,
				"tenant_id", cfg.TenantID,
			)
		}
	}
	runOnce()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runConversionPollLoop 周期性为启用的配置入队转化轮询任务
func (s *Service) runConversionPollLoop(ctx context.Context) {
	interval := time.Duration(s.syncCfg.ConversionPollIntervalMins) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	runOnce := func() {
		configs, _, err := s.consumer.NetworkService.ListConfigs(repository.NetworkConfigListFilter{
			Status:   constants.NetworkConfigStatusActive,
			Page:     1,
			PageSize: 100,
		})
		if err != nil {
			logger.Warnw("worker_conversion_poll_scan_failed", "error", err)
			return
		}
		for _, cfg := range configs {
			err := s.consumer.QueueClient.EnqueueConversionPoll(queue.ConversionPollPayload{ConfigID: cfg.ID})
			if err != nil {
				logger.Warnw("worker_conversion_poll_enqueue_failed", "config_id", cfg.ID, "error", err)
			}
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
