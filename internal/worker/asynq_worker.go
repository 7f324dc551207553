package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/affisync/internal/logger"
	"github.com/affisync/internal/network"
	"github.com/affisync/internal/provider"
	"github.com/affisync/internal/queue"
	"github.com/affisync/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNetworkSync, c.handleNetworkSync)
	mux.HandleFunc(queue.TaskConversionPoll, c.handleConversionPoll)
}

func (c *Consumer) handleNetworkSync(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_network_sync_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NetworkSyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_network_sync_unmarshal_failed", "error", err)
		return err
	}
	if payload.ConfigID == 0 {
		logger.Debugw("worker_network_sync_skip_invalid_payload", "config_id", payload.ConfigID)
		return nil
	}
	_, err := c.NetworkService.SyncNetwork(ctx, payload.ConfigID, payload.FullSync)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			logger.Debugw("worker_network_sync_skip_config_not_found", "config_id", payload.ConfigID)
			return nil
		}
		if !network.IsRetryable(err) {
			// 凭证或配置错误重试无意义，结果已回写配置状态
			logger.Warnw("worker_network_sync_permanent_failure", "config_id", payload.ConfigID, "error", err)
			return nil
		}
		logger.Warnw("worker_network_sync_failed", "config_id", payload.ConfigID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleConversionPoll(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_conversion_poll_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.ConversionPollPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_conversion_poll_unmarshal_failed", "error", err)
		return err
	}
	if payload.ConfigID == 0 {
		logger.Debugw("worker_conversion_poll_skip_invalid_payload", "config_id", payload.ConfigID)
		return nil
	}
	_, err := c.NetworkService.PollConversions(ctx, payload.ConfigID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			logger.Debugw("worker_conversion_poll_skip_config_not_found", "config_id", payload.ConfigID)
			return nil
		}
		if !network.IsRetryable(err) {
			logger.Warnw("worker_conversion_poll_permanent_failure", "config_id", payload.ConfigID, "error", err)
			return nil
		}
		logger.Warnw("worker_conversion_poll_failed", "config_id", payload.ConfigID, "error", err)
		return err
	}
	return nil
}
