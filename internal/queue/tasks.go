package queue

import (
	"encoding/json"

	"github.com/affisync/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskNetworkSync 商品同步任务
	TaskNetworkSync = constants.TaskNetworkSync
	// TaskConversionPoll 转化轮询任务
	TaskConversionPoll = constants.TaskConversionPoll
)

// NetworkSyncPayload 商品同步任务载荷
type NetworkSyncPayload struct {
	ConfigID uint `json:"config_id"`
	FullSync bool `json:"full_sync"`
}

// ConversionPollPayload 转化轮询任务载荷
type ConversionPollPayload struct {
	ConfigID uint `json:"config_id"`
}

// NewNetworkSyncTask 创建商品同步任务
func NewNetworkSyncTask(payload NetworkSyncPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNetworkSync, body), nil
}

// NewConversionPollTask 创建转化轮询任务
func NewConversionPollTask(payload ConversionPollPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConversionPoll, body), nil
}
