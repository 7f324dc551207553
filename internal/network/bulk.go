package network

import (
	"context"
	"time"
)

// BulkError 批处理中单条记录的失败信息
type BulkError struct {
	Index     int    `json:"index"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// BulkResult 批处理汇总结果，部分成功永远保留并上报
type BulkResult struct {
	TotalRecords int           `json:"total_records"`
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []BulkError   `json:"errors"`
	Duration     time.Duration `json:"duration"`
}

// BulkOptions 批处理选项。StopOnError 为 false（默认）时，
// 某批失败后该批所有记录标记失败并继续处理后续批次。
type BulkOptions struct {
	BatchSize   int
	StopOnError bool
}

// ExecuteBulk 将记录按能力上限切块后串行处理。
// 限流器归适配器实例所有，批次之间绝不并发。
func ExecuteBulk[T any](ctx context.Context, records []T, opts BulkOptions, process func(ctx context.Context, batch []T) error) (*BulkResult, error) {
	started := time.Now()
	result := &BulkResult{TotalRecords: len(records)}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(records)
	}
	if batchSize <= 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	for start := 0; start < len(records); start += batchSize {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(started)
			return result, err
		}
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		if err := process(ctx, batch); err != nil {
			retryable := IsRetryable(err)
			for i := start; i < end; i++ {
				result.Errors = append(result.Errors, BulkError{
					Index:     i,
					Message:   err.Error(),
					Retryable: retryable,
				})
			}
			result.ErrorCount += len(batch)
			if opts.StopOnError {
				break
			}
			continue
		}
		result.SuccessCount += len(batch)
	}

	result.Duration = time.Since(started)
	return result, nil
}
