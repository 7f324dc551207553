package network

import (
	"context"
	"testing"
)

func TestExecuteBulkAllSucceed(t *testing.T) {
	records := []string{"a", "b", "c", "d", "e"}
	var batches [][]string
	result, err := ExecuteBulk(context.Background(), records, BulkOptions{BatchSize: 2},
		func(ctx context.Context, batch []string) error {
			batches = append(batches, batch)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRecords != 5 || result.SuccessCount != 5 || result.ErrorCount != 0 {
		t.Errorf("result = %+v, want 5/5/0", result)
	}
	if len(batches) != 3 {
		t.Errorf("batches = %d, want 3", len(batches))
	}
	if len(batches[2]) != 1 {
		t.Errorf("last batch size = %d, want 1", len(batches[2]))
	}
}

func TestExecuteBulkPartialFailureContinues(t *testing.T) {
	records := []string{"a", "b", "c", "d", "e"}
	calls := 0
	result, err := ExecuteBulk(context.Background(), records, BulkOptions{BatchSize: 2},
		func(ctx context.Context, batch []string) error {
			calls++
			if calls >= 2 {
				return retryableErr()
			}
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessCount != 2 {
		t.Errorf("success = %d, want 2", result.SuccessCount)
	}
	if result.ErrorCount != 3 {
		t.Errorf("errors = %d, want 3 (both failing batches)", result.ErrorCount)
	}
	if result.TotalRecords != 5 {
		t.Errorf("total = %d, want 5", result.TotalRecords)
	}
	if len(result.Errors) != 3 {
		t.Fatalf("error entries = %d, want 3", len(result.Errors))
	}
	if result.Errors[0].Index != 2 {
		t.Errorf("first failed index = %d, want 2", result.Errors[0].Index)
	}
	for _, bulkErr := range result.Errors {
		if !bulkErr.Retryable {
			t.Error("retryable flag lost in bulk error")
		}
	}
}

func TestExecuteBulkStopOnError(t *testing.T) {
	records := []string{"a", "b", "c", "d", "e"}
	calls := 0
	result, err := ExecuteBulk(context.Background(), records, BulkOptions{BatchSize: 2, StopOnError: true},
		func(ctx context.Context, batch []string) error {
			calls++
			if calls == 2 {
				return permanentErr()
			}
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (stop after first failure)", calls)
	}
	if result.SuccessCount != 2 || result.ErrorCount != 2 {
		t.Errorf("result = %+v, want success 2 error 2", result)
	}
}

func TestExecuteBulkEmptyInput(t *testing.T) {
	result, err := ExecuteBulk(context.Background(), []int{}, BulkOptions{BatchSize: 10},
		func(ctx context.Context, batch []int) error {
			t.Error("process must not be called for empty input")
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalRecords != 0 || result.SuccessCount != 0 || result.ErrorCount != 0 {
		t.Errorf("result = %+v, want all zero", result)
	}
}

func TestExecuteBulkContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	records := []string{"a", "b", "c", "d"}
	calls := 0
	_, err := ExecuteBulk(ctx, records, BulkOptions{BatchSize: 2},
		func(ctx context.Context, batch []string) error {
			calls++
			cancel()
			return nil
		})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
