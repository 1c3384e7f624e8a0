package metrics

import "context"

const (
	StorageOperationsTotal   = "storage_operations_total"
	StorageOperationDuration = "storage_operation_duration_seconds"
	StorageTransferredBytes  = "storage_transferred_bytes_total"
)

// StorageMetrics are the metrics recorded for every storage operation.
func StorageMetrics() []CustomMetric {
	return []CustomMetric{
		{
			Name:        StorageOperationsTotal,
			Description: "Completed storage operations by operation and outcome",
			Type:        Counter,
			Labels:      []string{"operation", "outcome"},
		},
		{
			Name:        StorageOperationDuration,
			Description: "Duration of storage operations in seconds",
			Type:        Histogram,
			Labels:      []string{"operation"},
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0},
		},
		{
			Name:        StorageTransferredBytes,
			Description: "Bytes moved by successful uploads and downloads",
			Type:        Counter,
			Labels:      []string{"operation"},
		},
	}
}

// NewStorageCollector returns a collector with the storage metrics registered.
func NewStorageCollector(namespace string) (*PrometheusCollector, error) {
	c := NewPrometheusCollector(namespace)
	if err := c.RegisterCustomMetrics(StorageMetrics()...); err != nil {
		return nil, err
	}
	return c, nil
}

// RecordStorageOperation records one finished operation. outcome is "success" or an error code.
func RecordStorageOperation(ctx context.Context, c Collector, operation, outcome string, seconds float64, bytes int64) {
	if c == nil {
		return
	}

	c.IncrementCounter(ctx, StorageOperationsTotal, map[string]string{"operation": operation, "outcome": outcome}, 1)
	c.ObserveHistogram(ctx, StorageOperationDuration, map[string]string{"operation": operation}, seconds)

	if outcome == "success" && bytes > 0 {
		c.IncrementCounter(ctx, StorageTransferredBytes, map[string]string{"operation": operation}, float64(bytes))
	}
}
