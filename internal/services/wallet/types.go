package wallet

import (
	"time"

	"waypool/internal/models"
)

// DepositResult is the handle for an in-flight wallet top-up. The client
// completes the charge against the gateway with ClientSecret, then the
// gateway callback confirms it.
type DepositResult struct {
	Status        string        `json:"status"`
	TransactionID uint          `json:"transaction_id"`
	CaptureID     string        `json:"capture_id,omitempty"`
	ClientSecret  string        `json:"client_secret,omitempty"`
	Balance       *models.Money `json:"balance,omitempty"`
}

// MetricsCollector receives wallet operation metrics.
type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordTransaction(txType string, amount models.Money)
	RecordError(operation, errType string)
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordTransaction(string, models.Money)       {}
func (n *NoopMetricsCollector) RecordError(string, string)                   {}
func (n *NoopMetricsCollector) RecordCacheHit(string)                        {}
func (n *NoopMetricsCollector) RecordCacheMiss(string)                       {}
