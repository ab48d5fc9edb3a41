package service

import (
	"time"

	"colorgame/models"
)

// Metrics receives lifecycle and wallet measurements
type Metrics interface {
	RecordRoundOpened(periodID string)
	RecordRoundSettled(summary *models.SettlementSummary, duration time.Duration)
	RecordSettlementFailure(stage string)
	RecordBetPlaced(betType models.BetType)
	RecordBetRejected(reason string)
	RecordBalanceTransaction(transactionType models.TransactionType)
}

type noopMetrics struct{}

func (noopMetrics) RecordRoundOpened(string) {}
func (noopMetrics) RecordRoundSettled(*models.SettlementSummary, time.Duration) {}
func (noopMetrics) RecordSettlementFailure(string) {}
func (noopMetrics) RecordBetPlaced(models.BetType) {}
func (noopMetrics) RecordBetRejected(string) {}
func (noopMetrics) RecordBalanceTransaction(models.TransactionType) {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
