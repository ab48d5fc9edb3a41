package observability

import (
	"context"
	"testing"
	"time"

	"colorgame/config"
	"colorgame/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	t.Helper()
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true

	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.initializeWithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func intSum(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = false

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))
	assert.False(t, mp.isEnabled())

	// instruments are nil; these must not panic
	mp.RecordRoundOpened("20240309600")
	mp.RecordBetPlaced(models.BetTypeColor)
	mp.RecordSettlementFailure("commit")
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "statsd"

	err := NewMetricsProvider(cfg).Initialize(context.Background())
	assert.ErrorContains(t, err, "unknown exporter type")
}

func TestMetricsProvider_RecordsLifecycle(t *testing.T) {
	mp, reader := newTestProvider(t)

	mp.RecordRoundOpened("20240309600")
	mp.RecordBetPlaced(models.BetTypeColor)
	mp.RecordBetPlaced(models.BetTypeNumber)
	mp.RecordBetRejected("closed")
	mp.RecordBalanceTransaction(models.TransactionTypeBetStake)
	mp.RecordNATSMessagePublished("bet_placed")
	mp.RecordSettlementFailure("begin")
	mp.RecordRoundSettled(&models.SettlementSummary{
		PeriodID:     "20240309600",
		BetCount:     3,
		Winners:      1,
		TotalStaked:  decimal.NewFromInt(30),
		TotalPaidOut: decimal.NewFromInt(20),
	}, 15*time.Millisecond)

	data := collect(t, reader)
	assert.Equal(t, int64(1), intSum(t, data[RoundsOpenedTotal]))
	assert.Equal(t, int64(1), intSum(t, data[RoundsSettledTotal]))
	assert.Equal(t, int64(2), intSum(t, data[BetsPlacedTotal]))
	assert.Equal(t, int64(1), intSum(t, data[BetsRejectedTotal]))
	assert.Equal(t, int64(3), intSum(t, data[BetsSettledTotal]))
	assert.Equal(t, int64(1), intSum(t, data[SettlementFailureTotal]))
	assert.Equal(t, int64(1), intSum(t, data[BalanceTransactionsTotal]))
	assert.Equal(t, int64(1), intSum(t, data[NATSMessagesPublishedTotal]))

	paid, ok := data[AmountPaidTotal].(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, paid.DataPoints, 1)
	assert.InDelta(t, 20.0, paid.DataPoints[0].Value, 0.001)

	hist, ok := data[SettlementDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}
