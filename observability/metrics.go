package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"colorgame/config"
	"colorgame/models"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const serviceName = "colorgame"

// MetricsProvider records round, bet and wallet metrics with OpenTelemetry.
// It satisfies service.Metrics; every method is a no-op until Initialize
// succeeds with metrics enabled.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	roundsOpenedCounter        metric.Int64Counter
	roundsSettledCounter       metric.Int64Counter
	settlementFailureCounter   metric.Int64Counter
	settlementDurationHist     metric.Float64Histogram
	betsPlacedCounter          metric.Int64Counter
	betsRejectedCounter        metric.Int64Counter
	betsSettledCounter         metric.Int64Counter
	amountStakedCounter        metric.Float64Counter
	amountPaidCounter          metric.Float64Counter
	natsMessagesPublishedCount metric.Int64Counter
	balanceTransactionsCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(mp.config.OTelExportInterval))
	if err := mp.initializeWithReader(reader); err != nil {
		return err
	}

	otel.SetMeterProvider(mp.meterProvider)
	log.Info("Metrics provider initialized successfully")
	return nil
}

// initializeWithReader builds the meter provider around reader. Callers hold mu.
func (mp *MetricsProvider) initializeWithReader(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter(serviceName)

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.roundsOpenedCounter, RoundsOpenedTotal, "Total number of rounds opened"},
		{&mp.roundsSettledCounter, RoundsSettledTotal, "Total number of rounds settled"},
		{&mp.settlementFailureCounter, SettlementFailureTotal, "Total number of failed close transitions"},
		{&mp.betsPlacedCounter, BetsPlacedTotal, "Total number of accepted bets"},
		{&mp.betsRejectedCounter, BetsRejectedTotal, "Total number of rejected bets"},
		{&mp.betsSettledCounter, BetsSettledTotal, "Total number of settled bets"},
		{&mp.natsMessagesPublishedCount, NATSMessagesPublishedTotal, "Total number of NATS messages published"},
		{&mp.balanceTransactionsCounter, BalanceTransactionsTotal, "Total number of balance transactions"},
	}
	for _, c := range counters {
		*c.target, err = mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	mp.amountStakedCounter, err = mp.meter.Float64Counter(
		AmountStakedTotal,
		metric.WithDescription("Total amount staked on settled rounds"),
	)
	if err != nil {
		return fmt.Errorf("failed to create staked counter: %w", err)
	}

	mp.amountPaidCounter, err = mp.meter.Float64Counter(
		AmountPaidTotal,
		metric.WithDescription("Total amount paid out to winners"),
	)
	if err != nil {
		return fmt.Errorf("failed to create paid out counter: %w", err)
	}

	mp.settlementDurationHist, err = mp.meter.Float64Histogram(
		SettlementDuration,
		metric.WithDescription("Duration of the close transition in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create settlement duration histogram: %w", err)
	}

	return nil
}

// Shutdown flushes and shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.enabled = false
	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordRoundOpened counts a newly opened round
func (mp *MetricsProvider) RecordRoundOpened(periodID string) {
	if !mp.isEnabled() {
		return
	}
	mp.roundsOpenedCounter.Add(context.Background(), 1)
}

// RecordRoundSettled records a completed close transition
func (mp *MetricsProvider) RecordRoundSettled(summary *models.SettlementSummary, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	ctx := context.Background()
	mp.roundsSettledCounter.Add(ctx, 1)
	mp.settlementDurationHist.Record(ctx, duration.Seconds())

	losers := summary.BetCount - summary.Winners
	mp.betsSettledCounter.Add(ctx, int64(summary.Winners), metric.WithAttributes(attribute.String(LabelResult, string(models.BetResultWin))))
	mp.betsSettledCounter.Add(ctx, int64(losers), metric.WithAttributes(attribute.String(LabelResult, string(models.BetResultLoss))))

	staked, _ := summary.TotalStaked.Float64()
	paid, _ := summary.TotalPaidOut.Float64()
	mp.amountStakedCounter.Add(ctx, staked)
	mp.amountPaidCounter.Add(ctx, paid)
}

// RecordSettlementFailure counts a failed close transition by stage
func (mp *MetricsProvider) RecordSettlementFailure(stage string) {
	if !mp.isEnabled() {
		return
	}
	mp.settlementFailureCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelStage, stage)),
	)
}

// RecordBetPlaced counts an accepted bet
func (mp *MetricsProvider) RecordBetPlaced(betType models.BetType) {
	if !mp.isEnabled() {
		return
	}
	mp.betsPlacedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelType, string(betType))),
	)
}

// RecordBetRejected counts a rejected bet by reason
func (mp *MetricsProvider) RecordBetRejected(reason string) {
	if !mp.isEnabled() {
		return
	}
	mp.betsRejectedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelReason, reason)),
	)
}

// RecordBalanceTransaction records a balance transaction
func (mp *MetricsProvider) RecordBalanceTransaction(transactionType models.TransactionType) {
	if !mp.isEnabled() {
		return
	}
	mp.balanceTransactionsCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelType, string(transactionType))),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}
	mp.natsMessagesPublishedCount.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}
