package observability

// Metric name prefix
const (
	MetricPrefix = "colorgame"
)

// Metric names
const (
	// Round metrics
	RoundsOpenedTotal      = MetricPrefix + ".rounds.opened_total"
	RoundsSettledTotal     = MetricPrefix + ".rounds.settled_total"
	SettlementFailureTotal = MetricPrefix + ".rounds.settlement_failures_total"
	SettlementDuration     = MetricPrefix + ".rounds.settlement_duration"

	// Bet metrics
	BetsPlacedTotal   = MetricPrefix + ".bets.placed_total"
	BetsRejectedTotal = MetricPrefix + ".bets.rejected_total"
	BetsSettledTotal  = MetricPrefix + ".bets.settled_total"
	AmountStakedTotal = MetricPrefix + ".bets.staked_total"
	AmountPaidTotal   = MetricPrefix + ".bets.paid_out_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Balance metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelStage     = "stage"
	LabelReason    = "reason"
	LabelResult    = "result"
)
