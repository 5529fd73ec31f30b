package observability

// Metric name prefixes
const (
	MetricPrefix = "roombot"
)

// Metric names
const (
	EventsTotal              = MetricPrefix + ".events_total"
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"
	WagersOpen               = MetricPrefix + ".wagers.open"
	CascadeAwarded           = MetricPrefix + ".cascade.awarded"
	LevelUpsTotal            = MetricPrefix + ".levels.level_ups_total"
	BlacklistsTotal          = MetricPrefix + ".verification.blacklists_total"
)

// Label keys
const (
	LabelEventType       = "event_type"
	LabelTransactionType = "transaction_type"
	LabelWagerState      = "wager_state"
)
