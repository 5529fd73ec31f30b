package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roombot/config"
	"roombot/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider turns committed engine events into OpenTelemetry metrics
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	eventsCounter       metric.Int64Counter
	transactionsCounter metric.Int64Counter
	wagersOpenGauge     metric.Int64UpDownCounter
	cascadeAwarded      metric.Float64Counter
	levelUpsCounter     metric.Int64Counter
	blacklistsCounter   metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the meter provider with a periodic stdout exporter
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return nil
	}

	exporter, err := stdoutmetric.New()
	if err != nil {
		return fmt.Errorf("failed to create console exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(mp.config.MetricsInterval))
	return mp.InitializeWithReader(ctx, reader)
}

// InitializeWithReader sets up the meter provider over the given reader
func (mp *MetricsProvider) InitializeWithReader(ctx context.Context, reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
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
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter(MetricPrefix)

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	log.WithField("interval", mp.config.MetricsInterval).Info("Metrics provider initialized")
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.eventsCounter, err = mp.meter.Int64Counter(EventsTotal,
		metric.WithDescription("Committed engine events"))
	if err != nil {
		return err
	}

	mp.transactionsCounter, err = mp.meter.Int64Counter(BalanceTransactionsTotal,
		metric.WithDescription("Balance mutations by transaction type"))
	if err != nil {
		return err
	}

	mp.wagersOpenGauge, err = mp.meter.Int64UpDownCounter(WagersOpen,
		metric.WithDescription("Duels waiting for an acceptor"))
	if err != nil {
		return err
	}

	mp.cascadeAwarded, err = mp.meter.Float64Counter(CascadeAwarded,
		metric.WithDescription("Points awarded through invite cascades"))
	if err != nil {
		return err
	}

	mp.levelUpsCounter, err = mp.meter.Int64Counter(LevelUpsTotal,
		metric.WithDescription("Level ups"))
	if err != nil {
		return err
	}

	mp.blacklistsCounter, err = mp.meter.Int64Counter(BlacklistsTotal,
		metric.WithDescription("Accounts blacklisted by verification"))
	return err
}

// Attach records every committed bus event
func (mp *MetricsProvider) Attach(bus *events.Bus) {
	bus.SubscribeAll(mp.Record)
}

// Record updates the instruments for one event
func (mp *MetricsProvider) Record(ctx context.Context, event events.Event) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	if !mp.initialized {
		return
	}

	mp.eventsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelEventType, string(event.Type()))))

	switch e := event.(type) {
	case events.BalanceChangeEvent:
		mp.transactionsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelTransactionType, string(e.TransactionType))))
	case events.WagerCreatedEvent:
		mp.wagersOpenGauge.Add(ctx, 1)
	case events.WagerSettledEvent:
		mp.wagersOpenGauge.Add(ctx, -1, metric.WithAttributes(attribute.String(LabelWagerState, "settled")))
	case events.WagerClosedEvent:
		mp.wagersOpenGauge.Add(ctx, -1, metric.WithAttributes(attribute.String(LabelWagerState, string(e.State))))
	case events.InviteActivatedEvent:
		mp.cascadeAwarded.Add(ctx, e.TotalAwarded.InexactFloat64())
	case events.LevelUpEvent:
		mp.levelUpsCounter.Add(ctx, int64(e.NewLevel-e.OldLevel))
	case events.AccountBlacklistedEvent:
		mp.blacklistsCounter.Add(ctx, 1)
	}
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := mp.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	mp.initialized = false
	return nil
}
