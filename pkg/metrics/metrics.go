package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "filetag-indexer"

// Metrics 指标集合，通过Prometheus端点暴露
type Metrics struct {
	provider *sdkmetric.MeterProvider

	eventsReceived metric.Int64Counter
	eventsDropped  metric.Int64Counter
	intentsApplied metric.Int64Counter
	tagsAttached   metric.Int64Counter
	tagsDetached   metric.Int64Counter
}

// Setup 初始化指标体系，返回指标集合与HTTP暴露端点
func Setup() (*Metrics, http.Handler, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(meterName)

	m := &Metrics{provider: provider}

	if m.eventsReceived, err = meter.Int64Counter("filetag_events_received_total",
		metric.WithDescription("Raw filesystem events received per watcher")); err != nil {
		return nil, nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.eventsDropped, err = meter.Int64Counter("filetag_events_dropped_total",
		metric.WithDescription("Events suppressed as noise or out of scope")); err != nil {
		return nil, nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.intentsApplied, err = meter.Int64Counter("filetag_intents_applied_total",
		metric.WithDescription("Index mutation intents applied, by action")); err != nil {
		return nil, nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.tagsAttached, err = meter.Int64Counter("filetag_tags_attached_total",
		metric.WithDescription("Tags attached by auto taggers")); err != nil {
		return nil, nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.tagsDetached, err = meter.Int64Counter("filetag_tags_detached_total",
		metric.WithDescription("Tags detached by auto taggers")); err != nil {
		return nil, nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return m, promhttp.Handler(), nil
}

// Shutdown 关闭指标Provider
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// EventReceived 记录收到一个原始事件
func (m *Metrics) EventReceived(watcherName string) {
	if m == nil {
		return
	}
	m.eventsReceived.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("watcher", watcherName)))
}

// EventDropped 记录一个被抑制或越界的事件
func (m *Metrics) EventDropped(watcherName, reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("watcher", watcherName),
			attribute.String("reason", reason)))
}

// IntentApplied 记录一次索引变更
func (m *Metrics) IntentApplied(action string) {
	if m == nil {
		return
	}
	m.intentsApplied.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("action", action)))
}

// TagAttached 记录一次自动附加标签
func (m *Metrics) TagAttached() {
	if m == nil {
		return
	}
	m.tagsAttached.Add(context.Background(), 1)
}

// TagDetached 记录一次自动摘除标签
func (m *Metrics) TagDetached() {
	if m == nil {
		return
	}
	m.tagsDetached.Add(context.Background(), 1)
}
