// Package metrics exports repository call metrics through OpenTelemetry
// and a Prometheus scrape handler.
package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/leafsii/repokit/pkg/repository"
)

// Metrics implements repository.Observer.
type Metrics struct {
	Calls         metric.Int64Counter
	CallDuration  metric.Float64Histogram
	CallErrors    metric.Int64Counter
	Registrations metric.Int64Counter
	HTTPRequests  metric.Int64Counter
}

// Setup creates the instruments on a private Prometheus registry and
// returns the handler that serves it. The meter provider is also
// installed as the global otel provider.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.Calls, err = meter.Int64Counter(
		"repokit_calls_total",
		metric.WithDescription("Total number of repository method calls"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CallDuration, err = meter.Float64Histogram(
		"repokit_call_duration_seconds",
		metric.WithDescription("Repository method call duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CallErrors, err = meter.Int64Counter(
		"repokit_call_errors_total",
		metric.WithDescription("Total number of repository method calls that failed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Registrations, err = meter.Int64Counter(
		"repokit_registrations_total",
		metric.WithDescription("Total number of repositories registered"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequests, err = meter.Int64Counter(
		"repokit_http_requests_total",
		metric.WithDescription("Total number of introspection API requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) ObserveCall(repo, method, route string, elapsed time.Duration, err error) {
	ctx := context.Background()
	labels := metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("method", method),
		attribute.String("route", route),
	)

	m.Calls.Add(ctx, 1, labels)
	m.CallDuration.Record(ctx, elapsed.Seconds(), labels)
	if err != nil {
		m.CallErrors.Add(ctx, 1, labels)
	}
}

func (m *Metrics) ObserveRegistration(repo, entity string) {
	m.Registrations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("entity", entity),
	))
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int) {
	m.HTTPRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	))
}

var _ repository.Observer = (*Metrics)(nil)
