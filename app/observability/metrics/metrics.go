package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	AuthRequestsTotal   metric.Int64Counter
	AuthDurationSeconds metric.Float64Histogram
	TokensIssuedTotal   metric.Int64Counter
	TokensRevokedTotal  metric.Int64Counter
	BreakerOpenTotal    metric.Int64Counter
	DbQueryErrorsTotal  metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
	initErr    error
)

// InitProvider wires the Prometheus exporter into the global otel meter
// provider and returns the handler serving the /metrics endpoint.
func InitProvider() (http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("go-auth-sessions"),
		)),
	)
	otel.SetMeterProvider(mp)
	return promhttp.Handler(), nil
}

// Init initializes the global metric instruments once. InitProvider must
// run first so the instruments bind to the Prometheus-backed provider.
func Init() (*AppMetrics, error) {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("go-auth-sessions")
		m := &AppMetrics{}

		m.AuthRequestsTotal, initErr = meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total auth operations completed, by operation and result"),
			metric.WithUnit("{request}"),
		)
		if initErr != nil {
			return
		}

		m.AuthDurationSeconds, initErr = meter.Float64Histogram(
			"auth_duration_seconds",
			metric.WithDescription("Duration of auth operations in seconds"),
			metric.WithUnit("s"),
		)
		if initErr != nil {
			return
		}

		m.TokensIssuedTotal, initErr = meter.Int64Counter(
			"refresh_tokens_issued_total",
			metric.WithDescription("Total refresh tokens issued"),
			metric.WithUnit("{token}"),
		)
		if initErr != nil {
			return
		}

		m.TokensRevokedTotal, initErr = meter.Int64Counter(
			"refresh_tokens_revoked_total",
			metric.WithDescription("Total refresh tokens revoked"),
			metric.WithUnit("{token}"),
		)
		if initErr != nil {
			return
		}

		m.BreakerOpenTotal, initErr = meter.Int64Counter(
			"breaker_open_transitions_total",
			metric.WithDescription("Times a circuit breaker transitioned to open"),
		)
		if initErr != nil {
			return
		}

		m.DbQueryErrorsTotal, initErr = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if initErr != nil {
			return
		}

		appMetrics = m
	})
	return appMetrics, initErr
}
