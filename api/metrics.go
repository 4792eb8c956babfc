package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "taskweb/api"
	requestEventName   = "taskweb.http.request"
	requestEventDomain = "app"
	observabilityEvent = "observability.event"
	metricsContextKey  = "request.metrics"

	attrRoute           = "http.route"
	attrMethod          = "http.method"
	attrStatusCode      = "http.status_code"
	attrTotalMillis     = "taskweb.request.total_ms"
	attrStoreMillis     = "taskweb.request.store_ms"
	attrGatewayMillis   = "taskweb.request.gateway_ms"
	attrRecordsReturned = "taskweb.request.records_returned"
	attrErrorStage      = "taskweb.request.error_stage"
	attrErrorMessage    = "error.message"
)

type requestMetrics struct {
	logger          *log.Logger
	span            trace.Span
	route           string
	method          string
	start           time.Time
	storeDuration   time.Duration
	gatewayDuration time.Duration
	recordsReturned int
	errorStage      string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(attrRoute, route),
			attribute.String(attrMethod, method),
		),
	)
	return &requestMetrics{
		logger: logger,
		span:   span,
		route:  route,
		method: method,
		start:  time.Now(),
	}, ctx
}

// ObserveStore adds time spent in record store calls.
func (m *requestMetrics) ObserveStore(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.storeDuration += duration
}

// ObserveGateway adds time spent calling the identity gateway.
func (m *requestMetrics) ObserveGateway(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.gatewayDuration += duration
}

func (m *requestMetrics) SetRecordsReturned(count int) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.recordsReturned = count
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if m == nil || stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the request span and writes the observability event.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		attrRoute:           m.route,
		attrMethod:          m.method,
		attrStatusCode:      status,
		attrTotalMillis:     durationToMillis(time.Since(m.start)),
		attrRecordsReturned: m.recordsReturned,
	}
	kvs := []attribute.KeyValue{
		attribute.String(attrRoute, m.route),
		attribute.String(attrMethod, m.method),
		attribute.Int(attrStatusCode, status),
		attribute.Float64(attrTotalMillis, attrs[attrTotalMillis].(float64)),
		attribute.Int(attrRecordsReturned, m.recordsReturned),
	}
	if m.storeDuration > 0 {
		ms := durationToMillis(m.storeDuration)
		attrs[attrStoreMillis] = ms
		kvs = append(kvs, attribute.Float64(attrStoreMillis, ms))
	}
	if m.gatewayDuration > 0 {
		ms := durationToMillis(m.gatewayDuration)
		attrs[attrGatewayMillis] = ms
		kvs = append(kvs, attribute.Float64(attrGatewayMillis, ms))
	}
	if m.errorStage != "" {
		attrs[attrErrorStage] = m.errorStage
		kvs = append(kvs, attribute.String(attrErrorStage, m.errorStage))
	}
	if err != nil {
		attrs[attrErrorMessage] = err.Error()
		kvs = append(kvs, attribute.String(attrErrorMessage, err.Error()))
	}

	m.span.SetAttributes(kvs...)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, kvs...)
	m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))

	switch {
	case err != nil:
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusInternalServerError:
		m.span.SetStatus(codes.Error, http.StatusText(status))
	default:
		m.span.SetStatus(codes.Ok, "")
	}

	sc := m.span.SpanContext()
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"body":            m.method + " " + m.route,
		"attributes":      attrs,
	}
	if sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
	}
	if sc.HasSpanID() {
		fields["span_id"] = sc.SpanID().String()
	}
	entry := m.logger.WithFields(fields)
	switch severityNumber {
	case severityError:
		entry.Error(observabilityEvent)
	case severityWarn:
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

const (
	severityInfo  = 9
	severityWarn  = 13
	severityError = 17
)

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", severityError
	case status >= http.StatusBadRequest:
		return "WARN", severityWarn
	default:
		return "INFO", severityInfo
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

// observe wraps a route with a request span and observability event.
func observe(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			metrics, ctx := newRequestMetrics(req.Context(), logger, req.Method, c.Path())
			c.SetRequest(req.WithContext(ctx))
			c.Set(metricsContextKey, metrics)

			// The error is handled here so the logged status is the one sent.
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			metrics.Log(c.Response().Status, err)
			return nil
		}
	}
}

// metricsFrom returns the metrics of the request or nil, which is safe to use.
func metricsFrom(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsContextKey).(*requestMetrics)
	return m
}
