package httpkit

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics records Prometheus request metrics.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics creates request metrics under namespace and registers them with
// reg. A nil reg gets a fresh registry.
func NewMetrics(reg *prometheus.Registry, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total requests",
			},
			[]string{"method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration, including the response body",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Requests currently being served",
			},
		),
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Middleware returns middleware that counts requests and observes their
// duration. A request is in flight until its response body is done.
func (m *Metrics) Middleware() Middleware {
	return func(next Handler[Stream]) Handler[Stream] {
		return HandlerFunc[Stream](func(ctx context.Context, req *Request[Stream], resp *ResponseBuilder) Responder {
			start := time.Now()
			m.inFlight.Inc()
			pending := resolve(next.Handle(ctx, req, resp))

			return Defer(func(ctx context.Context) (*Response[Stream], error) {
				out, err := pending.Await(ctx)
				if err != nil {
					m.observe(req.Method, http.StatusInternalServerError, start)
					return nil, err
				}
				body := tapStream(out.Body, func(int64, error) {
					m.observe(req.Method, out.Status, start)
				})
				return withBody(out, body), nil
			})
		})
	}
}

func (m *Metrics) observe(method string, status int, start time.Time) {
	m.inFlight.Dec()
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() Handler[Empty] {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	return HandlerFunc[Empty](func(_ context.Context, _ *Request[Empty], resp *ResponseBuilder) Responder {
		families, err := m.registry.Gather()
		if err != nil {
			return Fail(fmt.Errorf("gather metrics: %w", err))
		}
		var buf bytes.Buffer
		enc := expfmt.NewEncoder(&buf, format)
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return Fail(fmt.Errorf("encode metrics: %w", err))
			}
		}
		return resp.ContentType(string(format)).Body(Bytes(buf.Bytes()))
	})
}
