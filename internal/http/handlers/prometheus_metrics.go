package handlers

import (
	"bytes"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"

	httpctx "proxystats/internal/http/ctx"
)

// routePathKey is where the router stores the matched route when
// SaveMatchedRoutePath is enabled.
var routePathKey = router.MatchedRoutePathParam

var (
	requestsTotal          *prometheus.CounterVec
	requestDurationBuckets *prometheus.HistogramVec
)

// InitPrometheusMetrics registers the HTTP request collectors with reg.
// Until it is called requests are not counted.
func InitPrometheusMetrics(reg prometheus.Registerer) {
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "proxystats",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests served.",
		},
		[]string{"path", "method", "status"},
	)
	requestDurationBuckets = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "proxystats",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"path", "method"},
	)
	reg.MustRegister(requestsTotal, requestDurationBuckets)
}

func observeRequest(ctx *fasthttp.RequestCtx, elapsed time.Duration) {
	if requestsTotal == nil {
		return
	}
	// The matched route keeps label cardinality bounded.
	path, _ := ctx.UserValue(routePathKey).(string)
	if path == "" {
		path = "unmatched"
	}
	method := string(ctx.Method())
	requestsTotal.WithLabelValues(path, method, strconv.Itoa(ctx.Response.StatusCode())).Inc()
	requestDurationBuckets.WithLabelValues(path, method).Observe(elapsed.Seconds())
}

// MetricsHandler serves everything in g in the text exposition format.
func MetricsHandler(g prometheus.Gatherer) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		metricFamilies, err := g.Gather()
		if err != nil {
			httpctx.Logger(ctx).Error().Err(err).Msg("failed to gather metrics")
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to gather metrics")
			return
		}

		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, format)
		for _, mf := range metricFamilies {
			if err := encoder.Encode(mf); err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(format))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}
