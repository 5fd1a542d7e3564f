package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nnfp"

var (
	descSessionsActive = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "sessions", "active"),
		"Sessions currently open.", nil, nil)
	descSessionsTotal = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "sessions", "total"),
		"Sessions accepted since start.", nil, nil)
	descBytes = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "network", "bytes_total"),
		"Frame bytes moved, by direction.", []string{"direction"}, nil)
	descTransfers = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "transfers", "completed_total"),
		"Transmissions finished with Eof, by direction.", []string{"direction"}, nil)
	descAuthFailures = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "auth", "failures_total"),
		"AuthFailure replies sent.", nil, nil)
	descProtocolErrors = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "protocol", "violations_total"),
		"Sessions terminated for protocol violations.", nil, nil)
	descErrors = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "errors_total"),
		"Errors recorded.", nil, nil)
)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descSessionsActive
	ch <- descSessionsTotal
	ch <- descBytes
	ch <- descTransfers
	ch <- descAuthFailures
	ch <- descProtocolErrors
	ch <- descErrors
}

// Collect implements prometheus.Collector by reading the atomic
// counters at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Snapshot()
	ch <- prometheus.MustNewConstMetric(descSessionsActive, prometheus.GaugeValue, float64(s.SessionsActive))
	ch <- prometheus.MustNewConstMetric(descSessionsTotal, prometheus.CounterValue, float64(s.SessionsTotal))
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue, float64(s.BytesIn), "in")
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue, float64(s.BytesOut), "out")
	ch <- prometheus.MustNewConstMetric(descTransfers, prometheus.CounterValue, float64(s.UploadsCompleted), "upload")
	ch <- prometheus.MustNewConstMetric(descTransfers, prometheus.CounterValue, float64(s.DownloadsCompleted), "download")
	ch <- prometheus.MustNewConstMetric(descAuthFailures, prometheus.CounterValue, float64(s.AuthFailures))
	ch <- prometheus.MustNewConstMetric(descProtocolErrors, prometheus.CounterValue, float64(s.ProtocolErrors))
	ch <- prometheus.MustNewConstMetric(descErrors, prometheus.CounterValue, float64(s.ErrorsTotal))
}

// Handler returns an http.Handler serving c in the Prometheus text
// format.  It uses a private registry so handlers for different
// collectors never clash.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
