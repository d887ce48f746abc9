// Package metrics builds a GatewayMetrics instance against one of several
// go-kit metrics backends, selected by name. Adapted directly from the
// teacher's server/metrics.go MetricsBuilder/ConnectorMetrics, renamed to
// this repo's domain and extended with the counters/gauges the additional
// modules (filter, statuscache, servermanager) need that the teacher's
// router never tracked.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/metrics"
	discardMetrics "github.com/go-kit/kit/metrics/discard"
	expvarMetrics "github.com/go-kit/kit/metrics/expvar"
	kitinflux "github.com/go-kit/kit/metrics/influx"
	kitlogrus "github.com/go-kit/kit/log/logrus"
	prometheusMetrics "github.com/go-kit/kit/metrics/prometheus"
	influx "github.com/influxdata/influxdb1-client/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Builder produces a GatewayMetrics and, for backends that push on an
// interval (InfluxDB), starts that push loop.
type Builder interface {
	Build() *GatewayMetrics
	Start(ctx context.Context) error
}

const (
	BackendExpvar     = "expvar"
	BackendPrometheus = "prometheus"
	BackendInfluxDB   = "influxdb"
	BackendDiscard    = "discard"
)

// InfluxConfig configures the InfluxDB backend's push loop.
type InfluxConfig struct {
	Interval        time.Duration
	Tags            map[string]string
	Addr            string
	Username        string
	Password        string
	Database        string
	RetentionPolicy string
}

// GatewayMetrics is every metric the gateway records, spanning the
// connection lifecycle (mirroring the teacher's ConnectorMetrics) plus the
// filter chain, status cache, and server-manager wake-up path this repo
// adds on top of it.
type GatewayMetrics struct {
	Errors              metrics.Counter
	BytesTransmitted    metrics.Counter
	ConnectionsFrontend metrics.Counter
	ConnectionsBackend  metrics.Counter
	ActiveConnections   metrics.Gauge

	ServerActivePlayer      metrics.Gauge
	ServerLogins            metrics.Counter
	ServerActiveConnections metrics.Gauge

	RateLimitAvailable metrics.Gauge
	FilterRejections   metrics.Counter

	StatusCacheHits   metrics.Counter
	StatusCacheMisses metrics.Counter

	BackendWakeUps       metrics.Counter
	BackendWakeUpSeconds metrics.Gauge
}

// NewBuilder returns the Builder for backend, falling back to a discard
// builder for an unrecognized name.
func NewBuilder(backend string, influxCfg *InfluxConfig) Builder {
	switch strings.ToLower(backend) {
	case BackendExpvar:
		return &expvarBuilder{}
	case BackendPrometheus:
		return &prometheusBuilder{}
	case BackendInfluxDB:
		return &influxBuilder{config: influxCfg}
	default:
		return &discardBuilder{}
	}
}

type discardBuilder struct{}

func (discardBuilder) Start(ctx context.Context) error { return nil }

func (discardBuilder) Build() *GatewayMetrics {
	return &GatewayMetrics{
		Errors:                  discardMetrics.NewCounter(),
		BytesTransmitted:        discardMetrics.NewCounter(),
		ConnectionsFrontend:     discardMetrics.NewCounter(),
		ConnectionsBackend:      discardMetrics.NewCounter(),
		ActiveConnections:       discardMetrics.NewGauge(),
		ServerActivePlayer:      discardMetrics.NewGauge(),
		ServerLogins:            discardMetrics.NewCounter(),
		ServerActiveConnections: discardMetrics.NewGauge(),
		RateLimitAvailable:      discardMetrics.NewGauge(),
		FilterRejections:        discardMetrics.NewCounter(),
		StatusCacheHits:         discardMetrics.NewCounter(),
		StatusCacheMisses:       discardMetrics.NewCounter(),
		BackendWakeUps:          discardMetrics.NewCounter(),
		BackendWakeUpSeconds:    discardMetrics.NewGauge(),
	}
}

type expvarBuilder struct{}

func (expvarBuilder) Start(ctx context.Context) error { return nil }

func (expvarBuilder) Build() *GatewayMetrics {
	c := expvarMetrics.NewCounter("connections")
	return &GatewayMetrics{
		Errors:                  expvarMetrics.NewCounter("errors").With("subsystem", "connector"),
		BytesTransmitted:        expvarMetrics.NewCounter("bytes"),
		ConnectionsFrontend:     c,
		ConnectionsBackend:      c,
		ActiveConnections:       expvarMetrics.NewGauge("active_connections"),
		ServerActivePlayer:      expvarMetrics.NewGauge("server_active_player"),
		ServerLogins:            expvarMetrics.NewCounter("server_logins"),
		ServerActiveConnections: expvarMetrics.NewGauge("server_active_connections"),
		RateLimitAvailable:      expvarMetrics.NewGauge("rate_limit_available"),
		FilterRejections:        expvarMetrics.NewCounter("filter_rejections"),
		StatusCacheHits:         expvarMetrics.NewCounter("status_cache_hits"),
		StatusCacheMisses:       expvarMetrics.NewCounter("status_cache_misses"),
		BackendWakeUps:          expvarMetrics.NewCounter("backend_wake_ups"),
		BackendWakeUpSeconds:    expvarMetrics.NewGauge("backend_wake_up_seconds"),
	}
}

type influxBuilder struct {
	config  *InfluxConfig
	metrics *kitinflux.Influx
}

func (b *influxBuilder) Start(ctx context.Context) error {
	if b.config == nil || b.config.Addr == "" {
		return errors.New("metrics: influxdb addr is required")
	}

	interval := b.config.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)

	client, err := influx.NewHTTPClient(influx.HTTPConfig{
		Addr:     b.config.Addr,
		Username: b.config.Username,
		Password: b.config.Password,
	})
	if err != nil {
		return fmt.Errorf("metrics: create influx http client: %w", err)
	}

	go b.metrics.WriteLoop(ctx, ticker.C, client)

	logrus.WithField("addr", b.config.Addr).Debug("metrics: reporting to influxdb")
	return nil
}

func (b *influxBuilder) Build() *GatewayMetrics {
	m := kitinflux.New(b.config.Tags, influx.BatchPointsConfig{
		Database:        b.config.Database,
		RetentionPolicy: b.config.RetentionPolicy,
	}, kitlogrus.NewLogger(logrus.StandardLogger()))
	b.metrics = m

	c := m.NewCounter("mc_gateway_connections")
	return &GatewayMetrics{
		Errors:                  m.NewCounter("mc_gateway_errors"),
		BytesTransmitted:        m.NewCounter("mc_gateway_transmitted_bytes"),
		ConnectionsFrontend:     c.With("side", "frontend"),
		ConnectionsBackend:      c.With("side", "backend"),
		ActiveConnections:       m.NewGauge("mc_gateway_connections_active"),
		ServerActivePlayer:      m.NewGauge("mc_gateway_server_player_active"),
		ServerLogins:            m.NewCounter("mc_gateway_server_logins"),
		ServerActiveConnections: m.NewGauge("mc_gateway_server_active_connections"),
		RateLimitAvailable:      m.NewGauge("mc_gateway_rate_limit_available"),
		FilterRejections:        m.NewCounter("mc_gateway_filter_rejections"),
		StatusCacheHits:         m.NewCounter("mc_gateway_status_cache_hits"),
		StatusCacheMisses:       m.NewCounter("mc_gateway_status_cache_misses"),
		BackendWakeUps:          m.NewCounter("mc_gateway_backend_wake_ups"),
		BackendWakeUpSeconds:    m.NewGauge("mc_gateway_backend_wake_up_seconds"),
	}
}

type prometheusBuilder struct{}

func (prometheusBuilder) Start(ctx context.Context) error { return nil }

func (prometheusBuilder) Build() *GatewayMetrics {
	return &GatewayMetrics{
		Errors: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc_gateway",
			Name:      "errors",
			Help:      "The total number of errors",
		}, []string{"type"})),
		BytesTransmitted: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc_gateway",
			Name:      "bytes",
			Help:      "The total number of bytes transmitted",
		}, nil)),
		ConnectionsFrontend: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mc_gateway",
			Subsystem:   "frontend",
			Name:        "connections",
			Help:        "The total number of frontend connections",
			ConstLabels: prometheus.Labels{"side": "frontend"},
		}, nil)),
		ConnectionsBackend: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mc_gateway",
			Subsystem:   "backend",
			Name:        "connections",
			Help:        "The total number of backend connections",
			ConstLabels: prometheus.Labels{"side": "backend"},
		}, []string{"host"})),
		ActiveConnections: prometheusMetrics.NewGauge(promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mc_gateway",
			Name:      "active_connections",
			Help:      "The number of active connections",
		}, nil)),
		ServerActivePlayer: prometheusMetrics.NewGauge(promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mc_gateway",
			Name:      "server_active_player",
			Help:      "Player is active on server",
		}, []string{"player_name", "player_uuid", "server_address"})),
		ServerLogins: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc_gateway",
			Name:      "server_logins",
			Help:      "The total number of player logins",
		}, []string{"player_name", "player_uuid", "server_address"})),
		ServerActiveConnections: prometheusMetrics.NewGauge(promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mc_gateway",
			Name:      "server_active_connections",
			Help:      "The number of active connections per server",
		}, []string{"server_address"})),
		RateLimitAvailable: prometheusMetrics.NewGauge(promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mc_gateway",
			Name:      "rate_limit_available",
			Help:      "The number of available tokens in the rate limit bucket",
		}, []string{"client_ip"})),
		FilterRejections: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc_gateway",
			Name:      "filter_rejections",
			Help:      "The total number of connections rejected by the filter chain",
		}, []string{"reason"})),
		StatusCacheHits: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc_gateway",
			Name:      "status_cache_hits",
			Help:      "The total number of status cache hits",
		}, []string{"config_id"})),
		StatusCacheMisses: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc_gateway",
			Name:      "status_cache_misses",
			Help:      "The total number of status cache misses",
		}, []string{"config_id"})),
		BackendWakeUps: prometheusMetrics.NewCounter(promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mc_gateway",
			Name:      "backend_wake_ups",
			Help:      "The total number of backend wake-up attempts",
		}, []string{"config_id", "outcome"})),
		BackendWakeUpSeconds: prometheusMetrics.NewGauge(promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mc_gateway",
			Name:      "backend_wake_up_seconds",
			Help:      "How long the most recent wake-up took",
		}, []string{"config_id"})),
	}
}
