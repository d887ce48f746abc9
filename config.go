// Package gateway wires the mcproto, mccrypto, route, filter, statuscache,
// motd, servermanager, session, proxymode, proxyproto, metrics and api
// packages into one running proxy process. Grounded on the teacher's
// server/server.go (construction order, Run loop, ReloadConfig) and
// server/connector.go (accept loop, per-connection handler); the Config
// struct's usage/default tag style follows server/configs.go.
package gateway

import "time"

// StatusCacheConfig tunes the per-route status response cache.
type StatusCacheConfig struct {
	TTLSeconds int `default:"30" usage:"How long a cached status response for a route stays fresh"`
	MaxEntries int `default:"64" usage:"Maximum distinct status-cache entries kept per route before the oldest is evicted"`
}

// RateLimiterConfig tunes the per-client-IP connection rate limiter,
// grounded on the teacher's ConnectionRateLimit but generalized
// from one shared bucket to one bucket per source address.
type RateLimiterConfig struct {
	RequestsPerMinute float64 `default:"600" usage:"Sustained connection attempts allowed per client IP per minute"`
	BurstSize int64 `default:"10" usage:"Immediate burst capacity per client IP, in addition to the sustained rate"`
}

// ProxyProtocolConfig tunes inbound PROXY protocol v1/v2 acceptance,
// distinct from SendProxyProtocol/ProxyProtocolVersion on a route,
// which control what the gateway sends toward its own backends.
type ProxyProtocolConfig struct {
	ReceiveEnabled bool `default:"false" usage:"Accept a leading PROXY protocol v1/v2 header on inbound client connections"`
	ReceiveTimeoutSecs int `default:"5" usage:"How long to wait for a PROXY protocol header before giving up on the connection"`
	AllowedVersions []int `usage:"Restrict accepted PROXY protocol header versions (1 and/or 2); empty allows both"`
	TrustedProxies []string `usage:"CIDR blocks of upstreams trusted to present a PROXY protocol header; empty trusts every upstream"`
}

// NgrokConfig, when AuthToken is set, replaces the plain TCP listener with
// an ngrok TCP tunnel endpoint — an alternative way to expose the accept
// loop from behind NAT or a firewall without opening an inbound port,
// grounded on the teacher's NgrokConfig/UseNgrok wiring.
type NgrokConfig struct {
	AuthToken string `usage:"ngrok auth token; when set, the gateway listens on an ngrok TCP tunnel instead of binding ListenAddress directly"`
	RemoteAddr string `usage:"Reserved ngrok TCP address (host:port) to bind the tunnel to; empty requests an ephemeral one"`
}

// DefaultMOTDs holds the fallback status-response templates the MOTD
// Synthesizer serves for backend states no route-specific template
// overrides.
type DefaultMOTDs struct {
	Unreachable string `usage:"MOTD text served when a route's backend cannot be reached"`
	Starting string `usage:"MOTD text served while a backend is waking up, supports \\${seconds_remaining}"`
	Offline string `usage:"MOTD text served for a route whose backend is deliberately stopped"`
	ShuttingDown string `usage:"MOTD text served during graceful drain, supports \\${seconds_remaining}"`
	Crashed string `usage:"MOTD text served when a backend's wake-up attempt reports it crashed"`
	Stopping string `usage:"MOTD text served while a backend is being stopped"`
	UnableStatus string `usage:"MOTD text served when a route has no configured backend match"`
}

// MetricsConfig selects and tunes the go-kit metrics backend, grounded on the teacher's MetricsBackend/MetricsBackendConfig.
type MetricsConfig struct {
	Backend string `default:"discard" usage:"Backend for metrics exposure/publishing: discard, expvar, influxdb, prometheus"`
	Influx InfluxMetricsConfig
}

// InfluxMetricsConfig configures the InfluxDB metrics backend, mirroring
// the fields metrics.InfluxConfig accepts.
type InfluxMetricsConfig struct {
	Addr string `usage:"InfluxDB HTTP address, required when metrics backend is influxdb"`
	Username string `usage:"InfluxDB username"`
	Password string `usage:"InfluxDB password"`
	Database string `usage:"InfluxDB database name"`
	RetentionPolicy string `usage:"InfluxDB retention policy"`
	IntervalSeconds int `default:"60" usage:"How often to push a batch of points"`
}

// Config is the full set of recognized top-level proxy options:
// listen_address, initial_read_deadline, status_cache, rate_limiter,
// proxy_protocol, default_motds, drain_grace_seconds, plus the ambient
// options (API binding, metrics backend) the teacher's Config carries
// alongside the spec-named ones. The bit-exact serialization format this
// is parsed from is out of scope; a provider hands the gateway an
// already-populated Config.
type Config struct {
	ListenAddress string `default:":25565" usage:"The [host:port] bound to listen for Minecraft client connections"`
	InitialReadDeadline int `default:"5" usage:"Seconds allowed to read a client's handshake before the connection is dropped"`
	DrainGraceSeconds int `default:"30" usage:"Seconds a graceful shutdown waits for active sessions to finish before closing them"`
	MaxFrameBytes int `default:"2097152" usage:"Maximum accepted single-frame size in bytes"`

	StatusCache StatusCacheConfig
	RateLimiter RateLimiterConfig
	ProxyProtocol ProxyProtocolConfig
	DefaultMOTDs DefaultMOTDs
	Metrics MetricsConfig
	Ngrok NgrokConfig

	APIBinding string `usage:"The [host:port] bound for servicing introspection API requests; empty disables it"`

	ClientsToAllow []string `usage:"Zero or more client IP addresses or CIDRs to allow; takes precedence over deny"`
	ClientsToDeny []string `usage:"Zero or more client IP addresses or CIDRs to deny; ignored if any are configured to allow"`

	ServerOnlyEnabled bool `default:"false" usage:"Enable the ServerOnly proxy mode's best-effort wire-level encryption mirror"`

	DockerSocket string `usage:"Docker daemon socket/host to dial for the docker server-manager provider; empty disables it"`
	DockerStopTimeoutSeconds int `default:"30" usage:"Seconds given to a container to stop gracefully before the docker provider kills it"`
}

func (c *Config) initialReadDeadline() time.Duration {
	if c.InitialReadDeadline <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.InitialReadDeadline) * time.Second
}

func (c *Config) drainGrace() time.Duration {
	if c.DrainGraceSeconds <= 0 {
		return 0
	}
	return time.Duration(c.DrainGraceSeconds) * time.Second
}

func (c *Config) statusCacheTTL() time.Duration {
	if c.StatusCache.TTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.StatusCache.TTLSeconds) * time.Second
}
