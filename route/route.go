// Package route implements the route registry: the mapping from a
// handshake's advertised hostname to a ServerConfig, generalizing the
// teacher's exact-match routesImpl with wildcard-suffix patterns and a
// lock-free, copy-on-write read path.
package route

import "github.com/pkg/errors"

// ProxyMode selects which of the four supported proxy modes handles
// sessions routed to a ServerConfig. "Full" mode (client- and server-side
// mutual authentication under one connection) is architecturally
// impossible for a proxy sitting between two independently-authenticated
// parties and is rejected at config-validation time; it deliberately has
// no constant here.
type ProxyMode int

const (
	ModePassthrough ProxyMode = iota
	ModeOffline
	ModeClientOnly
	ModeServerOnly
)

func (m ProxyMode) String() string {
	switch m {
	case ModePassthrough:
		return "passthrough"
	case ModeOffline:
		return "offline"
	case ModeClientOnly:
		return "client_only"
	case ModeServerOnly:
		return "server_only"
	default:
		return "unknown"
	}
}

// ParseProxyMode maps a config-provided mode name to a ProxyMode. "full"
// is recognized only to be rejected explicitly, so callers can
// distinguish "unsupported by design" from "not a real mode name at
// all".
func ParseProxyMode(name string) (ProxyMode, error) {
	switch name {
	case "passthrough", "":
		return ModePassthrough, nil
	case "offline":
		return ModeOffline, nil
	case "client_only":
		return ModeClientOnly, nil
	case "server_only":
		return ModeServerOnly, nil
	case "full":
		return 0, errors.New("route: \"full\" proxy mode is not supported; a proxy cannot satisfy both sides' independent Mojang authentication under one connection")
	default:
		return 0, errors.Errorf("route: unrecognized proxy mode %q", name)
	}
}

// Backend is one transport endpoint a ServerConfig may dial, tried in
// order until one accepts a connection.
type Backend struct {
	Address string // host:port
}

// ServerManagerBinding optionally ties a ServerConfig to a wake/sleep
// provider.
type ServerManagerBinding struct {
	Provider string
	ExternalID string
	EmptyShutdownSeconds int
}

// ServerConfig is one routable entry, identified by a stable ConfigID and
// matched against zero or more host Patterns (literal or "*.domain"
// suffix wildcards).
type ServerConfig struct {
	ConfigID string
	Patterns []string
	Backends []Backend
	Mode ProxyMode

	SendProxyProtocol bool
	ProxyProtocolVersion int

	MOTDTemplates map[string]string // BackendState name -> template

	FilterOverride *FilterOverride
	CacheTTLOverride *int // seconds; nil means use the global default

	ServerManager *ServerManagerBinding
}

// FilterOverride carries a per-route filter chain configuration; its shape
// mirrors the global filter config so a route can narrow but never widen
// access relative to the global chain.
type FilterOverride struct {
	AllowedPlayers []string
	DeniedPlayers []string
	AllowedIPs []string
	DeniedIPs []string
	RateLimitRPS float64
	RateLimitBurst int64
}

// snapshot is the immutable, atomically-swapped state a Registry points
// at. Registry mutation always builds a full replacement snapshot and
// swaps the pointer; readers never take a lock.
type snapshot struct {
	byID map[string]*ServerConfig
	literal map[string]*ServerConfig
	wildcards []wildcardEntry
	defaultID string
}

type wildcardEntry struct {
	suffix string // e.g. ".example.com", the part after the leading "*"
	order int
	config *ServerConfig
}

func newEmptySnapshot() *snapshot {
	return &snapshot{
		byID: make(map[string]*ServerConfig),
		literal: make(map[string]*ServerConfig),
	}
}
