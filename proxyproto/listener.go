// Package proxyproto wraps an inbound net.Listener so accepted
// connections have any leading PROXY protocol v1/v2 header stripped and
// exposed as the connection's RemoteAddr, per the proxy_protocol
// {receive_enabled, receive_timeout_secs, allowed_versions} configuration
// block. Outbound header emission (the gateway acting as the proxy
// speaker toward its own backends) lives in session.WriteProxyHeader
// instead, since that side is tied to the per-session backend dial, not
// to accepting client connections.
//
// Grounded on the teacher's connector_test.go, whose
// TestTrustedProxyNetworkPolicy shows the PolicyFunc-over-trusted-CIDRs
// shape this package implements against github.com/pires/go-proxyproto,
// the same dependency the teacher already carries for header
// construction (server/connector.go).
package proxyproto

import (
	"net"
	"time"

	"github.com/pires/go-proxyproto"
	"github.com/pkg/errors"
)

// Config tunes inbound PROXY protocol handling for one listener.
type Config struct {
	ReceiveEnabled bool
	ReceiveTimeout time.Duration
	// AllowedVersions restricts accepted header versions (1 and/or 2). An
	// empty slice permits both.
	AllowedVersions []int
	// TrustedNetworks restricts which upstream (TCP-layer) peers are
	// believed when they present a header; a peer outside this list has
	// its header ignored rather than the connection rejected, matching
	// the teacher's IGNORE-not-REJECT policy for untrusted sources. An
	// empty slice trusts every upstream.
	TrustedNetworks []*net.IPNet
}

// Wrap returns ln unchanged when receiving is disabled, or a
// proxyproto.Listener that parses and strips inbound headers according to
// cfg otherwise.
func Wrap(ln net.Listener, cfg Config) net.Listener {
	if !cfg.ReceiveEnabled {
		return ln
	}
	return &proxyproto.Listener{
		Listener:          ln,
		Policy:            trustPolicy(cfg.TrustedNetworks),
		ValidateHeader:    versionValidator(cfg.AllowedVersions),
		ReadHeaderTimeout: cfg.ReceiveTimeout,
	}
}

// trustPolicy mirrors the teacher's createProxyProtoPolicy: USE the header
// when the immediate upstream is in a trusted network, IGNORE it (treat
// the connection as if no header were present) otherwise.
func trustPolicy(trusted []*net.IPNet) proxyproto.PolicyFunc {
	return func(upstream net.Addr) (proxyproto.Policy, error) {
		if len(trusted) == 0 {
			return proxyproto.USE, nil
		}
		host, _, err := net.SplitHostPort(upstream.String())
		if err != nil {
			host = upstream.String()
		}
		ip := net.ParseIP(host)
		for _, n := range trusted {
			if n.Contains(ip) {
				return proxyproto.USE, nil
			}
		}
		return proxyproto.IGNORE, nil
	}
}

func versionValidator(allowed []int) func(*proxyproto.Header) error {
	if len(allowed) == 0 {
		return nil
	}
	return func(h *proxyproto.Header) error {
		for _, v := range allowed {
			if int(h.Version) == v {
				return nil
			}
		}
		return errors.Errorf("proxyproto: header version %d is not in the allowed set %v", h.Version, allowed)
	}
}
