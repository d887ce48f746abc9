package gateway

import "github.com/pkg/errors"

// ValidateConfig checks the top-level Config for internally-inconsistent
// values before a Server is constructed from it. Per-route validation
// (including the "full" proxy mode rejection) happens in toServerConfig
// as each RouteSpec is loaded, since routes may be added after startup.
func ValidateConfig(cfg *Config) error {
	if cfg.ListenAddress == "" {
		return errors.New("gateway: listen_address is required")
	}
	if cfg.DrainGraceSeconds < 0 {
		return errors.New("gateway: drain_grace_seconds must not be negative")
	}
	if cfg.InitialReadDeadline < 0 {
		return errors.New("gateway: initial_read_deadline must not be negative")
	}
	if cfg.RateLimiter.RequestsPerMinute < 0 {
		return errors.New("gateway: rate_limiter.requests_per_minute must not be negative")
	}
	if cfg.RateLimiter.BurstSize < 0 {
		return errors.New("gateway: rate_limiter.burst_size must not be negative")
	}
	if cfg.StatusCache.TTLSeconds < 0 {
		return errors.New("gateway: status_cache.ttl_seconds must not be negative")
	}
	if cfg.StatusCache.MaxEntries < 0 {
		return errors.New("gateway: status_cache.max_entries must not be negative")
	}
	return nil
}
