package gateway

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/route"
)

// debounceReloadDuration is how long the route config watcher waits after
// the last observed write before re-reading the file, matching the
// teacher's routes_config_loader.go debounceConfigRereadDuration.
const debounceReloadDuration = 5 * time.Second

// RouteSpec is one route's already-parsed representation, the JSON shape
// a routes file provides. The bit-exact file format is out of scope;
// this schema exists only so cmd/mc-gateway has something concrete to
// point RoutesLoader at.
type RouteSpec struct {
	ConfigID string `json:"config_id"`
	Patterns []string `json:"patterns"`
	Backends []string `json:"backends"`
	Mode string `json:"mode"`
	SendProxyProtocol bool `json:"send_proxy_protocol"`
	ProxyProtocolVersion int `json:"proxy_protocol_version"`
	MOTDTemplates map[string]string `json:"motd_templates"`
	CacheTTLSeconds *int `json:"cache_ttl_seconds"`
	ServerManager *ServerManagerSpec `json:"server_manager"`
	FilterOverride *FilterOverrideSpec `json:"filter_override"`
}

// ServerManagerSpec ties a route to a servermanager.Manager provider by
// name plus that provider's external identifier for the backend.
type ServerManagerSpec struct {
	Provider string `json:"provider"`
	ExternalID string `json:"external_id"`
	EmptyShutdownSeconds int `json:"empty_shutdown_seconds"`
}

// FilterOverrideSpec narrows (never widens) admission for one route
// relative to the global filter chain and player allow/deny lists.
type FilterOverrideSpec struct {
	AllowedPlayers []string `json:"allowed_players"`
	DeniedPlayers []string `json:"denied_players"`
	AllowedIPs []string `json:"allowed_ips"`
	DeniedIPs []string `json:"denied_ips"`
	RateLimitRPM float64 `json:"rate_limit_requests_per_minute"`
	RateLimitBurst int64 `json:"rate_limit_burst_size"`
}

// RoutesFile is the top-level document a RoutesLoader reads: a default
// route by ConfigID plus the full set of routes to register.
type RoutesFile struct {
	DefaultRoute string `json:"default_route"`
	Routes []RouteSpec `json:"routes"`
}

// toServerConfig converts a RouteSpec into the route.ServerConfig the
// Registry stores, validating the proxy mode name along the way (this is
// where a "full" mode entry is rejected, per 's design note that Full
// mode is refused at config-validation time).
func toServerConfig(spec RouteSpec) (*route.ServerConfig, error) {
	if spec.ConfigID == "" {
		return nil, errors.New("gateway: route spec missing config_id")
	}
	if len(spec.Patterns) == 0 {
		return nil, errors.Errorf("gateway: route %q has no patterns", spec.ConfigID)
	}
	if len(spec.Backends) == 0 {
		return nil, errors.Errorf("gateway: route %q has no backends", spec.ConfigID)
	}

	mode, err := route.ParseProxyMode(spec.Mode)
	if err != nil {
		return nil, errors.Wrapf(err, "gateway: route %q", spec.ConfigID)
	}

	backends := make([]route.Backend, len(spec.Backends))
	for i, addr := range spec.Backends {
		backends[i] = route.Backend{Address: addr}
	}

	cfg := &route.ServerConfig{
		ConfigID: spec.ConfigID,
		Patterns: spec.Patterns,
		Backends: backends,
		Mode: mode,
		SendProxyProtocol: spec.SendProxyProtocol,
		ProxyProtocolVersion: spec.ProxyProtocolVersion,
		MOTDTemplates: spec.MOTDTemplates,
		CacheTTLOverride: spec.CacheTTLSeconds,
	}

	if spec.ServerManager != nil {
		if spec.ServerManager.ExternalID == "" {
			return nil, errors.Errorf("gateway: route %q server_manager missing external_id", spec.ConfigID)
		}
		cfg.ServerManager = &route.ServerManagerBinding{
			Provider: spec.ServerManager.Provider,
			ExternalID: spec.ServerManager.ExternalID,
			EmptyShutdownSeconds: spec.ServerManager.EmptyShutdownSeconds,
		}
	}

	if spec.FilterOverride != nil {
		cfg.FilterOverride = &route.FilterOverride{
			AllowedPlayers: spec.FilterOverride.AllowedPlayers,
			DeniedPlayers: spec.FilterOverride.DeniedPlayers,
			AllowedIPs: spec.FilterOverride.AllowedIPs,
			DeniedIPs: spec.FilterOverride.DeniedIPs,
			RateLimitRPS: spec.FilterOverride.RateLimitRPM,
			RateLimitBurst: spec.FilterOverride.RateLimitBurst,
		}
	}

	return cfg, nil
}

// buildPlayerAllowDeny collects each route's named allow/deny entries
// into the global filter.PlayerAllowDeny the login path consults once a
// login-start packet is available.D's username/UUID checks and
// the teacher's allow_deny_list.go merge policy.
func buildPlayerAllowDeny(specs []RouteSpec) *filter.PlayerAllowDeny {
	out := &filter.PlayerAllowDeny{Routes: make(map[string]filter.PlayerLists)}
	for _, spec := range specs {
		if spec.FilterOverride == nil {
			continue
		}
		lists := filter.PlayerLists{
			Allow: namesToEntries(spec.FilterOverride.AllowedPlayers),
			Deny: namesToEntries(spec.FilterOverride.DeniedPlayers),
		}
		if len(lists.Allow) > 0 || len(lists.Deny) > 0 {
			out.Routes[spec.ConfigID] = lists
		}
	}
	return out
}

func namesToEntries(names []string) []filter.PlayerEntry {
	if len(names) == 0 {
		return nil
	}
	out := make([]filter.PlayerEntry, len(names))
	for i, name := range names {
		out[i] = filter.PlayerEntry{Name: name}
	}
	return out
}

// RoutesLoader reads a RoutesFile from disk and applies it to a
// route.Registry, with an optional fsnotify watch that debounces bursts
// of writes the way an editor's save-as-truncate-then-write does.
// Grounded on the teacher's server/routes_config_loader.go, retargeted
// from a flat externalHostname->backend map onto the ServerConfig set
// this repo's Route Resolver understands.
type RoutesLoader struct {
	fileName string
	registry *route.Registry
	onReload func(specs []RouteSpec)
}

// NewRoutesLoader builds a loader that applies routes from fileName to
// registry. onReload, if non-nil, receives the raw specs after every
// successful load so the caller can rebuild anything else derived from
// them (player allow/deny lists, per-route filter chains).
func NewRoutesLoader(fileName string, registry *route.Registry, onReload func(specs []RouteSpec)) *RoutesLoader {
	return &RoutesLoader{fileName: fileName, registry: registry, onReload: onReload}
}

// Load reads the routes file once and replaces the registry's full
// contents. A missing file is not an error: the registry is simply left
// as-is, matching the teacher's "file doesn't exist -> ignore it" path.
func (l *RoutesLoader) Load() error {
	if l.fileName == "" {
		return nil
	}

	file, err := l.readFile()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logrus.WithField("file", l.fileName).Info("gateway: routes config file does not exist, skipping")
			return nil
		}
		return errors.Wrap(err, "gateway: load routes config")
	}

	configs := make([]*route.ServerConfig, 0, len(file.Routes))
	for _, spec := range file.Routes {
		cfg, err := toServerConfig(spec)
		if err != nil {
			return err
		}
		configs = append(configs, cfg)
	}

	l.registry.ReplaceAll(configs, file.DefaultRoute)
	if l.onReload != nil {
		l.onReload(file.Routes)
	}
	return nil
}

// WatchForChanges starts a debounced fsnotify watch on the routes file,
// reloading on every settled burst of writes until ctx is cancelled.
func (l *RoutesLoader) WatchForChanges(ctx context.Context) error {
	if l.fileName == "" {
		return errors.New("gateway: routes config file must be set before watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "gateway: create routes config watcher")
	}
	if err := watcher.Add(l.fileName); err != nil {
		watcher.Close()
		return errors.Wrap(err, "gateway: watch routes config file")
	}

	go func() {
		defer watcher.Close()

		var debounce *time.Timer
		var debounceC <-chan time.Time

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
					if debounce == nil {
						debounce = time.NewTimer(debounceReloadDuration)
					} else {
						debounce.Reset(debounceReloadDuration)
					}
					debounceC = debounce.C
				}

			case <-debounceC:
				if err := l.Load(); err != nil {
					logrus.WithError(err).WithField("file", l.fileName).Error("gateway: reload routes config failed")
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (l *RoutesLoader) readFile() (*RoutesFile, error) {
	content, err := os.ReadFile(l.fileName)
	if err != nil {
		return nil, err
	}
	var file RoutesFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, errors.Wrap(err, "gateway: parse routes config json")
	}
	return &file, nil
}
