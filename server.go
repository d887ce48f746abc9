package gateway

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"

	"github.com/mc-gateway/gateway/api"
	"github.com/mc-gateway/gateway/filter"
	"github.com/mc-gateway/gateway/mccrypto"
	"github.com/mc-gateway/gateway/metrics"
	"github.com/mc-gateway/gateway/motd"
	"github.com/mc-gateway/gateway/proxyproto"
	"github.com/mc-gateway/gateway/route"
	"github.com/mc-gateway/gateway/servermanager"
	"github.com/mc-gateway/gateway/session"
	"github.com/mc-gateway/gateway/statuscache"
)

// Server owns every long-lived collaborator the accept loop needs: the
// route table, the global and per-route filter chains, the per-route
// status caches and MOTD sets, the server-manager registry and its idle
// timers, the session registry, the introspection API, and metrics.
// Grounded on the teacher's server/server.go MCRouter, which plays the
// same wiring role for a much smaller set of collaborators.
type Server struct {
	cfg *Config

	routes       *route.Registry
	routesLoader *RoutesLoader
	sessions     *session.Registry

	globalChain *filter.Chain

	routeMu      sync.RWMutex
	routeChains  map[string]*filter.Chain
	statusCaches map[string]*statuscache.Cache
	motdSets     map[string]motd.Set

	playersMu sync.RWMutex
	players   *filter.PlayerAllowDeny

	managers    *servermanager.Registry
	idleTimers  map[string]*servermanager.IdleTimer
	idleTimerMu sync.Mutex

	keyPair       *mccrypto.KeyPair
	sessionClient mccrypto.Authenticator

	metrics        *metrics.GatewayMetrics
	metricsBuilder metrics.Builder

	api      *api.Server
	notifier ConnectionNotifier

	shutdownAt atomic.Pointer[time.Time]

	listener net.Listener
}

// NewServer wires every collaborator from cfg. It does not bind a
// listener or start background loops; call Run for that.
func NewServer(ctx context.Context, cfg *Config, routesFile string) (*Server, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	keyPair, err := mccrypto.GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "gateway: generate server keypair")
	}

	ipFilter, err := filter.NewIPFilter(cfg.ClientsToAllow, cfg.ClientsToDeny)
	if err != nil {
		return nil, errors.Wrap(err, "gateway: build global ip filter")
	}

	s := &Server{
		cfg:      cfg,
		routes:   route.NewRegistry(),
		sessions: session.NewRegistry(),
		globalChain: &filter.Chain{
			Bans:        filter.NewMemoryBanStore(),
			IPFilter:    ipFilter,
			RateLimiter: filter.NewRateLimiter(cfg.RateLimiter.RequestsPerMinute, cfg.RateLimiter.BurstSize),
		},
		routeChains:   make(map[string]*filter.Chain),
		statusCaches:  make(map[string]*statuscache.Cache),
		motdSets:      make(map[string]motd.Set),
		players:       &filter.PlayerAllowDeny{},
		idleTimers:    make(map[string]*servermanager.IdleTimer),
		keyPair:       keyPair,
		sessionClient: mccrypto.NewSessionClient(),
	}

	providers, err := buildManagerProviders(cfg)
	if err != nil {
		return nil, err
	}
	s.managers = servermanager.NewRegistry(providers...)

	s.metricsBuilder = metrics.NewBuilder(cfg.Metrics.Backend, &metrics.InfluxConfig{
		Interval:        time.Duration(cfg.Metrics.Influx.IntervalSeconds) * time.Second,
		Addr:            cfg.Metrics.Influx.Addr,
		Username:        cfg.Metrics.Influx.Username,
		Password:        cfg.Metrics.Influx.Password,
		Database:        cfg.Metrics.Influx.Database,
		RetentionPolicy: cfg.Metrics.Influx.RetentionPolicy,
	})
	s.metrics = s.metricsBuilder.Build()

	s.api = api.New(s.routes, s.sessions)

	s.routesLoader = NewRoutesLoader(routesFile, s.routes, s.onRoutesReloaded)
	if err := s.routesLoader.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// buildManagerProviders always registers a Mock and a LocalProcess
// provider (neither requires external connectivity); Docker is added only
// when DockerSocket is set, so a deployment without a Docker daemon never
// pays a dial attempt at startup. The Kubernetes provider is not
// registered here.
func buildManagerProviders(cfg *Config) ([]servermanager.Manager, error) {
	providers := []servermanager.Manager{
		servermanager.NewMock(),
		servermanager.NewLocalProcess(),
	}

	if cfg.DockerSocket != "" {
		docker, err := servermanager.NewDocker(cfg.DockerSocket, cfg.DockerStopTimeoutSeconds)
		if err != nil {
			return nil, errors.Wrap(err, "gateway: connect docker server manager")
		}
		providers = append(providers, docker)
	}

	return providers, nil
}

// onRoutesReloaded rebuilds the derived state a full route reload
// invalidates: per-route filter chains and status caches are dropped so
// they are rebuilt against the new ServerConfig on next use, and the
// merged player allow/deny list is recomputed from the fresh specs.
func (s *Server) onRoutesReloaded(specs []RouteSpec) {
	s.routeMu.Lock()
	s.routeChains = make(map[string]*filter.Chain)
	s.statusCaches = make(map[string]*statuscache.Cache)
	s.motdSets = make(map[string]motd.Set)
	s.routeMu.Unlock()

	s.playersMu.Lock()
	s.players = buildPlayerAllowDeny(specs)
	s.playersMu.Unlock()

	s.idleTimerMu.Lock()
	for _, t := range s.idleTimers {
		t.Reset()
	}
	s.idleTimerMu.Unlock()
}

// bindListener binds ListenAddress with a plain TCP listener, unless
// Ngrok.AuthToken is set, in which case it exposes the accept loop through
// an ngrok TCP tunnel instead — an alternative transport for reaching the
// gateway from behind NAT or a firewall without opening an inbound port,
// grounded on the teacher's Ngrok.Token-gated UseNgrok call.
func (s *Server) bindListener(ctx context.Context) (net.Listener, error) {
	if s.cfg.Ngrok.AuthToken == "" {
		return net.Listen("tcp", s.cfg.ListenAddress)
	}

	var opts []ngrokconfig.TCPEndpointOption
	if s.cfg.Ngrok.RemoteAddr != "" {
		opts = append(opts, ngrokconfig.WithRemoteAddr(s.cfg.Ngrok.RemoteAddr))
	}
	tunnel, err := ngrok.Listen(ctx, ngrokconfig.TCPEndpoint(opts...), ngrok.WithAuthtoken(s.cfg.Ngrok.AuthToken))
	if err != nil {
		return nil, errors.Wrap(err, "gateway: start ngrok tunnel")
	}
	logrus.WithField("url", tunnel.URL()).Info("gateway: exposing accept loop through ngrok tunnel")
	return tunnel, nil
}

// Run binds the listener, starts the metrics push loop, the introspection
// API (if configured), the route-file watcher, and the accept loop. It
// blocks until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.bindListener(ctx)
	if err != nil {
		return errors.Wrap(err, "gateway: bind listener")
	}
	s.listener = proxyproto.Wrap(ln, proxyproto.Config{
		ReceiveEnabled:  s.cfg.ProxyProtocol.ReceiveEnabled,
		ReceiveTimeout:  time.Duration(s.cfg.ProxyProtocol.ReceiveTimeoutSecs) * time.Second,
		AllowedVersions: s.cfg.ProxyProtocol.AllowedVersions,
		TrustedNetworks: parseTrustedNetworks(s.cfg.ProxyProtocol.TrustedProxies),
	})

	if err := s.metricsBuilder.Start(ctx); err != nil {
		logrus.WithError(err).Warn("gateway: metrics backend failed to start")
	}

	if s.cfg.APIBinding != "" {
		s.api.Serve(s.cfg.APIBinding)
	}

	if err := s.routesLoader.WatchForChanges(ctx); err != nil {
		logrus.WithError(err).Warn("gateway: routes file watch disabled")
	}

	logrus.WithField("listenAddress", s.cfg.ListenAddress).Info("gateway: accepting connections")

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, "gateway: accept failed")
			}
		}
		go s.handleConnection(ctx, conn)
	}
}

func parseTrustedNetworks(cidrs []string) []*net.IPNet {
	var out []*net.IPNet
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			logrus.WithError(err).WithField("cidr", c).Warn("gateway: skipping invalid trusted proxy network")
			continue
		}
		out = append(out, n)
	}
	return out
}

// Shutdown begins a graceful drain: every live session is kicked no later
// than DrainGraceSeconds from now, and shutdownSecondsRemaining starts
// reporting a countdown the status/login paths use to serve the
// shutting_down MOTD instead of normal processing.
func (s *Server) Shutdown() {
	deadline := time.Now().Add(s.cfg.drainGrace())
	s.shutdownAt.Store(&deadline)

	logrus.WithField("drainGraceSeconds", s.cfg.DrainGraceSeconds).Info("gateway: starting graceful shutdown")

	go func() {
		time.Sleep(time.Until(deadline))
		for _, sess := range s.sessions.ListSessions() {
			s.sessions.Kick(sess.ID, "")
		}
	}()
}

// shutdownSecondsRemaining reports the countdown to a Shutdown deadline,
// if one is in progress.
func (s *Server) shutdownSecondsRemaining() (int, bool) {
	at := s.shutdownAt.Load()
	if at == nil {
		return 0, false
	}
	remaining := int(time.Until(*at).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// routeChain returns the per-route filter chain for cfg, building and
// caching it on first use from cfg.FilterOverride. A route with no
// override shares the global chain outright.
func (s *Server) routeChain(cfg *route.ServerConfig) (*filter.Chain, error) {
	if cfg.FilterOverride == nil {
		return s.globalChain, nil
	}

	s.routeMu.RLock()
	chain, ok := s.routeChains[cfg.ConfigID]
	s.routeMu.RUnlock()
	if ok {
		return chain, nil
	}

	ipFilter, err := filter.NewIPFilter(cfg.FilterOverride.AllowedIPs, cfg.FilterOverride.DeniedIPs)
	if err != nil {
		return nil, errors.Wrapf(err, "gateway: route %q filter override", cfg.ConfigID)
	}
	chain = &filter.Chain{
		Bans:        s.globalChain.Bans,
		IPFilter:    ipFilter,
		RateLimiter: filter.NewRateLimiter(cfg.FilterOverride.RateLimitRPS, cfg.FilterOverride.RateLimitBurst),
	}

	s.routeMu.Lock()
	s.routeChains[cfg.ConfigID] = chain
	s.routeMu.Unlock()
	return chain, nil
}

// statusCacheFor returns cfg's own status cache, building it on first use.
// Per statuscache.Cache's own contract, no two routes ever share one.
func (s *Server) statusCacheFor(cfg *route.ServerConfig) *statuscache.Cache {
	s.routeMu.RLock()
	cache, ok := s.statusCaches[cfg.ConfigID]
	s.routeMu.RUnlock()
	if ok {
		return cache
	}

	ttl := s.cfg.statusCacheTTL()
	if cfg.CacheTTLOverride != nil {
		ttl = time.Duration(*cfg.CacheTTLOverride) * time.Second
	}
	cache = statuscache.New(ttl, s.cfg.StatusCache.MaxEntries)

	s.routeMu.Lock()
	s.statusCaches[cfg.ConfigID] = cache
	s.routeMu.Unlock()
	return cache
}

// motdFor builds cfg's motd.Set from its MOTDTemplates, falling back to
// the top-level DefaultMOTDs for any BackendState the route didn't
// override.
func (s *Server) motdFor(cfg *route.ServerConfig) motd.Set {
	s.routeMu.RLock()
	set, ok := s.motdSets[cfg.ConfigID]
	s.routeMu.RUnlock()
	if ok {
		return set
	}

	set = motd.Set{
		motd.StateUnknown:  motd.Template{Text: s.cfg.DefaultMOTDs.Unreachable},
		motd.StateStarting: motd.Template{Text: s.cfg.DefaultMOTDs.Starting},
		motd.StateStopped:  motd.Template{Text: s.cfg.DefaultMOTDs.Offline},
		motd.StateStopping: motd.Template{Text: s.cfg.DefaultMOTDs.Stopping},
		motd.StateCrashed:  motd.Template{Text: s.cfg.DefaultMOTDs.Crashed},
	}
	if s.cfg.DefaultMOTDs.ShuttingDown != "" {
		set[motd.BackendState("shutting_down")] = motd.Template{Text: s.cfg.DefaultMOTDs.ShuttingDown}
	}
	for stateName, text := range cfg.MOTDTemplates {
		set[motd.BackendState(stateName)] = motd.Template{Text: text}
	}

	s.routeMu.Lock()
	s.motdSets[cfg.ConfigID] = set
	s.routeMu.Unlock()
	return set
}

// currentPlayerLists returns the merged allow/deny list built from the
// most recent routes reload.
func (s *Server) currentPlayerLists() *filter.PlayerAllowDeny {
	s.playersMu.RLock()
	defer s.playersMu.RUnlock()
	return s.players
}

// idleTimerFor returns the IdleTimer for the provider managing binding,
// building one on first use. Each provider gets exactly one IdleTimer,
// since servermanager.IdleTimer is bound to a single Manager.
func (s *Server) idleTimerFor(ctx context.Context, binding *route.ServerManagerBinding) (*servermanager.IdleTimer, servermanager.Manager, error) {
	manager, err := s.managers.Resolve(binding.Provider)
	if err != nil {
		return nil, nil, err
	}

	s.idleTimerMu.Lock()
	defer s.idleTimerMu.Unlock()

	timer, ok := s.idleTimers[binding.Provider]
	if !ok {
		timer = servermanager.NewIdleTimer(ctx, manager)
		s.idleTimers[binding.Provider] = timer
	}
	return timer, manager, nil
}

func addrIP(addr net.Addr) netip.Addr {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return ip
}

func addressesOf(cfg *route.ServerConfig) []string {
	out := make([]string, len(cfg.Backends))
	for i, b := range cfg.Backends {
		out[i] = b.Address
	}
	return out
}
