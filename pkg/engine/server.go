// Package engine wires the simulator together: scenario registry,
// execution service, dispatcher, transport ingress, and the admin API.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getstubd/stubd/internal/matching"
	"github.com/getstubd/stubd/internal/storage"
	"github.com/getstubd/stubd/pkg/config"
	"github.com/getstubd/stubd/pkg/correlation"
	"github.com/getstubd/stubd/pkg/dispatch"
	"github.com/getstubd/stubd/pkg/endpoint"
	"github.com/getstubd/stubd/pkg/execution"
	"github.com/getstubd/stubd/pkg/logging"
	"github.com/getstubd/stubd/pkg/message"
	"github.com/getstubd/stubd/pkg/mqtt"
	"github.com/getstubd/stubd/pkg/scenario"
)

// Server is the simulator engine. Embedders register their scenarios,
// start the server, and the engine handles dispatch, correlation, and
// execution bookkeeping for every inbound message.
type Server struct {
	cfg        *config.Config
	log        *slog.Logger
	registry   *scenario.Registry
	store      execution.Store
	boltStore  *storage.BoltStore // non-nil when persistence is enabled
	correlator *correlation.Registry
	execSvc    *execution.Service
	dispatcher *dispatch.Dispatcher
	resolver   matching.Resolver

	httpServer   *http.Server
	adminServer  *http.Server
	mqttEndpoint *mqtt.Endpoint
	poller       *endpoint.Poller

	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithStore overrides the execution record store.
func WithStore(store execution.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithResolver overrides the scenario-name resolution strategy built
// from the configuration.
func WithResolver(r matching.Resolver) Option {
	return func(s *Server) { s.resolver = r }
}

// New creates a Server from the configuration. Scenarios are registered
// afterwards via Scenarios().Reload or the RegisterScenarios helper.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		log:        logging.Nop(),
		registry:   scenario.NewRegistry(),
		correlator: correlation.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		if cfg.PersistencePath != "" {
			bs, err := storage.OpenBoltStore(cfg.PersistencePath)
			if err != nil {
				return nil, err
			}
			bs.SetLogger(s.log)
			s.boltStore = bs
			s.store = bs
		} else {
			ms := storage.NewMemoryStore()
			ms.SetLogger(s.log)
			s.store = ms
		}
	}

	if s.resolver == nil {
		r, err := buildResolver(cfg.Resolution)
		if err != nil {
			return nil, err
		}
		s.resolver = r
	}

	s.execSvc = execution.NewService(s.registry, s.store, s.correlator,
		execution.ServiceConfig{Workers: cfg.Workers}, s.log)

	s.dispatcher = dispatch.New(s.correlator, s.resolver, s.execSvc, dispatch.Config{
		DefaultScenario: cfg.DefaultScenario,
		ReplyTimeout:    cfg.ReplyTimeout(),
		WaitForReply:    cfg.ReplyWaitingEnabled(),
	}, s.log)

	return s, nil
}

// Scenarios returns the scenario registry for registration and reload.
func (s *Server) Scenarios() *scenario.Registry { return s.registry }

// RegisterScenarios replaces the registered scenario set.
func (s *Server) RegisterScenarios(defs ...*scenario.Definition) error {
	return s.registry.Reload(defs)
}

// Dispatcher exposes the dispatching adapter for embedded transports.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }

// Executions exposes the execution record store.
func (s *Server) Executions() execution.Store { return s.store }

// Launch starts a starter scenario on demand.
func (s *Server) Launch(ctx context.Context, name string, params map[string]string) (int64, error) {
	return s.execSvc.Launch(ctx, name, params)
}

// Start brings up the ingress listener, the admin API, and the MQTT
// poller when configured. Idempotent.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ingressAddr := net.JoinHostPort(s.cfg.HTTP.Host, fmt.Sprintf("%d", s.cfg.HTTP.Port))
	s.httpServer = &http.Server{
		Addr:         ingressAddr,
		Handler:      NewIngressHandler(s.dispatcher, s.log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2*s.cfg.ReplyTimeout() + 10*time.Second,
	}
	if err := s.serve(s.httpServer, "ingress"); err != nil {
		return err
	}

	if s.cfg.HTTP.AdminPort != 0 {
		adminAddr := net.JoinHostPort(s.cfg.HTTP.Host, fmt.Sprintf("%d", s.cfg.HTTP.AdminPort))
		s.adminServer = &http.Server{
			Addr:         adminAddr,
			Handler:      s.adminHandler(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		if err := s.serve(s.adminServer, "admin"); err != nil {
			s.shutdownHTTP(s.httpServer)
			return err
		}
	}

	if s.cfg.MQTT.Enabled {
		ep, err := mqtt.Connect(mqtt.Config{
			BrokerURL:  s.cfg.MQTT.BrokerURL,
			ClientID:   s.cfg.MQTT.ClientID,
			Topic:      s.cfg.MQTT.Topic,
			ReplyTopic: s.cfg.MQTT.ReplyTopic,
			QoS:        s.cfg.MQTT.QoS,
			Username:   s.cfg.MQTT.Username,
			Password:   s.cfg.MQTT.Password,
		}, s.log)
		if err != nil {
			s.shutdownHTTP(s.httpServer)
			s.shutdownHTTP(s.adminServer)
			return err
		}
		s.mqttEndpoint = ep
		obs := trafficObserver(s.log)
		s.poller = endpoint.NewPoller("mqtt",
			endpoint.ObserveConsumer(ep, obs),
			endpoint.ObserveProducer(ep, obs),
			s.dispatcher, endpoint.PollerConfig{
			ErrorBackoff:  s.cfg.PollerBackoff(),
			ShutdownGrace: s.cfg.ShutdownGrace(),
		}, s.log)
		s.poller.Start()
	}

	s.running = true
	s.startTime = time.Now()
	s.log.Info("simulator started",
		"ingress", ingressAddr, "adminPort", s.cfg.HTTP.AdminPort,
		"scenarios", s.registry.Len(), "mqtt", s.cfg.MQTT.Enabled)
	return nil
}

// serve starts an HTTP server on its listener, surfacing bind errors
// synchronously.
func (s *Server) serve(srv *http.Server, name string) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s listener on %s: %w", name, srv.Addr, err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server failed", "server", name, "error", err)
		}
	}()
	return nil
}

// Stop shuts the engine down gracefully: listeners first, then the
// poller, then the execution service, each bounded by the configured
// grace period.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.shutdownHTTP(s.httpServer)
	s.shutdownHTTP(s.adminServer)

	if s.poller != nil {
		s.poller.Stop()
	}
	if s.mqttEndpoint != nil {
		s.mqttEndpoint.Close()
	}

	s.execSvc.Stop(s.cfg.ShutdownGrace())

	if s.boltStore != nil {
		if err := s.boltStore.Close(); err != nil {
			s.log.Warn("failed to close execution store", "error", err)
		}
	}

	s.running = false
	s.log.Info("simulator stopped")
}

func (s *Server) shutdownHTTP(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown incomplete", "addr", srv.Addr, "error", err)
	}
}

// IsRunning reports whether the server has been started.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns whole seconds since start, 0 when stopped.
func (s *Server) Uptime() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return int(time.Since(s.startTime).Seconds())
}

// trafficObserver logs every message crossing a transport endpoint at
// debug level, on both the inbound and the outbound side.
func trafficObserver(log *slog.Logger) endpoint.ObserverFuncs {
	return endpoint.ObserverFuncs{
		Inbound: func(m *message.Message) {
			log.Debug("transport message received", "messageId", m.ID, "bytes", len(m.Payload))
		},
		Outbound: func(m *message.Message) {
			log.Debug("transport message sent", "messageId", m.ID, "bytes", len(m.Payload))
		},
	}
}

// buildResolver assembles the resolution chain from configuration, in
// fixed precedence order: header, path globs, JSONPath, XML, expression.
func buildResolver(cfg config.ResolutionConfig) (matching.Resolver, error) {
	var chain matching.Chain

	chain = append(chain, matching.NewHeaderResolver(cfg.Header))

	if len(cfg.PathMappings) > 0 {
		pr, err := matching.NewPathResolver(cfg.PathMappings)
		if err != nil {
			return nil, err
		}
		chain = append(chain, pr)
	}
	if cfg.JSONPath != "" {
		jr, err := matching.NewJSONPathResolver(cfg.JSONPath)
		if err != nil {
			return nil, err
		}
		chain = append(chain, jr)
	}
	if cfg.XMLEnabled || cfg.XMLPath != "" {
		xr, err := matching.NewXMLResolver(cfg.XMLPath, false)
		if err != nil {
			return nil, err
		}
		chain = append(chain, xr)
	}
	if cfg.Expression != "" {
		er, err := matching.NewExprResolver(cfg.Expression)
		if err != nil {
			return nil, err
		}
		chain = append(chain, er)
	}
	return chain, nil
}
