// Package server orchestrates all components: provider loading, the component
// session, COMMS subjects, the database and the HTTP endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/morezero/capability-facade/internal/config"
	"github.com/morezero/capability-facade/pkg/addressing"
	"github.com/morezero/capability-facade/pkg/capabilities"
	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/commsutil"
	"github.com/morezero/capability-facade/pkg/db"
	"github.com/morezero/capability-facade/pkg/dispatcher"
	"github.com/morezero/capability-facade/pkg/events"
	"github.com/morezero/capability-facade/pkg/facade"
	"github.com/morezero/capability-facade/pkg/loader"
	"github.com/morezero/capability-facade/pkg/metrics"
	"github.com/morezero/capability-facade/pkg/remote/inprocess"
	"github.com/morezero/capability-facade/pkg/session"
)

const logPrefix = "server:server"

// RootName is the directory name of the root folder every server publishes.
const RootName = "root"

// Server is the capability-facade orchestrator.
type Server struct {
	cfg       *config.Config
	serverID  addressing.ServerID
	providers []*capability.Provider

	nc   *comms.Conn
	pool *pgxpool.Pool

	session *session.Session
	conn    *inprocess.Connection
	disp    *dispatcher.Dispatcher
	root    *capabilities.Folder
	rootID  int64

	promReg *prometheus.Registry
	subs    []*comms.Subscription
}

// New resolves the configured providers, opens the session and publishes the
// root folder. nc and pool are optional; without nc nothing is mirrored to
// COMMS and no subjects are served.
func New(ctx context.Context, cfg *config.Config, nc *comms.Conn, pool *pgxpool.Pool) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		serverID: cfg.ServerID(),
		nc:       nc,
		pool:     pool,
		promReg:  prometheus.NewRegistry(),
	}
	s.promReg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(s.promReg)

	var repo *db.Repository
	if pool != nil {
		repo = db.NewRepository(pool)
	}
	providers, err := ResolveProviders(ctx, cfg, nc, repo)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to resolve providers: %w", logPrefix, err)
	}
	s.providers = providers
	slog.Info(fmt.Sprintf("%s - Resolved %d capability providers", logPrefix, len(providers)))

	var publisher events.Publisher = &events.NoOpPublisher{}
	if nc != nil {
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{SubjectPrefix: cfg.NotifySubjectPrefix})
	}
	s.session = session.New(facade.NewFactory(capability.NewList(providers...)), &session.Options{
		Publisher: publisher,
		Metrics:   m,
	})
	s.conn = inprocess.New(s.session, &inprocess.Options{CloseSession: true})
	s.disp = dispatcher.NewDispatcher(s.conn, s.session)

	s.root = capabilities.NewFolder(RootName)
	dir := addressing.NewSimpleDirectory()
	dir.Register(RootName, s.root)
	actx, err := addressing.Root(s.root, addressing.Model{ServerID: s.serverID, Logger: slog.Default()}, dir)
	if err != nil {
		s.conn.Close()
		return nil, fmt.Errorf("%s - failed to address root: %w", logPrefix, err)
	}
	s.rootID, err = s.conn.Create(ctx, s.root, actx)
	if err != nil {
		s.conn.Close()
		return nil, fmt.Errorf("%s - failed to publish root: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Published root of %s as component %d", logPrefix, s.serverID, s.rootID))

	if nc != nil {
		if err := s.subscribe(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// ResolveProviders returns the built-in providers, or those named by the
// configured provider documents when there are any.
func ResolveProviders(ctx context.Context, cfg *config.Config, nc *comms.Conn, repo *db.Repository) ([]*capability.Provider, error) {
	builtins := capabilities.Builtins()
	if len(cfg.ProviderLocations) == 0 {
		return builtins, nil
	}

	catalog, err := loader.NewCatalog(builtins...)
	if err != nil {
		return nil, err
	}
	pg := &loader.PostgresFetcher{Repository: repo}
	parser := loader.NewDocumentParser(catalog).
		WithFetcher("nats", &loader.NATSFetcher{Conn: nc, Timeout: cfg.RequestTimeout}).
		WithFetcher("postgres", pg).
		WithFetcher("postgresql", pg)

	acc, err := loader.New(parser).Load(ctx, cfg.ProviderLocations)
	if err != nil {
		return nil, err
	}
	return acc.Providers(), nil
}

func (s *Server) subscribe(ctx context.Context) error {
	doc := loader.DocumentFor(string(s.serverID), s.providers)
	providersSub, err := s.nc.Subscribe(s.cfg.ProvidersSubject, func(msg *comms.Msg) {
		data, err := commsutil.EncodePayload(doc)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - providers response encode: %v", logPrefix, err))
			return
		}
		if err := msg.Respond(data); err != nil {
			slog.Warn(fmt.Sprintf("%s - providers respond: %v", logPrefix, err))
		}
	})
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, s.cfg.ProvidersSubject, err)
	}
	s.subs = append(s.subs, providersSub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, s.cfg.ProvidersSubject))

	controlSub, err := s.nc.Subscribe(s.cfg.ControlSubject, s.disp.MsgHandler(ctx, s.cfg.RequestTimeout))
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, s.cfg.ControlSubject, err)
	}
	s.subs = append(s.subs, controlSub)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, s.cfg.ControlSubject))

	return s.nc.Flush()
}

// Root returns the root folder. Components added to it are published.
func (s *Server) Root() *capabilities.Folder { return s.root }

// RootID returns the component id of the root folder.
func (s *Server) RootID() int64 { return s.rootID }

// Connection returns the in-process connection to the published components.
func (s *Server) Connection() *inprocess.Connection { return s.conn }

// Providers returns the resolved capability providers.
func (s *Server) Providers() []*capability.Provider {
	return append([]*capability.Provider(nil), s.providers...)
}

// Close stops serving subjects and unpublishes every component. The COMMS
// connection and pool belong to the caller.
func (s *Server) Close() error {
	var errs error
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, comms.ErrConnectionClosed) {
			errs = multierr.Append(errs, err)
		}
	}
	s.subs = nil
	return multierr.Append(errs, s.conn.Close())
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	SetupLogging(cfg.LogLevel)

	slog.Info(fmt.Sprintf("%s - Starting capability-facade", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var nc *comms.Conn
	if cfg.COMMSEnabled {
		nc, err = commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		defer nc.Drain()
	}

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
	}

	s, err := New(ctx, cfg, nc, pool)
	if err != nil {
		return err
	}

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{Addr: httpAddr, Handler: s.Handler()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - capability-facade is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.HealthCheckTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
	}
	if err := s.Close(); err != nil {
		slog.Warn(fmt.Sprintf("%s - component cleanup: %v", logPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// SetupLogging installs the default text logger at level (debug, info, warn
// or error; anything else means info).
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", logPrefix, err))
	}
}
