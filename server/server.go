// Package server wires the connector's services and serves them over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/db"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/jwtutil"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/oauth"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/oauth1"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/publish"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/repository"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/social"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/statestore"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/tokens"
	connect "github.com/ArthurPouzCS/traktoon-sub000/server/connect-handlers"
	health "github.com/ArthurPouzCS/traktoon-sub000/server/health-handlers"
	publishhandlers "github.com/ArthurPouzCS/traktoon-sub000/server/publish-handlers"
	session "github.com/ArthurPouzCS/traktoon-sub000/server/session-handlers"
	"github.com/appleboy/graceful"
	"github.com/juju/clock"
)

const shutdownTimeout = 10 * time.Second

// Server holds the wired services and the HTTP handler in front of them.
type Server struct {
	cfg      *config.Config
	db       *db.Service
	states   statestore.Store
	handler  http.Handler
	Connect  *oauth.ConnectService
	Tokens   *tokens.Manager
	Caller   *publish.Caller
	Sessions *jwtutil.Sessions
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Clock      clock.Clock
	HTTPClient *http.Client
	Registry   *oauth.Registry
	States     statestore.Store
}

// New builds every service from cfg.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if opts.Registry == nil {
		opts.Registry = oauth.NewRegistry(cfg, opts.HTTPClient)
	}

	sessions, err := jwtutil.NewSessions(cfg.SessionSecret, cfg.SessionIssuer, opts.Clock)
	if err != nil {
		return nil, err
	}

	dbService, err := db.NewService(cfg)
	if err != nil {
		return nil, err
	}

	states := opts.States
	if states == nil {
		states, err = statestore.New(statestore.Config{
			Type: statestore.ParseStoreType(cfg.StateStore),
			Redis: statestore.RedisOptions{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			},
			Clock: opts.Clock,
		})
		if err != nil {
			_ = dbService.Close()
			return nil, fmt.Errorf("failed to create state store: %w", err)
		}
	}

	conns := repository.NewConnectionRepository(dbService, opts.Clock)
	s := &Server{
		cfg:      cfg,
		db:       dbService,
		states:   states,
		Sessions: sessions,
	}
	s.Connect = oauth.NewConnectService(oauth.ConnectOptions{
		Registry:    opts.Registry,
		States:      states,
		Connections: conns,
		Clock:       opts.Clock,
		PublicURL:   cfg.PublicURL,
		StateTTL:    cfg.StateTTL,
		Skew:        cfg.TokenSkew,
	})
	s.Tokens = tokens.NewManager(tokens.Options{
		Registry:    opts.Registry,
		Connections: conns,
		Clock:       opts.Clock,
		Skew:        cfg.TokenSkew,
	})
	s.Caller = publish.NewCaller(opts.Clock, publishers(cfg, opts, s.Tokens)...)
	s.handler = s.routes()

	logger.Info("Services wired",
		"providers", s.Connect.Providers(),
		"channels", s.Caller.Channels(),
		"state_store", cfg.StateStore)
	return s, nil
}

func publishers(cfg *config.Config, opts Options, creds publish.Credentials) []publish.Publisher {
	var out []publish.Publisher

	if cfg.TwitterOAuth2Enabled() || cfg.TwitterOAuth1Enabled() {
		consumer := oauth1.Credentials{}
		if cfg.TwitterOAuth1Enabled() {
			consumer.ConsumerKey = cfg.TwitterConsumerKey
			consumer.ConsumerSecret = cfg.TwitterConsumerSecret
		}
		out = append(out, publish.NewTwitterPublisher(creds, consumer,
			oauth1.NewSigner(oauth1.WithClock(opts.Clock)), publish.DefaultTwitterEndpoints, opts.HTTPClient))
	}

	if cfg.InstagramEnabled() {
		var accounts publish.AccountResolver
		if p, err := opts.Registry.Provider(social.ProviderInstagram); err == nil {
			accounts, _ = p.(publish.AccountResolver)
		}
		out = append(out, publish.NewInstagramPublisher(creds, accounts, publish.InstagramOptions{
			GraphBase:    oauth.InstagramEndpoints(cfg.FacebookGraphVersion).APIBase,
			PollInterval: cfg.PublishPollInterval,
			PollTimeout:  cfg.PublishPollTimeout,
			Clock:        opts.Clock,
		}, opts.HTTPClient))
	}

	if cfg.RedditEnabled() {
		out = append(out, publish.NewRedditPublisher(creds, publish.DefaultRedditAPIBase, cfg.RedditUserAgent, opts.HTTPClient))
	}
	return out
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	deps := map[string]health.Pinger{"database": s.db.DB()}
	if redis, ok := s.states.(*statestore.RedisStore); ok {
		deps["state_store"] = health.PingFunc(redis.Ping)
	}
	health.RegisterRoutes(mux, "", s.cfg, s.Connect.Providers, deps)
	connect.RegisterRoutes(mux, "", s.cfg, s.Connect, s.Sessions)
	publishhandlers.RegisterRoutes(mux, "", s.cfg, s.Caller, s.Sessions)
	session.RegisterRoutes(mux, "", s.cfg, s.Sessions)

	return mux
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close releases the database and the state store.
func (s *Server) Close() error {
	s.states.Close()
	return s.db.Close()
}

// Start validates cfg, serves HTTP and blocks until a shutdown signal.
func Start(cfg *config.Config) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s, err := New(cfg, Options{})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.PublishPollTimeout + cfg.HTTPTimeout,
		IdleTimeout:       60 * time.Second,
	}

	m := graceful.NewManager()
	m.AddRunningJob(func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "addr", srv.Addr, "public_url", cfg.PublicURL)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info("Shutdown signal received, draining connections")
			return srv.Shutdown(shutdownCtx)
		}
	})
	m.AddShutdownJob(func() error {
		logger.Info("Closing storage")
		return s.Close()
	})

	<-m.Done()
	logger.Info("Server shutdown gracefully")
	return nil
}
