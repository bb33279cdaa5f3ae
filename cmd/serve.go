package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunegate/internal/auth"
	"github.com/desertthunder/tunegate/internal/delegation"
	"github.com/desertthunder/tunegate/internal/repositories"
	"github.com/desertthunder/tunegate/internal/server"
	"github.com/desertthunder/tunegate/internal/services"
	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
)

// gateway is a fully wired server plus the resources it owns.
type gateway struct {
	server  *server.Server
	closers []func() error
}

func (g *gateway) Close() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		errs = append(errs, g.closers[i]())
	}
	return errors.Join(errs...)
}

// Serve validates the configuration, wires every component and runs the gateway until the process is signalled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = int(port)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	gw, err := buildGateway(ctx, config, r.logger, cmd.Bool("migrate"))
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			r.logger.Warn("failed to release resources", "error", err)
		}
	}()

	return gw.server.Run(ctx)
}

// buildGateway opens the database and state store and assembles the HTTP server around them.
func buildGateway(ctx context.Context, config *shared.Config, logger *log.Logger, migrate bool) (*gateway, error) {
	gw := &gateway{}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}
	gw.closers = append(gw.closers, db.Close)

	if migrate {
		if err := shared.RunMigrations(db); err != nil {
			gw.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	states, err := newStateStore(ctx, config.Delegation, gw)
	if err != nil {
		gw.Close()
		return nil, err
	}

	sessions, err := auth.NewSessionIssuer(config.Session.Secret, auth.SessionOpts{TTL: config.Session.TTL})
	if err != nil {
		gw.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpClient := &http.Client{Timeout: config.Delegation.HTTPTimeout}
	users := repositories.NewUserRepository(db)
	tokens := repositories.NewDelegatedTokenRepository(db)

	broker := delegation.NewBroker(services.NewOAuthConfig(config.Credentials.Spotify), tokens, delegation.BrokerOpts{
		StateStore:   states,
		HTTPClient:   httpClient,
		RefreshSkew:  config.Delegation.RefreshSkew,
		StateTTL:     config.Delegation.StateTTL,
		RequireState: config.Delegation.RequireState,
		Logger:       shared.WithLogger(logger, "component", "delegation"),
		Metrics:      delegation.NewMetrics(registry),
	})

	gw.server = server.New(config.Server, server.Deps{
		Users:    users,
		Hasher:   auth.NewPasswordHasher(config.Session.BcryptCost),
		Sessions: sessions,
		Broker:   broker,
		Spotify:  services.NewSpotifyClient(config.Credentials.Spotify.APIURL, httpClient),
		DB:       db,
		Logger:   shared.WithLogger(logger, "component", "http"),
		Registry: registry,
	})

	logger.Info("gateway ready",
		"addr", config.Server.Addr(),
		"database", db.Driver(),
		"state_store", stateStoreName(config.Delegation),
	)
	return gw, nil
}

// newStateStore uses Redis when configured so that several replicas share pending authorizations.
func newStateStore(ctx context.Context, cfg shared.DelegationConfig, gw *gateway) (delegation.StateStore, error) {
	if cfg.RedisURL == "" {
		return delegation.NewMemoryStateStore(cfg.StateTTL), nil
	}

	store, err := delegation.OpenRedisStateStore(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	gw.closers = append(gw.closers, store.Close)
	return store, nil
}
