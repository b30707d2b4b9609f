// Package app assembles the gateway from a loaded configuration: engines,
// directory, enrichers, templates, actions, authentication and the HTTP
// surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"

	"github.com/rhuss/anreicher/pkg/action"
	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/config"
	"github.com/rhuss/anreicher/pkg/directory"
	"github.com/rhuss/anreicher/pkg/directory/memory"
	"github.com/rhuss/anreicher/pkg/directory/postgres"
	"github.com/rhuss/anreicher/pkg/directory/rediscache"
	"github.com/rhuss/anreicher/pkg/engine"
	"github.com/rhuss/anreicher/pkg/enrich"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/gateway/ollama"
	"github.com/rhuss/anreicher/pkg/gateway/openaicompat"
	"github.com/rhuss/anreicher/pkg/observability"
	"github.com/rhuss/anreicher/pkg/pipeline"
	"github.com/rhuss/anreicher/pkg/transport"
	transporthttp "github.com/rhuss/anreicher/pkg/transport/http"
)

// App is a fully wired gateway.
type App struct {
	Engine  *engine.Engine
	Adapter *transporthttp.Adapter
	Server  *transporthttp.Server

	logger  *slog.Logger
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Option customizes Build.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	version   string
	publisher action.Publisher
}

// WithLogger sets the logger used for access logs and the log action.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVersion sets the service version reported in traces.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithPublisher enables the publish action with pub instead of dialing
// the configured NATS server.
func WithPublisher(pub action.Publisher) Option {
	return func(o *options) { o.publisher = pub }
}

// Constructors returns the gateway constructors for every supported
// backend kind, each wrapped with metrics.
func Constructors() map[string]gateway.Constructor {
	instrumented := func(ctor gateway.Constructor) gateway.Constructor {
		return func(ep gateway.Endpoint) (gateway.Gateway, error) {
			gw, err := ctor(ep)
			if err != nil {
				return nil, err
			}
			return gateway.Instrument(gw), nil
		}
	}
	return map[string]gateway.Constructor{
		"ollama": instrumented(ollama.Constructor),
		"openai": instrumented(openaicompat.Constructor),
	}
}

// Build wires an App from cfg. On error every resource opened so far is
// released.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{logger: o.logger}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Observability.Tracing.Enabled,
		ServiceName: cfg.Observability.Tracing.ServiceName,
		Version:     o.version,
		SampleRatio: cfg.Observability.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	a.onClose("tracing", shutdownTracing)

	endpoints := make([]gateway.Endpoint, 0, len(cfg.Engines))
	for _, e := range cfg.Engines {
		endpoints = append(endpoints, gateway.Endpoint{
			Name:    e.Name,
			Kind:    e.Kind,
			URL:     e.URL,
			APIKey:  e.APIKey,
			Timeout: e.Timeout,
		})
	}
	factory, err := gateway.NewFactory(endpoints, Constructors())
	if err != nil {
		return nil, fmt.Errorf("creating engines: %w", err)
	}
	a.onClose("engines", func(context.Context) error { return factory.Close() })

	var checks []transporthttp.Option
	dir, dirChecks, err := a.buildDirectory(ctx, cfg.Directory)
	if err != nil {
		return nil, err
	}
	checks = append(checks, dirChecks...)

	enrichers := pipeline.NewRegistry()
	if err := enrich.Register(enrichers, enrich.Deps{Events: dir, Users: dir}); err != nil {
		return nil, fmt.Errorf("registering enrichers: %w", err)
	}
	templates, err := pipeline.NewTemplateRegistry(cfg.Pipeline.Templates)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	builder, err := pipeline.NewBuilder(templates, enrichers)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline builder: %w", err)
	}

	runner, natsCheck, err := a.buildActions(cfg.Actions, o)
	if err != nil {
		return nil, err
	}
	if natsCheck != nil {
		checks = append(checks, natsCheck)
	}

	eng, err := engine.New(factory, builder, runner, engine.Config{
		DefaultEngine:   cfg.Pipeline.DefaultEngine,
		DefaultModel:    cfg.Pipeline.DefaultModel,
		DefaultTemplate: cfg.Pipeline.DefaultTemplate,
		Validation: api.ValidationConfig{
			MaxPromptSize: cfg.Pipeline.MaxPromptSize,
			MaxSystemSize: cfg.Pipeline.MaxSystemSize,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	a.Engine = eng

	authMW, err := buildAuth(cfg.Auth)
	if err != nil {
		return nil, err
	}

	adapterOpts := checks
	if authMW != nil {
		adapterOpts = append(adapterOpts, transporthttp.WithAPIMiddleware(authMW))
	}
	if !cfg.Observability.Metrics.Enabled {
		adapterOpts = append(adapterOpts, transporthttp.WithMetricsHandler(nil))
	}

	httpCfg := transporthttp.DefaultConfig()
	if cfg.Server.MaxBodySize > 0 {
		httpCfg.MaxBodySize = cfg.Server.MaxBodySize
	}
	a.Adapter = transporthttp.NewAdapter(eng, httpCfg, []transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(o.logger),
	}, adapterOpts...)

	serverOpts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithLogger(o.logger),
	}
	if cfg.Server.ReadHeaderTimeout > 0 {
		serverOpts = append(serverOpts, transporthttp.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout))
	}
	if cfg.Server.ShutdownTimeout > 0 {
		serverOpts = append(serverOpts, transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout))
	}
	a.Server = transporthttp.NewServer(a.Adapter, serverOpts...)

	o.logger.Info("gateway assembled",
		"engines", factory.Engines(),
		"templates", templates.Names(),
		"directory", cfg.Directory.Type,
		"auth", cfg.Auth.Type,
	)
	return a, nil
}

// buildDirectory opens the configured directory, fronted by the Redis cache
// when an address is set.
func (a *App) buildDirectory(ctx context.Context, cfg config.DirectoryConfig) (directory.Directory, []transporthttp.Option, error) {
	var (
		dir    directory.Directory
		checks []transporthttp.Option
	)

	switch cfg.Type {
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
			SeedOnStart:    cfg.Postgres.SeedOnStart,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres directory: %w", err)
		}
		a.onClose("postgres", func(context.Context) error { return store.Close() })
		checks = append(checks, transporthttp.WithHealthCheck("postgres", store))
		dir = store
	default:
		dir = memory.NewSeeded()
	}

	if cfg.Redis.Addr != "" {
		cache, err := rediscache.New(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
			Prefix:   cfg.Redis.Prefix,
		}, dir)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting redis cache: %w", err)
		}
		a.onClose("redis", func(context.Context) error { return cache.Close() })
		checks = append(checks, transporthttp.WithHealthCheck("redis", cache))
		dir = cache
	}
	return dir, checks, nil
}

// buildActions registers the log action, plus the publish action when a
// publisher is available.
func (a *App) buildActions(cfg config.ActionsConfig, o options) (*action.Runner, transporthttp.Option, error) {
	actions := []action.Action{action.NewLogAction(o.logger)}
	var check transporthttp.Option

	pub := o.publisher
	if pub == nil && cfg.NATS.URL != "" {
		nc, err := action.ConnectNATS(cfg.NATS.URL, cfg.NATS.Token, o.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting nats: %w", err)
		}
		a.onClose("nats", func(context.Context) error { return nc.Drain() })
		check = transporthttp.WithHealthCheck("nats", transport.HealthCheckFunc(func(context.Context) error {
			if status := nc.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats connection %s", status)
			}
			return nil
		}))
		pub = nc
	}
	if pub != nil {
		actions = append(actions, action.NewPublishAction(pub, cfg.NATS.SubjectPrefix))
	}

	runner, err := action.NewRunner(actions...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating actions: %w", err)
	}
	return runner, check, nil
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", "resource", c.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Handler returns the HTTP handler of the wired gateway.
func (a *App) Handler() http.Handler {
	return a.Adapter.Handler()
}
