package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/teftar/api/auth"
	"github.com/teftar/api/config"
	"github.com/teftar/api/internal/observability"
	"github.com/teftar/api/jwtauth"
	"github.com/teftar/api/middleware"
	"github.com/teftar/api/repositories"
	"github.com/teftar/api/repositories/postgres"
	"github.com/teftar/api/supabase"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dependencies is the central wiring point for the API.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics // nil when METRICS_ENABLED=false
	Tracer  trace.Tracer

	// Repositories
	Clients repositories.ClientRepository

	// Auth
	Verifier       *jwtauth.Verifier
	IdentityClient *supabase.Client
	Accounts       *auth.Service
	AuthMiddleware *middleware.AuthMiddleware
}

// Option customizes NewDependencies
type Option func(*Dependencies)

// WithDB supplies an already opened pool instead of dialing cfg.Database
func WithDB(db *postgres.DB) Option {
	return func(d *Dependencies) {
		d.DB = db
	}
}

// WithMetrics attaches the metrics collector
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dependencies) {
		d.Metrics = m
	}
}

// WithTracer attaches the tracer used for upstream spans
func WithTracer(t trace.Tracer) Option {
	return func(d *Dependencies) {
		d.Tracer = t
	}
}

// NewDependencies creates and wires up all application dependencies.
// A missing or invalid signing policy is fatal.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(deps)
	}

	if err := deps.initVerifier(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	if err := deps.initIdentityProvider(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.Clients = postgres.NewClientRepository(deps.DB, logger)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initVerifier(cfg *config.Config) error {
	policy, err := jwtauth.ParsePolicy(cfg.Signing.JWK, cfg.Signing.Secret)
	if err != nil {
		return err
	}

	verifier, err := jwtauth.NewVerifier(policy, jwtauth.WithLeeway(cfg.Signing.Leeway))
	if err != nil {
		return err
	}
	d.Verifier = verifier

	var recorder middleware.OutcomeRecorder
	if d.Metrics != nil {
		recorder = d.Metrics
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(verifier, recorder, d.Logger)

	d.Logger.Info("token verifier initialized",
		zap.String("algorithm", policy.Method().Alg()),
		zap.Duration("leeway", cfg.Signing.Leeway))
	return nil
}

func (d *Dependencies) initIdentityProvider(cfg *config.Config) error {
	var opts []supabase.ClientOption
	if d.Metrics != nil {
		opts = append(opts, supabase.WithObserver(d.Metrics))
	}
	if d.Tracer != nil {
		opts = append(opts, supabase.WithTracer(d.Tracer))
	}

	client, err := supabase.NewClient(supabase.Config{
		URL:         cfg.Supabase.URL,
		AnonKey:     cfg.Supabase.AnonKey,
		RedirectURL: cfg.Supabase.RedirectURL(),
		Timeout:     cfg.Supabase.Timeout,
	}, d.Logger, opts...)
	if err != nil {
		return err
	}

	d.IdentityClient = client
	d.Accounts = auth.NewService(client, client.RedirectURL(), cfg.Supabase.Timeout, d.Logger)
	return nil
}

func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if d.DB == nil {
		db, err := postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		d.DB = db
	}

	if cfg.Database.InitSchema {
		if err := d.DB.InitSchema(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if err := observability.ShutdownTracer(ctx); err != nil {
		errs = append(errs, err)
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
