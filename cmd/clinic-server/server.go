package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/config"
	"github.com/ayurclinic/clinic/internal/domain/dietchart"
	"github.com/ayurclinic/clinic/internal/domain/dietplan"
	"github.com/ayurclinic/clinic/internal/domain/export"
	"github.com/ayurclinic/clinic/internal/domain/nutrition"
	"github.com/ayurclinic/clinic/internal/domain/patient"
	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/internal/platform/db"
	"github.com/ayurclinic/clinic/internal/platform/docstore"
	"github.com/ayurclinic/clinic/internal/platform/events"
	"github.com/ayurclinic/clinic/internal/platform/middleware"
)

const (
	bodyLimit       = "1M"
	exportTimeout   = 2 * time.Minute
	nutritionTTL    = 10 * time.Minute
	rendererTimeout = 90 * time.Second
)

// backend holds the repositories of the configured store.
type backend struct {
	patients patient.Repository
	foods    nutrition.Repository
	pool     *pgxpool.Pool
	checks   []db.Check
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to postgres")
		return &backend{
			patients: patient.NewRepoPG(pool),
			foods:    nutrition.NewRepoPG(pool),
			pool:     pool,
			closers:  []func(){pool.Close},
		}, nil

	case config.BackendMongo:
		store, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		closeStore := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				logger.Error().Err(err).Msg("failed to disconnect from mongo")
			}
		}
		if err := patient.EnsureIndexes(ctx, store.Database); err != nil {
			closeStore()
			return nil, fmt.Errorf("patient indexes: %w", err)
		}
		if err := nutrition.EnsureIndexes(ctx, store.Database); err != nil {
			closeStore()
			return nil, fmt.Errorf("nutrition indexes: %w", err)
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongo")
		return &backend{
			patients: patient.NewRepoMongo(store.Database),
			foods:    nutrition.NewRepoMongo(store.Database),
			checks:   []db.Check{store.Check()},
			closers:  []func(){closeStore},
		}, nil

	case config.BackendMemory:
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return &backend{
			patients: patient.NewMemoryRepo(),
			foods:    nutrition.NewMemoryRepo(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// dependencies is everything the HTTP server is built from.
type dependencies struct {
	cfg      *config.Config
	logger   zerolog.Logger
	backend  *backend
	sessions *auth.SessionService
	events   events.Publisher
	archive  export.Archive
	renderer export.Renderer
	checks   []db.Check
	closers  []func()
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.backend.Close()
}

func openDependencies(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*dependencies, error) {
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d := &dependencies{
		cfg:      cfg,
		logger:   logger,
		backend:  be,
		events:   events.Nop{},
		renderer: export.UnavailableRenderer{},
		checks:   append([]db.Check(nil), be.checks...),
	}

	var store auth.SessionStore
	if cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = client.Close() })
		d.checks = append(d.checks, db.Check{
			Name: "redis",
			Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		store = auth.NewRedisSessionStore(client)
		logger.Info().Msg("patient sessions stored in redis")
	} else {
		store = auth.NewMemorySessionStore()
		logger.Warn().Msg("REDIS_URL not set, patient sessions are kept in process memory")
	}
	d.sessions = auth.NewSessionService([]byte(cfg.SessionSecret), cfg.SessionTTL, store)

	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		d.closers = append(d.closers, func() {
			if err := pub.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close kafka writer")
			}
		})
		d.events = pub
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing domain events to kafka")
	}

	if cfg.MinioEndpoint != "" {
		archive, err := export.NewMinioArchive(ctx, export.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			d.Close()
			return nil, err
		}
		d.archive = archive
		logger.Info().Str("bucket", cfg.MinioBucket).Msg("archiving exported charts to object storage")
	}

	if cfg.RendererURL != "" {
		d.renderer = export.NewHTTPRenderer(cfg.RendererURL, rendererTimeout)
	} else {
		logger.Warn().Msg("RENDERER_URL not set, chart exports are disabled")
	}

	return d, nil
}

func newServer(d *dependencies) *echo.Echo {
	cfg, logger := d.cfg, d.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, exportTimeout, "/export", "/download", "/export.xlsx"))

	if cfg.IsDev() {
		logger.Warn().Msg("development mode: unauthenticated requests act as an admin practitioner")
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}
	e.Use(middleware.Audit(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(d.backend.pool, d.checks...))

	patientSvc := patient.NewService(d.backend.patients,
		patient.WithEvents(d.events),
		patient.WithLogger(logger),
		patient.WithSessions(d.sessions),
	)
	charts := dietchart.NewStore(d.backend.patients, dietplan.NewEngine(),
		dietchart.WithEvents(d.events),
		dietchart.WithLogger(logger),
	)
	exportOpts := []export.Option{export.WithEvents(d.events), export.WithLogger(logger)}
	if d.archive != nil {
		exportOpts = append(exportOpts, export.WithArchive(d.archive))
	}
	exportSvc := export.NewService(charts, patientSvc, d.renderer, exportOpts...)

	patientHandler := patient.NewHandler(patientSvc)
	chartHandler := dietchart.NewHandler(charts, patientHandler)
	exportHandler := export.NewHandler(exportSvc, patientHandler)
	nutritionHandler := nutrition.NewHandler(nutrition.NewService(d.backend.foods, nutritionTTL))

	apiLimit := middleware.DefaultRateLimitConfig()
	apiLimit.RequestsPerSecond = cfg.RateLimitRPS
	apiLimit.BurstSize = cfg.RateLimitBurst

	api := e.Group("/api", middleware.RateLimit(apiLimit))
	nutritionHandler.RegisterRoutes(api)

	doctor := api.Group("/doctor", auth.RequireRole(auth.RoleDoctor))
	patientHandler.RegisterDoctorRoutes(doctor)
	chartHandler.RegisterDoctorRoutes(doctor)
	exportHandler.RegisterDoctorRoutes(doctor)

	portal := api.Group("/patient", d.sessions.PatientSessionMiddleware(isLoginPath))
	portal.POST("/login", patientHandler.Login, middleware.RateLimit(middleware.LoginRateLimitConfig(cfg.LoginRateLimitRPS)))
	patientHandler.RegisterPatientRoutes(portal)
	chartHandler.RegisterPatientRoutes(portal)
	exportHandler.RegisterPatientRoutes(portal)

	return e
}

func isLoginPath(c echo.Context) bool {
	return c.Path() == "/api/patient/login"
}
