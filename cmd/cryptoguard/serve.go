package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cryptoguard/cryptoguard/client"
	"github.com/cryptoguard/cryptoguard/internal/config"
	"github.com/cryptoguard/cryptoguard/internal/infra/cache"
	"github.com/cryptoguard/cryptoguard/internal/infra/database"
	"github.com/cryptoguard/cryptoguard/internal/infra/gateway"
	"github.com/cryptoguard/cryptoguard/internal/infra/repository"
	"github.com/cryptoguard/cryptoguard/internal/present/rest"
	"github.com/cryptoguard/cryptoguard/internal/present/rest/middleware"
	"github.com/cryptoguard/cryptoguard/internal/service"
	"github.com/cryptoguard/cryptoguard/internal/usecase"
	"github.com/cryptoguard/cryptoguard/policy"
)

const serviceName = "cryptoguard"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cryptoguard node",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(os.Stdout)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address, overrides server.listen")
	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func setupTraceProvider(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	domainConfig := cfg.Domain()

	if cfg.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, cfg.Server.TraceEndpoint)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	dsn := cfg.Server.PostgresDsn
	if cfg.Server.DatabaseDriver == "sqlite" {
		dsn = cfg.Server.SqlitePath
	}
	db, err := database.Open(cfg.Server.DatabaseDriver, dsn)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	var rdb *redis.Client
	var revocations service.RevocationStore = repository.NewMemoryRevocationStore()
	if cfg.Server.RedisAddr != "" {
		rdb = database.NewRedis(cfg.Server.RedisAddr, cfg.Server.RedisPassword, cfg.Server.RedisDB)
		if err := database.PingRedis(ctx, rdb); err != nil {
			return fmt.Errorf("connecting redis: %w", err)
		}
		defer rdb.Close()
		revocations = repository.NewRedisRevocationStore(rdb)
	} else {
		slog.Warn("redis is not configured; realtime is disabled and sessions are revoked in memory only")
	}

	var ratingCache usecase.RatingCache
	if cfg.Server.MemcachedAddr != "" {
		ratingCache = cache.NewRatingCache(database.NewMemcached(cfg.Server.MemcachedAddr))
	}

	var attestationRepo usecase.AttestationRepository = repository.NewAttestationRepository(db)
	if cfg.Server.AttestationRemote != "" {
		attestationRepo = gateway.NewAttestationGateway(client.New(cfg.Server.AttestationRemote))
		slog.Info("attestations are stored remotely", slog.String("remote", cfg.Server.AttestationRemote))
	}

	clock := usecase.RealClock{}
	attester, err := service.NewAttesterService(domainConfig, clock)
	if err != nil {
		return err
	}
	signalService := service.NewSignalService(rdb)

	identityUsecase := usecase.NewIdentityUsecase(repository.NewIdentityRepository(db))
	attestationUsecase := usecase.NewAttestationUsecase(attestationRepo, identityUsecase, signalService, attester.Address())

	var ratingRepo usecase.RatingRepository = repository.NewRatingRepository(db)
	if cfg.Server.RatingBackend == config.RatingBackendAttestation {
		ratingRepo = usecase.NewAttestedRatingRepository(attestationUsecase, attester)
	}

	ratingUsecase := usecase.NewRatingUsecase(ratingRepo, identityUsecase, ratingCache, signalService, clock)

	if cfg.Server.PolicyPath != "" {
		engine, err := policy.Load(cfg.Server.PolicyPath)
		if err != nil {
			return err
		}
		attestationUsecase.WithPolicy(engine)
		ratingUsecase.WithPolicy(engine)
		slog.Info("write policy loaded", slog.String("policy", engine.Name()))
	}
	commentUsecase := usecase.NewCommentUsecase(attestationUsecase, identityUsecase, attester, domainConfig.VoteTally)
	statusUsecase := usecase.NewStatusUsecase(ratingRepo)
	authService := service.NewAuthService(domainConfig, identityUsecase, revocations, clock)

	e := echo.New()
	e.HideBanner = true
	if cfg.Server.EnableTrace {
		e.Use(otelecho.Middleware(serviceName))
	}
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.NewAuthMiddleware(authService).IdentifyIdentity)

	handler := rest.NewHandler(
		domainConfig,
		attestationUsecase,
		identityUsecase,
		ratingUsecase,
		commentUsecase,
		statusUsecase,
		authService,
		signalService,
	)
	handler.RegisterRoutes(e, middleware.WriteRateLimiter(cfg.Server.WriteRateLimit, cfg.Server.WriteRateBurst))

	slog.Info(
		"cryptoguard node starting",
		slog.String("listen", cfg.Server.Listen),
		slog.String("attester", attester.Address()),
		slog.String("ratingBackend", cfg.Server.RatingBackend),
		slog.String("voteTally", string(domainConfig.VoteTally)),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
