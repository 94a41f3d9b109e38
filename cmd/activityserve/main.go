package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/activityserve/activityserve/internal/auth"
	"github.com/activityserve/activityserve/internal/bus"
	"github.com/activityserve/activityserve/internal/config"
	"github.com/activityserve/activityserve/internal/domain"
	"github.com/activityserve/activityserve/internal/present/rest"
	"github.com/activityserve/activityserve/internal/present/rest/middleware"
	"github.com/activityserve/activityserve/internal/service"
	"github.com/activityserve/activityserve/internal/store"
	"github.com/activityserve/activityserve/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	conf, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := setupTrace(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up tracing")
		}
		defer shutdown(context.Background())
	}

	var redisClient *redis.Client
	if conf.Server.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: conf.Server.RedisAddr,
			DB:   conf.Server.RedisDB,
		})
	}

	objects, err := buildStore(conf, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object store")
	}

	delivery := buildBus(conf, redisClient)

	verifier, err := buildVerifier(ctx, conf.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize token verifier")
	}

	sessions, err := auth.NewSessionIssuer([]byte(conf.Session.Secret), conf.Session.TTL())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session issuer")
	}

	resolver := usecase.NewIdentityResolver(objects)
	submission := usecase.NewSubmissionValidator(objects, delivery)
	authService := service.NewAuthService(verifier, resolver, sessions, objects)
	worker := service.NewDeliveryWorker(delivery, objects)

	go worker.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("activityserve"))
	}

	authMiddleware := middleware.NewAuthMiddleware(authService, conf.Session)
	handler := rest.NewHandler(conf.Session, authService, submission, objects)
	handler.RegisterRoutes(e, authMiddleware)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("listen", conf.Server.Listen).Msg("activityserve starting")
	e.Logger.Fatal(e.Start(conf.Server.Listen))
}

func setupTrace(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func buildStore(conf config.Config, redisClient *redis.Client) (store.ObjectStore, error) {
	var backend store.ObjectStore
	switch conf.Store.Backend {
	case "postgres":
		pg, err := store.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(); err != nil {
			return nil, err
		}
		backend = pg
	default:
		backend = store.NewMemoryStore()
	}

	switch conf.Store.Cache {
	case "redis":
		if redisClient != nil {
			return store.NewCachingStore(backend, store.NewRedisCache(redisClient, 5*time.Minute)), nil
		}
		log.Warn().Msg("redis cache requested but no redis address configured")
		return backend, nil
	case "memcached":
		if conf.Server.MemcachedAddr != "" {
			client := memcache.New(conf.Server.MemcachedAddr)
			return store.NewCachingStore(backend, store.NewMemcachedCache(client, 5*time.Minute)), nil
		}
		log.Warn().Msg("memcached cache requested but no memcached address configured")
		return backend, nil
	case "none":
		return backend, nil
	default:
		return store.NewCachingStore(backend, store.NewLocalCache(5*time.Minute)), nil
	}
}

func buildBus(conf config.Config, redisClient *redis.Client) bus.DeliveryBus {
	if conf.Bus.Backend == "redis" && redisClient != nil {
		return bus.NewRedisBus(redisClient, conf.Bus.Queue)
	}
	return bus.NewMemoryBus()
}

func buildVerifier(ctx context.Context, conf config.Auth) (auth.TokenVerifier, error) {
	var stock *auth.StockTokens
	if conf.EnableStockTokens && len(conf.StockTokens) > 0 {
		table := make(map[string]domain.VerifiedClaims, len(conf.StockTokens))
		for token, claim := range conf.StockTokens {
			table[token] = domain.VerifiedClaims{
				Subject: claim.Subject,
				Issuer:  claim.Issuer,
				Name:    claim.Name,
				Email:   claim.Email,
				Picture: claim.Picture,
			}
		}
		stock = auth.NewStockTokens(table)
		log.Warn().Int("tokens", len(table)).Msg("stock token bypass enabled")
	}

	var provider auth.TokenVerifier
	if conf.Issuer != "" && conf.ClientID != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, conf.Issuer, conf.ClientID)
		if err != nil {
			return nil, err
		}
		provider = oidcVerifier
	}

	return auth.NewVerifierChain(stock, provider), nil
}
