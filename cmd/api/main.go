package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/changes"
	"github.com/corvusHold/changenotify/internal/config"
	customers "github.com/corvusHold/changenotify/internal/customers"
	cdomain "github.com/corvusHold/changenotify/internal/customers/domain"
	esvc "github.com/corvusHold/changenotify/internal/email/service"
	evdomain "github.com/corvusHold/changenotify/internal/events/domain"
	evsvc "github.com/corvusHold/changenotify/internal/events/service"
	"github.com/corvusHold/changenotify/internal/logger"
	"github.com/corvusHold/changenotify/internal/metrics"
	notify "github.com/corvusHold/changenotify/internal/notify"
	rl "github.com/corvusHold/changenotify/internal/platform/ratelimit"
	"github.com/corvusHold/changenotify/internal/platform/validation"
	settings "github.com/corvusHold/changenotify/internal/settings"
	"github.com/corvusHold/changenotify/internal/version"
)

func main() {
	_ = godotenv.Load()
	if handleCLICommand(os.Args[1:]) {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	log.Info().Str("addr", cfg.AppAddr).Str("version", version.String()).Str("capture", cfg.CaptureStrategy).Msg("starting api server")

	// Init Postgres
	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DATABASE_URL")
	}
	pgPool, err := pgxpool.NewWithConfig(context.Background(), pgCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to create pg pool")
	}
	defer pgPool.Close()

	// Init Redis/Valkey
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer redisClient.Close()

	var rlStore rl.Store
	if cfg.RateLimitStore == "redis" {
		rlStore = rl.NewRedisStoreWithClient(redisClient)
	} else {
		rlStore = rl.NewMemoryStore()
	}

	pub, closePub := newPublisher(cfg, log)
	defer closePub()

	builder, err := newBuilder(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid field labels")
	}

	settingsMod := settings.New(pgPool)
	transport := esvc.NewRouter(settingsMod.Service, cfg, logger.Component(log, "email"))
	notifyMod, err := notify.New(cfg, settingsMod.Service, transport, pub, log)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load notification templates")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.TemplatesDir != "" {
		go func() {
			if err := notifyMod.Renderer.Watch(ctx); err != nil {
				log.Warn().Err(err).Str("dir", cfg.TemplatesDir).Msg("template hot reload disabled")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middlewares
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Secure())
	e.Use(metrics.HTTPMiddleware("/metrics", "/healthz"))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			return matchCORSOrigin(origin, cfg.CORSAllowedOrigins), nil
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	if cfg.ForceHTTPS {
		e.Pre(middleware.HTTPSRedirect())
	}

	// Validator
	e.Validator = validation.New()

	// Register domain routes via factories
	settingsMod.Register(e, cfg, rlStore, pub)
	customers.Register(e, pgPool, cfg, builder, notifyMod.Service, settingsMod.Service, rlStore, log)

	// Health endpoint pings DB and Redis
	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 500*time.Millisecond)
		defer cancel()

		dbStatus := metrics.Probe(ctx, "postgres", pgPool.Ping)
		cacheStatus := metrics.Probe(ctx, "redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

		return c.JSON(http.StatusOK, map[string]any{
			"status":  "ok",
			"version": version.String(),
			"time":    time.Now().UTC().Format(time.RFC3339),
			"db":      dbStatus,
			"cache":   cacheStatus,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server
	go func() {
		if err := e.Start(cfg.AppAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}

// newBuilder returns the diff builder for customer profiles, with display
// labels overridden from cfg.FieldLabelsFile when set.
func newBuilder(cfg config.Config) (*changes.Builder, error) {
	var opts []changes.Option
	if cfg.FieldLabelsFile != "" {
		labels, err := changes.LoadLabels(cfg.FieldLabelsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, changes.WithLabels(labels))
	}
	return changes.NewBuilder(cdomain.WatchedFields(), opts...)
}

// newPublisher always logs audit events and also ships them to Kafka when
// brokers are configured.
func newPublisher(cfg config.Config, log zerolog.Logger) (evdomain.Publisher, func()) {
	logPub := evsvc.NewLogger(logger.Component(log, "events"))
	if len(cfg.KafkaBrokers) == 0 {
		return logPub, func() {}
	}
	k := evsvc.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
	return evsvc.Multi{logPub, k}, func() {
		if err := k.Close(); err != nil {
			log.Warn().Err(err).Msg("close kafka writer")
		}
	}
}

// matchCORSOrigin reports whether origin is allowed by patterns. A pattern
// is an exact origin, "*", or a scheme with a wildcard subdomain such as
// "https://*.example.com".
func matchCORSOrigin(origin string, patterns []string) bool {
	o, err := url.Parse(origin)
	if err != nil || o.Scheme == "" || o.Host == "" {
		return false
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		switch {
		case p == "*":
			return true
		case p == origin:
			return true
		case strings.Contains(p, "*."):
			u, err := url.Parse(strings.Replace(p, "*.", "wildcard.", 1))
			if err != nil || u.Scheme != o.Scheme {
				continue
			}
			suffix := strings.TrimPrefix(u.Host, "wildcard")
			if strings.HasSuffix(o.Host, suffix) && len(o.Host) > len(suffix) {
				return true
			}
		}
	}
	return false
}
