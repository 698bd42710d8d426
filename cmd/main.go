package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/chdigius/activityhub/ap"
	"github.com/chdigius/activityhub/apclient"
	"github.com/chdigius/activityhub/api"
	"github.com/chdigius/activityhub/ingest"
	"github.com/chdigius/activityhub/outbox"
	"github.com/chdigius/activityhub/queue"
	"github.com/chdigius/activityhub/store"
	"github.com/chdigius/activityhub/thirdparty"
	"github.com/chdigius/activityhub/types"
)

var (
	version      = "unknown"
	buildMachine = "unknown"
	buildTime    = "unknown"
	goVersion    = "unknown"
)

func main() {
	e := echo.New()
	e.HidePort = true
	e.HideBanner = true

	configPath := os.Getenv("ACTIVITYHUB_CONFIG")
	if configPath == "" {
		configPath = "/etc/activityhub/config.yaml"
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		panic(err)
	}

	registry, err := BuildRegistry(config.Federation)
	if err != nil {
		slog.Error("Failed to build actor registry", slog.String("error", err.Error()))
		panic(err)
	}

	slog.Info(fmt.Sprintf("ActivityHub %s starting...", version))

	config.NodeInfo.Version = "2.0"
	config.NodeInfo.Software.Name = "activityhub"
	config.NodeInfo.Software.Version = version
	config.NodeInfo.Protocols = []string{"activitypub"}

	if config.Server.EnableTrace {
		cleanup, err := SetupTraceProvider(config.Server.TraceEndpoint, "activityhub", version)
		if err != nil {
			panic(err)
		}
		defer cleanup()

		skipper := otelecho.WithSkipper(
			func(c echo.Context) bool {
				return c.Path() == "/metrics" || c.Path() == "/health"
			},
		)
		e.Use(otelecho.Middleware("activityhub", skipper))
	}

	e.Use(echoprometheus.NewMiddleware("activityhub"))
	e.Use(middleware.Recover())

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(config.Server.Dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		panic("failed to connect database")
	}
	sqlDB, err := db.DB() // for pinging
	if err != nil {
		panic("failed to connect database")
	}
	defer sqlDB.Close()

	err = db.Use(tracing.NewPlugin(
		tracing.WithDBName("postgres"),
	))
	if err != nil {
		panic("failed to setup tracing plugin")
	}

	log.Println("start migrate")
	db.AutoMigrate(
		&types.Event{},
		&types.OutboxActivity{},
		&types.Delivery{},
		&types.Follower{},
	)

	mc := memcache.New(config.Server.MemcachedAddr)
	defer mc.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Server.RedisAddr,
		Password: "",
		DB:       config.Server.RedisDB,
	})
	err = redisotel.InstrumentTracing(
		rdb,
		redisotel.WithAttributes(
			attribute.KeyValue{
				Key:   "db.name",
				Value: attribute.StringValue("redis"),
			},
		),
	)
	if err != nil {
		panic("failed to setup tracing plugin")
	}

	storeService := store.NewStore(db)
	apClient := apclient.NewApClient(mc)

	destinationNames := []string{types.DestFederation}
	destinations := []queue.Destination{
		outbox.NewDestination(storeService, apClient, registry),
	}
	if config.ThirdParty.Enabled {
		destinationNames = append(destinationNames, types.DestThirdParty)
		destinations = append(destinations, thirdparty.NewClient(config.ThirdParty))
	}

	ingestService := ingest.NewService(storeService, rdb, destinationNames)
	scheduler := queue.NewScheduler(storeService, rdb, destinations...)

	apService := ap.NewService(storeService, apClient, registry, config.NodeInfo)
	apHandler := ap.NewHandler(apService)

	apiService := api.NewService(storeService, ingestService)
	apiHandler := api.NewHandler(apiService)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(runCtx)
	}()

	if len(config.Ingest.Sources) > 0 {
		sources := make([]ingest.Source, 0, len(config.Ingest.Sources))
		for _, url := range config.Ingest.Sources {
			sources = append(sources, ingest.NewHTTPSource(url))
		}
		runner := ingest.NewRunner(
			ingestService,
			time.Duration(config.Ingest.IntervalSeconds)*time.Second,
			time.Duration(config.Ingest.JitterSeconds)*time.Second,
			sources...,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner.Run(runCtx)
		}()
	}

	e.GET("/.well-known/webfinger", apHandler.WebFinger)
	e.GET("/.well-known/nodeinfo", apHandler.NodeInfoWellKnown)
	e.GET("/nodeinfo/2.0", apHandler.NodeInfo)

	e.GET("/actors/:name", apHandler.Actor)
	e.GET("/actors/:name/outbox", apHandler.Outbox)
	e.GET("/actors/:name/followers", apHandler.Followers)
	e.GET("/activities/:name/:eventId", apHandler.Activity)
	e.GET("/objects/:name/:eventId", apHandler.Object)
	e.POST("/inbox", apHandler.Inbox)

	apiGroup := e.Group("/api")
	apiGroup.POST("/events", apiHandler.IngestEvent)
	apiGroup.GET("/events/:id", apiHandler.GetEvent)
	apiGroup.GET("/deliveries", apiHandler.ListDeliveries)
	apiGroup.GET("/stats", apiHandler.GetStats)

	e.GET("/health", func(c echo.Context) (err error) {
		ctx := c.Request().Context()

		err = sqlDB.Ping()
		if err != nil {
			return c.String(http.StatusInternalServerError, "db error")
		}

		err = rdb.Ping(ctx).Err()
		if err != nil {
			return c.String(http.StatusInternalServerError, "redis error")
		}

		return c.String(http.StatusOK, "ok")
	})

	e.GET("/metrics", echoprometheus.NewHandler())

	go func() {
		if err := e.Start(config.Server.Bind); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-runCtx.Done()
	slog.Info("shutting down, draining workers...")

	// the scheduler finishes its in-flight pass before Run returns
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	slog.Info("bye")
}
