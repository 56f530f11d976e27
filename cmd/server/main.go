package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/theater-seat-reservation/internal/availability"
	"github.com/iliyamo/theater-seat-reservation/internal/config"
	"github.com/iliyamo/theater-seat-reservation/internal/database"
	"github.com/iliyamo/theater-seat-reservation/internal/handler"
	"github.com/iliyamo/theater-seat-reservation/internal/middleware"
	"github.com/iliyamo/theater-seat-reservation/internal/queue"
	"github.com/iliyamo/theater-seat-reservation/internal/realtime"
	"github.com/iliyamo/theater-seat-reservation/internal/repository"
	"github.com/iliyamo/theater-seat-reservation/internal/reservation"
	"github.com/iliyamo/theater-seat-reservation/internal/router"
)

var levels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(levels[cfg.LogLevel])

	e := echo.New()
	e.Logger.SetLevel(levels[cfg.LogLevel])
	router.Setup(e)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Info("schema up to date")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub()
	defer hub.Close()

	// Without a broker the engine tells the hub directly; with one, the
	// consumer does so after writing the audit log.
	var notifier reservation.Notifier = hub
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL)
		defer pub.Close()
		notifier = pub
		go queue.NewConsumer(cfg.AMQPURL, cfg.BookingLogPath, hub).Run(ctx)
	} else {
		log.Warn("AMQP_URL not set; booking messages disabled")
	}

	store := repository.NewStore(db)
	engine := reservation.New(store, reservation.WithNotifier(notifier), reservation.WithLogger(e.Logger))
	theaters := repository.NewTheaterRepo(db)
	events := repository.NewEventRepo(db)

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unreachable; response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	bookings := handler.NewBookingHandler(engine)
	router.RegisterRoutes(e, db)
	router.RegisterPublic(e,
		handler.NewPublicHandler(availability.NewService(store), theaters, events),
		handler.NewLiveHandler(hub, events),
		cache)
	router.RegisterCustomer(e, bookings, cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(theaters, events, cache), bookings, cfg.JWTSecret)

	go func() {
		log.Infof("listening on %s (env=%s)", cfg.Addr(), cfg.Env)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
