package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"littlelemon/internal/cart"
	"littlelemon/internal/catalog"
	"littlelemon/internal/config"
	"littlelemon/internal/db"
	"littlelemon/internal/handler"
	"littlelemon/internal/identity"
	"littlelemon/internal/logger"
	"littlelemon/internal/memstore"
	"littlelemon/internal/metrics"
	"littlelemon/internal/middleware"
	"littlelemon/internal/notification"
	"littlelemon/internal/order"

	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
	dialPublisher   = func(url string) (notification.Publisher, error) {
		p, err := notification.Dial(url)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

type deps struct {
	carts    cart.Repository
	orders   order.Repository
	catalog  catalog.Gateway
	identity identity.Gateway
	close    func()
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	pub, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewRateLimiter()
	go limiter.Run(ctx, time.Minute)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           setupRouter(cfg, d, pub, limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("server running",
		zap.String("addr", srv.Addr),
		zap.String("store", cfg.AppStore),
	)
	if err := startServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildDeps(cfg *config.Config) (*deps, error) {
	if cfg.AppStore == config.StoreMemory {
		store := memstore.New()
		if cfg.FixturePath != "" {
			f, err := os.Open(cfg.FixturePath)
			if err != nil {
				return nil, fmt.Errorf("open fixture: %w", err)
			}
			defer f.Close()
			if err := store.Load(f); err != nil {
				return nil, err
			}
		}
		return &deps{
			carts:    store,
			orders:   store,
			catalog:  store,
			identity: store,
			close:    func() {},
		}, nil
	}

	database := initDBFunc(cfg)
	return postgresDeps(cfg, database), nil
}

func postgresDeps(cfg *config.Config, database *sql.DB) *deps {
	return &deps{
		carts:    cart.NewRepository(database),
		orders:   order.NewRepository(database),
		catalog:  catalog.NewRepository(database, cfg.GatewayTimeout),
		identity: identity.NewRepository(database, cfg.GatewayTimeout),
		close:    func() { database.Close() },
	}
}

func newPublisher(cfg *config.Config) (notification.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		logger.L().Info("RABBITMQ_URL not set, status notifications disabled")
		return notification.NopPublisher{}, nil
	}
	return dialPublisher(cfg.RabbitMQURL)
}

// setupRouter wires services and middleware. Auth sits outside logging
// so request logs carry user_id.
func setupRouter(cfg *config.Config, d *deps, pub notification.Publisher, limiter *middleware.RateLimiter) http.Handler {
	reg := &metrics.Registry{}

	cartSvc := cart.NewService(d.carts, d.catalog)
	orderSvc := order.NewService(d.orders, d.identity, pub, reg)

	mux := http.NewServeMux()
	handler.New(cartSvc, orderSvc, reg).Register(mux)

	var h http.Handler = mux
	h = limiter.Middleware(h)
	h = logger.LoggingMiddleware(h)
	h = middleware.AuthMiddleware(cfg.JWTSecret)(h)
	h = logger.RequestIDMiddleware(h)
	return h
}
