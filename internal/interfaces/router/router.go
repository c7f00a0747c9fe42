package router

import (
	"context"
	"net/http"

	auctionsvc "auction-backend/internal/application/auctions"
	"auction-backend/internal/application/events"
	healthsvc "auction-backend/internal/application/health"
	"auction-backend/internal/application/inventory"
	"auction-backend/internal/application/points"
	"auction-backend/internal/config"
	"auction-backend/internal/infrastructure/database"
	auctionhandler "auction-backend/internal/interfaces/handlers/auctions"
	healthhandler "auction-backend/internal/interfaces/handlers/health"
	"auction-backend/internal/middleware"
	"auction-backend/internal/pkg/constants"
	"auction-backend/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Runtime is everything CreateApp wired that outlives a request: the background loops and
// the connections they share with the handlers.
type Runtime struct {
	DB         *gorm.DB
	Rdb        *redis.Client
	NATS       *nats.Conn
	Bus        *events.Bus
	Auctions   *auctionsvc.Service
	Dispatcher *events.Dispatcher
	Sweeper    *worker.Sweeper
}

// Start runs the dispatcher and sweeper until ctx is cancelled.
func (rt *Runtime) Start(ctx context.Context) {
	if rt.Dispatcher != nil {
		go func() {
			if err := rt.Dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("dispatcher stopped")
			}
		}()
	}
	if rt.Sweeper != nil {
		go func() {
			if err := rt.Sweeper.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("sweeper stopped")
			}
		}()
	}
}

// Close drains NATS and closes Redis and the database pool.
func (rt *Runtime) Close() {
	if rt.NATS != nil {
		_ = rt.NATS.Drain()
	}
	if rt.Rdb != nil {
		_ = rt.Rdb.Close()
	}
	if rt.DB != nil {
		if sqlDB, err := rt.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func auctionConfig(cfg *config.Config) auctionsvc.Config {
	c := auctionsvc.DefaultConfig()
	if cfg.BidIncrement > 0 {
		c.Proxy.Increment = cfg.BidIncrement
	}
	if cfg.ProxyMaxSteps > 0 {
		c.Proxy.MaxSteps = cfg.ProxyMaxSteps
	}
	if cfg.SnipeWindow > 0 {
		c.SnipeWindow = cfg.SnipeWindow
	}
	if cfg.SnipeExtension > 0 {
		c.SnipeExtension = cfg.SnipeExtension
	}
	if cfg.SnipeMaxExtensions >= 0 {
		c.MaxExtensions = cfg.SnipeMaxExtensions
	}
	if cfg.SweepBatch > 0 {
		c.SweepBatch = cfg.SweepBatch
	}
	return c
}

// CreateApp wires storage, event sinks, background workers and routes. Redis and NATS are
// optional; the database is not.
func CreateApp(cfg *config.Config) (*fiber.App, *Runtime, error) {
	rt := &Runtime{Bus: events.NewBus()}

	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		rt.DB = db
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			rt.Close()
			return nil, nil, err
		}
		rt.Rdb = redis.NewClient(opts)
	}
	if cfg.NATSURL != "" {
		nc, err := events.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Warn().Err(err).Msg("nats unavailable, events relayed to redis only")
		} else {
			rt.NATS = nc
		}
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.Tracing())
	app.Use(middleware.Session(rt.Rdb))
	app.Use(middleware.HealthMarker(rt.Rdb))
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Deps: healthsvc.Deps{DB: rt.DB, Rdb: rt.Rdb}}
	if rt.NATS != nil {
		hh.Deps.NATS = rt.NATS
	}
	app.Get("/health/json", hh.JSON)
	app.Post("/health/reset", middleware.RequireAdminKey(cfg.AdminKeyHash), hh.Reset)

	if rt.DB == nil {
		log.Warn().Msg("no database configured, auction routes disabled")
		return app, rt, nil
	}

	sinks := []events.Sink{rt.Bus}
	if rt.Rdb != nil {
		sinks = append(sinks, &events.RedisSink{Client: rt.Rdb})
	}
	if rt.NATS != nil {
		sinks = append(sinks, &events.NATSSink{Conn: rt.NATS})
	}
	rt.Dispatcher = events.NewDispatcher(rt.DB, cfg.DispatchInterval, cfg.DispatchBatch, sinks...)

	rt.Auctions = &auctionsvc.Service{
		DB:        rt.DB,
		Points:    &points.Service{Ledger: points.GormLedger{}},
		Inventory: inventory.GormInventory{},
		Notifier:  rt.Dispatcher,
		Config:    auctionConfig(cfg),
	}
	rt.Sweeper = &worker.Sweeper{Auctions: rt.Auctions, Interval: cfg.SweepInterval}

	ah := &auctionhandler.Handlers{Service: rt.Auctions}
	admin := middleware.RequireAdminKey(cfg.AdminKeyHash)

	ag := app.Group("/api/v1/auctions")
	ag.Post("/", admin, ah.CreateAuction)
	ag.Post("/close-expired", admin, ah.CloseExpired)
	ag.Post("/:id/close", admin, ah.CloseAuction)

	view := middleware.AuthorizePermission(constants.ViewAuctions)
	ag.Get("/:id", middleware.RequireAuth(), view, ah.GetAuction)
	ag.Get("/:id/bids", middleware.RequireAuth(), view, ah.ListBids)
	ag.Get("/:id/events", middleware.RequireAuth(), view, ah.ListEvents)

	bid := middleware.AuthorizePermission(constants.PlaceBids)
	ag.Post("/:id/bids", middleware.RequireAuth(), bid, ah.PlaceBid)
	ag.Put("/:id/proxy-bid", middleware.RequireAuth(), bid, ah.SetProxyBid)
	ag.Delete("/:id/proxy-bid", middleware.RequireAuth(), bid, ah.CancelProxyBid)

	return app, rt, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
