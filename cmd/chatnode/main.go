// chatnode is one node of the chat mesh. It serves the Socket Endpoint
// and the HTTP surface (auth, conversations, presence, sync) for the
// devices connected to it, and participates in cross-node delivery via
// the Node Publisher and Node Consumer.
//
// STARTUP SEQUENCE:
//  1. Load configuration from environment variables
//  2. Initialize structured logging with appropriate levels
//  3. Create worker pools for delivery fan-out and persistence writes
//  4. Connect to Redis for the hot window, falling back to memory
//  5. Connect to PostgreSQL for the durable store
//  6. Create the broker.Manager (it dials lazily on first use)
//  7. Wire the Presence Registry, Staleness Sweeper, and push Notifier
//  8. Assemble the Node Publisher, Node Consumer, and Persistence Worker, and start the consumer and persistence worker goroutines
//  9. Build the HTTP handlers and Socket Endpoint, configure the Fiber app, and register HTTP/websocket routes
//  10. Start the HTTP server, with graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"chatmesh/internal/auth"
	"chatmesh/internal/broker"
	"chatmesh/internal/config"
	"chatmesh/internal/database"
	"chatmesh/internal/handlers"
	"chatmesh/internal/hotwindow"
	"chatmesh/internal/middleware"
	"chatmesh/internal/node"
	"chatmesh/internal/persistence"
	"chatmesh/internal/presence"
	"chatmesh/internal/push"
	"chatmesh/internal/socket"
	"chatmesh/internal/sync"
	"chatmesh/internal/workers"
)

func main() {
	// PHASE 1: CONFIGURATION AND LOGGING
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Server.Environment == "development" {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	// PHASE 2: WORKER POOLS
	poolManager := workers.NewPoolManager(workers.PoolConfig{
		ConsumerWorkers:    cfg.Node.ConsumerWorkers,
		PersistenceWorkers: cfg.Node.PersistenceWorkers,
	})

	// PHASE 3: HOT WINDOW (Redis, memory fallback)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	var window hotwindow.Window
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis connection failed, falling back to in-memory hot window", "error", err)
		redisClient.Close()
		window = hotwindow.NewMemoryWindow()
	} else {
		slog.Info("redis connection established", "addr", cfg.Redis.URL)
		window = hotwindow.NewRedisWindow(redisClient)
	}
	pingCancel()

	// PHASE 4: DURABLE STORE
	slog.Info("connecting to postgres")
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal("database connection required:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		slog.Error("database migration failed", "error", err)
	}

	// PHASE 5: BROKER
	brokerMgr := broker.NewManager(cfg.Broker)
	defer brokerMgr.Close()

	// PHASE 6: PRESENCE, STALENESS SWEEPER, PUSH
	presenceStore := presence.NewStore(db)
	sweeper := presence.NewStalenessSweeper(presenceStore, time.Duration(cfg.Presence.TTL)*time.Second)
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	go sweeper.Run(sweeperCtx)
	defer sweeperCancel()

	notifier := push.NewWebhookNotifier(cfg.Push, db)

	// PHASE 7: SOCKET TABLE, PUBLISHER, CONSUMER, PERSISTENCE WORKER
	table := socket.NewTable()
	authService := auth.NewAuthService(db)

	publisher := node.NewPublisher(brokerMgr, cfg.Broker, presenceStore, window, db, notifier)
	consumer := node.NewConsumer(brokerMgr, cfg.Broker, cfg.Node.ID, table, poolManager)
	persistenceWorker := persistence.NewWorker(brokerMgr, cfg.Broker, db, window, poolManager)

	go runForever("node consumer", consumer.Run)
	go runForever("persistence worker", persistenceWorker.Run)

	// PHASE 8: HANDLERS
	authHandler := handlers.NewAuthHandler(authService)
	conversationHandler := handlers.NewConversationHandler(db)
	presenceHandler := presence.NewHandler(presenceStore)
	syncReader := sync.NewReader(db, window)
	syncHandler := sync.NewHandler(syncReader)
	healthHandler := handlers.NewHealthHandler(cfg, db, brokerMgr, poolManager)
	socketEndpoint := socket.NewEndpoint(table, brokerMgr, cfg.Broker, publisher, authService)

	// PHASE 9: FIBER APP AND MIDDLEWARE
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorHandler: middleware.ErrorHandler(),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// PHASE 10: ROUTES
	app.Get("/", healthHandler.HandleHealth)
	app.Get("/health", healthHandler.HandleHealth)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", authHandler.HandleSignup)
	authGroup.Post("/login", authHandler.HandleLogin)
	authGroup.Post("/logout", auth.RequireAuth(authService), authHandler.HandleLogout)
	authGroup.Post("/logout-all", auth.RequireAuth(authService), authHandler.HandleLogoutAll)
	authGroup.Get("/me", auth.RequireAuth(authService), authHandler.HandleGetProfile)
	authGroup.Put("/profile", auth.RequireAuth(authService), authHandler.HandleUpdateProfile)
	authGroup.Get("/check-email", authHandler.HandleCheckEmail)

	convGroup := api.Group("/conversations", auth.RequireAuth(authService))
	convGroup.Get("/", conversationHandler.HandleListConversations)
	convGroup.Post("/", conversationHandler.HandleCreateConversation)
	convGroup.Get("/:id", conversationHandler.HandleGetConversation)

	presenceHandler.RegisterRoutes(app)
	syncHandler.RegisterRoutes(app)
	socketEndpoint.RegisterRoutes(app)

	// PHASE 11: GRACEFUL SHUTDOWN
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		slog.Info("shutting down node")

		// Stop accepting new deliveries/persistence writes first.
		sweeperCancel()
		poolManager.Shutdown()

		// Sockets are not drained or flushed: clients reconnect and
		// catch up via GET /sync, per the node's scheduling model.
		if err := brokerMgr.Close(); err != nil {
			slog.Error("broker close error", "error", err)
		}
		if err := window.Close(); err != nil {
			slog.Error("hot window close error", "error", err)
		}
		if err := db.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
		if err := app.Shutdown(); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		slog.Info("node shutdown complete")
		os.Exit(0)
	}()

	// PHASE 12: START SERVER
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	slog.Info("starting chat node", "address", addr, "node_id", cfg.Node.ID, "environment", cfg.Server.Environment)

	if err := app.Listen(addr); err != nil {
		slog.Error("server failed to start", "error", err)
		poolManager.Shutdown()
		log.Fatal(err)
	}
}

// runForever restarts fn with a short backoff whenever it returns, since
// both the Node Consumer and Persistence Worker's Run methods return on
// channel/connection loss and rely on the broker.Manager to redial on the
// next Channel() call.
func runForever(name string, fn func() error) {
	for {
		if err := fn(); err != nil {
			slog.Error(name+" stopped, restarting", "error", err)
		} else {
			slog.Warn(name + " returned without error, restarting")
		}
		time.Sleep(2 * time.Second)
	}
}
