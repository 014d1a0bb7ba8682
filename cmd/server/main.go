package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kitchen-backend/internal/apperr"
	"kitchen-backend/internal/audit"
	"kitchen-backend/internal/auth"
	"kitchen-backend/internal/config"
	"kitchen-backend/internal/database"
	"kitchen-backend/internal/events"
	"kitchen-backend/internal/inventory"
	"kitchen-backend/internal/logging"
	"kitchen-backend/internal/metrics"
	"kitchen-backend/internal/models"
	"kitchen-backend/internal/orders"
	"kitchen-backend/internal/recipes"
	"kitchen-backend/internal/repository"
	"kitchen-backend/internal/repository/memory"
	"kitchen-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("KITCHEN_CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("opening store", zap.Error(err))
	}

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	uploader, err := newUploader(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}

	inventorySvc := inventory.NewService(store, publisher, logger)
	orderSvc := orders.NewService(store, inventorySvc, logger)
	recipeSvc := recipes.NewService(store, logger)
	authSvc := auth.NewService(store.Users(), auth.NewIssuer(cfg.JWTSecret), logger)

	app := fiber.New(fiber.Config{
		ErrorHandler: apperr.FiberErrorHandler(logger),
		BodyLimit:    10 * 1024 * 1024,
		Immutable:    true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOriginList(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + logging.RequestIDHeader,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	app.Use(logging.RequestLogger(logger))
	app.Use(metrics.Middleware())

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", metrics.Handler())
	if cfg.StorageBucket == "" {
		app.Static("/uploads", cfg.UploadDir)
	}

	limit := cfg.PageLimitMax
	api := app.Group("/api")

	// Public auth
	api.Post("/auth/bootstrap", auth.BootstrapAdminHandler(authSvc))
	api.Post("/auth/login", auth.LoginHandler(authSvc))
	api.Post("/auth/refresh", auth.RefreshHandler(authSvc))

	protected := api.Group("", auth.JWTMiddleware(authSvc))
	adminOnly := auth.RequireRole(models.RoleAdmin)

	protected.Post("/auth/logout", auth.LogoutHandler(authSvc))
	protected.Get("/auth/me", auth.MeHandler(authSvc))

	// Ingredient ledger
	protected.Get("/ingredients", inventory.ListIngredientsHandler(inventorySvc, limit))
	protected.Get("/ingredients/search/:keyword", inventory.SearchIngredientsHandler(inventorySvc, limit))
	protected.Get("/ingredients/recipes/:sku", recipes.RecipesUsingIngredientHandler(recipeSvc))
	protected.Post("/ingredients/adjust", inventory.AdjustStockHandler(inventorySvc))
	protected.Post("/ingredients/import", adminOnly, inventory.ImportIngredientsHandler(inventorySvc))
	protected.Get("/ingredients/:sku/history", inventory.IngredientHistoryHandler(inventorySvc, limit))
	protected.Post("/ingredients/:sku/adjust", inventory.AdjustIngredientStockHandler(inventorySvc))
	protected.Get("/ingredients/:sku", inventory.GetIngredientHandler(inventorySvc))
	protected.Post("/ingredients", inventory.CreateIngredientHandler(inventorySvc))
	protected.Put("/ingredients/:sku", inventory.UpdateIngredientHandler(inventorySvc))
	protected.Delete("/ingredients/:sku", adminOnly, inventory.DeleteIngredientHandler(inventorySvc))

	// Purchase orders
	protected.Get("/orders", orders.ListOrdersHandler(orderSvc, limit))
	protected.Get("/orders/ingredient/:sku", orders.ListOrdersByIngredientHandler(orderSvc))
	protected.Get("/orders/:id", orders.GetOrderHandler(orderSvc))
	protected.Post("/orders", orders.CreateOrderHandler(orderSvc))
	protected.Put("/orders/:id", orders.UpdateOrderHandler(orderSvc))
	protected.Post("/orders/:id/reconcile", orders.ReconcileOrderHandler(orderSvc))
	protected.Delete("/orders/:id", adminOnly, orders.DeleteOrderHandler(orderSvc))

	// Recipes
	protected.Get("/recipes", recipes.ListRecipesHandler(recipeSvc, limit))
	protected.Get("/recipes/ingredients/:recipe_id", recipes.ListRecipeIngredientsHandler(recipeSvc))
	protected.Get("/recipes/:id", recipes.GetRecipeHandler(recipeSvc))
	protected.Get("/recipes/:id/cost", recipes.RecipeCostHandler(recipeSvc))
	protected.Post("/recipes", recipes.CreateRecipeHandler(recipeSvc))
	protected.Put("/recipes/:id", recipes.UpdateRecipeHandler(recipeSvc))
	protected.Delete("/recipes/:id", adminOnly, recipes.DeleteRecipeHandler(recipeSvc))
	protected.Post("/recipes/:id/ingredients", recipes.AddRecipeIngredientHandler(recipeSvc))
	protected.Put("/recipes/:id/ingredients/:sku", recipes.SetRecipeIngredientHandler(recipeSvc))
	protected.Delete("/recipes/:id/ingredients/:sku", recipes.RemoveRecipeIngredientHandler(recipeSvc))

	// Files
	protected.Post("/storage/upload", storage.UploadHandler(uploader, logger))

	// Admin
	adminRoutes := protected.Group("/admin", adminOnly)
	adminRoutes.Post("/users", auth.RegisterUserHandler(authSvc))
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler(store.Audit(), limit))

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
}

func openStore(cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	}
	db, err := database.Open(cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, err
	}
	return repository.NewGormStore(db), nil
}

func newPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		return events.Nop{}
	}
	logger.Info("publishing stock events", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaStockTopic))
	return events.NewKafkaPublisher(events.NewKafkaWriter(brokers, cfg.KafkaStockTopic), logger)
}

func newUploader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Uploader, error) {
	if cfg.StorageBucket == "" {
		logger.Info("storing uploads on local disk", zap.String("dir", cfg.UploadDir))
		return storage.NewLocalUploader(cfg.UploadDir, "/uploads"), nil
	}
	return storage.NewGCSUploader(ctx, cfg.StorageBucket, cfg.GCSCredentialsFile, cfg.StoragePublicBaseURL)
}
