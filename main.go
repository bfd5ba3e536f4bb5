package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/database"
	"taskhub/internal/handlers"
	"taskhub/internal/middleware"
	"taskhub/internal/monitoring"
	"taskhub/internal/repositories"
	"taskhub/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Application holds all application dependencies and state.
type Application struct {
	Config *config.Config
	Pool   *database.Pool
	Redis  *redis.Client
	Router *gin.Engine
	Server *http.Server

	// Services
	TokenService services.TokenService
	AuthService  services.AuthService
	ResetService services.ResetService
	TaskService  services.TaskService
	UserService  services.UserService
}

func main() {
	rollback := flag.Bool("rollback", false, "roll back the last migration and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg, *rollback)
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}
	if app == nil {
		return // rollback run
	}

	app.setupRoutes()
	app.startServer()
}

func initializeApplication(cfg *config.Config, rollback bool) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	log.Println("🚀 Initializing TaskHub backend...")
	log.Printf("📋 Environment: %s", cfg.Server.Environment)

	pool, err := database.NewPool(cfg)
	if err != nil {
		return nil, err
	}
	app.Pool = pool

	log.Println("✅ Database connected and configured")

	migrationConfig := &repositories.MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}

	if rollback {
		err := repositories.RollbackMigration(pool.DB, migrationConfig)
		pool.Close()
		if err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := repositories.RunMigrations(pool.DB, migrationConfig); err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  Redis unavailable: %v (continuing with in-memory rate limiting)", err)
		redisClient = nil
	} else {
		app.Redis = redisClient
		log.Println("✅ Redis connected")
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		return nil, err
	}

	app.TokenService = services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	app.AuthService = services.NewAuthService(cfg.Auth.BcryptCost)
	app.ResetService = services.NewResetService(cfg.Auth.BcryptCost)
	app.TaskService = services.NewTaskService()
	app.UserService = services.NewUserService()

	log.Println("✅ All services initialized")

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return app.Pool.Health()
	})
	if app.Redis != nil {
		monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}

	return app, nil
}

func (app *Application) setupRoutes() {
	r := gin.New()

	// Global middleware stack (order matters!)
	r.Use(gin.Logger())
	r.Use(monitoring.MetricsMiddleware())
	r.Use(middleware.RecoveryWithLog())
	r.Use(middleware.SecureHeader())

	if app.Config.RateLimit.Enabled {
		if app.Redis != nil {
			limiter := middleware.NewDistributedRateLimiter(app.Redis)
			r.Use(limiter.CreateMiddleware("api", &middleware.RateLimit{
				Rate:    app.Config.RateLimit.RequestsPerMin,
				Window:  time.Minute,
				KeyFunc: middleware.IPKeyFunc,
			}))
		} else {
			rateLimit := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
			r.Use(middleware.RateLimiter(rateLimit, app.Config.RateLimit.BurstSize))
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health and monitoring endpoints (no auth required)
	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	r.Static("/uploads", app.Config.Uploads.Dir)

	// Public authentication routes
	authHandler := handlers.NewAuthHandler(app.Pool.DB, app.AuthService, app.ResetService, app.TokenService, app.Config.IsProduction())
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/forgot", authHandler.Forgot)
		authRoutes.POST("/reset", authHandler.Reset)
	}

	// Protected routes (require a bearer token)
	protected := r.Group("")
	protected.Use(middleware.RequireAuth(app.TokenService))
	{
		taskHandler := handlers.NewTaskHandler(app.Pool.DB, app.TaskService)
		taskRoutes := protected.Group("/tasks")
		{
			taskRoutes.GET("", taskHandler.ListTasks)
			taskRoutes.POST("", taskHandler.CreateTask)
			taskRoutes.GET("/:id", taskHandler.GetTaskByID)
			taskRoutes.PATCH("/:id", taskHandler.UpdateTask)
			taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
		}

		userHandler := handlers.NewUserHandler(app.Pool.DB, app.UserService, app.Config.Uploads.Dir, app.Config.Uploads.MaxBytes)
		userRoutes := protected.Group("/user")
		{
			userRoutes.GET("/me", userHandler.GetMe)
			userRoutes.POST("/theme", userHandler.UploadTheme)
		}
	}

	app.Router = r
}

func (app *Application) startServer() {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}

		app.cleanup()
		log.Println("✅ Server stopped gracefully")
	}()

	log.Printf("🚀 Server starting on %s", addr)
	log.Printf("💚 Health check at http://%s/health", addr)

	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

func (app *Application) cleanup() {
	log.Println("🧹 Cleaning up resources...")

	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			log.Printf("⚠️  Error closing Redis: %v", err)
		}
	}

	if app.Pool != nil {
		if err := app.Pool.Close(); err != nil {
			log.Printf("⚠️  Error closing database: %v", err)
		}
	}

	log.Println("✅ Cleanup complete")
}
