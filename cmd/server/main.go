package main

import (
	"article-service/auth"
	"article-service/internal/app"
	"article-service/internal/article"
	"article-service/internal/config"
	"article-service/internal/db"
	"article-service/internal/logger"
	"article-service/internal/middleware"
	"article-service/internal/user"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Setup(cfg.Environment)
	auth.SetSecret(cfg.JWTSecret)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	if err := db.Migrate(a.DB); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := db.SeedAdmin(a.DB, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("admin seeding failed")
	}

	userHandler := user.NewHandler(a.Users)
	articleHandler := article.NewHandler(a.Articles)
	authMiddleware := &middleware.Auth{UserService: a.Users}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}
	if cfg.Environment == "development" {
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	public := router.Group("/", middleware.ErrorHandler())

	// User routes
	public.POST("/register", userHandler.Register)
	public.POST("/login", userHandler.Login)
	public.POST("/refresh", userHandler.RefreshToken)
	public.DELETE("/logout", authMiddleware.AuthMiddleWare(), userHandler.Logout)
	public.GET("/profile", authMiddleware.AuthMiddleWare(), userHandler.GetProfile)

	// Article routes resolve the caller when a token is sent and check permissions per route
	articleHandler.RegisterRoutes(public.Group("/", authMiddleware.Authenticate()))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router.Handler(),
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server shutdown complete")
}
