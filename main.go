package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rescuehub/config"
	"rescuehub/controllers"
	"rescuehub/database"
	"rescuehub/logger"
	"rescuehub/middleware"
	"rescuehub/routes"
	"rescuehub/services"
	"rescuehub/utils"
)

func main() {
	// Load .env if present (do not overwrite already-set environment variables).
	config.LoadDotEnv()

	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()
	logger.Init(cfg.Env)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database, cfg.IsDevelopment())
	if err != nil {
		logger.Fatal("failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database: %v", err)
	}

	utils.InitRedis(context.Background(), cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	router := routes.InitRouter(routes.Options{
		Tasks: controllers.NewTaskController(services.NewTaskService(db)),
		Token: utils.TokenConfig{
			Secret:   cfg.JWTSecret,
			Audience: cfg.JWTAud,
			Issuer:   cfg.JWTIss,
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		RateRead:       cfg.RateReadPerMinute,
		RateWrite:      cfg.RateWritePerMinute,
	})

	// Request ID -> Logging -> Security headers -> Max Body -> Timeout -> Recovery
	handler := middleware.RequestIDMiddleware(
		middleware.RequestLogMiddleware(
			middleware.SecurityHeadersMiddleware(cfg.IsDevelopment())(
				middleware.MaxBodyMiddleware(cfg.MaxBodyBytes)(
					middleware.TimeoutMiddleware(cfg.RequestTimeout)(
						middleware.RecoveryMiddleware(router),
					),
				),
			),
		),
	)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting on %s (env=%s, db=%s)", addr, cfg.Env, cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("server exited")
}
