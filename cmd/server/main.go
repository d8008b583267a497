package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"researchblog/internal/config"
	"researchblog/internal/db"
	"researchblog/internal/logger"
	"researchblog/internal/router"
	"researchblog/internal/services"
	"researchblog/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer stores.Close()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("failed to init storage")
	}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, registration and login will fail")
	}
	if cfg.ServerURL == "" {
		log.Warn("SERVER_URL is not set, registration will fail")
	}

	tokens := services.NewTokenService(cfg.JWTSecret, nil)
	mail := services.NewMailService(cfg.Mail, log)
	auth := services.NewAuthService(stores.Accounts, tokens, mail, log, services.AuthOptions{
		ServerURL:  cfg.ServerURL,
		ClientURL:  cfg.ClientURL,
		BcryptCost: cfg.BcryptCost,
	})
	posts, err := services.NewPostService(stores.Posts, stores.Accounts, store, log)
	if err != nil {
		log.WithError(err).Fatal("failed to init post service")
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.New(router.Deps{
		Auth:         auth,
		Posts:        posts,
		Log:          log,
		CORSOrigins:  cfg.CORSOrigins,
		MaxFileBytes: cfg.MaxFileBytes(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Research Blog API starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
