// Package main запускает HTTP-сервер сервиса аренды WhatsApp-ботов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pedrobots/bluebot-rental/internal/config"
	"github.com/pedrobots/bluebot-rental/internal/gemini"
	"github.com/pedrobots/bluebot-rental/internal/handler"
	"github.com/pedrobots/bluebot-rental/internal/middleware"
	"github.com/pedrobots/bluebot-rental/internal/repository"
	"github.com/pedrobots/bluebot-rental/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var responder service.Responder
	if cfg.GeminiKey != "" {
		responder = gemini.NewClient(gemini.DefaultBaseURL, cfg.GeminiKey, cfg.GeminiModel)
	}

	svc := service.NewService(repo, responder, logger, cfg.OwnerToken)
	defer svc.Close()

	secret := cfg.AuthSecret
	if secret == "" {
		secret = "bluebot-secret"
	}

	session := middleware.NewSessionMiddleware(secret)
	adminAuth := middleware.NewAdminAuth(secret)
	h := handler.NewHandler(svc, logger, session, adminAuth)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting bluebot server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
