package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/orgadmin/backend/internal/config"
	"github.com/orgadmin/backend/internal/events"
	"github.com/orgadmin/backend/internal/handler"
	"github.com/orgadmin/backend/internal/repository"
	"github.com/orgadmin/backend/internal/service"
	"github.com/orgadmin/backend/internal/ws"
	"github.com/orgadmin/backend/pkg/payment"
)

func main() {
	// Load .env file if present (for local development)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("⚠️  .env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Database error: %v", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("❌ Migration error: %v", err)
	}
	log.Println("✅ Database connected & migrated")

	userRepo := repository.NewUserRepository(db)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, userRepo)
	if err := authSvc.SeedAdmin(ctx); err != nil {
		log.Fatalf("❌ Admin seed error: %v", err)
	}

	gateways := newGateways(cfg)
	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer publisher.Close()

	failureRepo := repository.NewFailureRepository(db)
	subSvc := service.NewSubscriptionService(
		repository.NewCatalogRepository(db),
		repository.NewSubscriptionRepository(db),
		cfg.Currency,
	)

	hub := ws.NewHub()
	sessions := service.NewSessionStore(cfg.SessionTTL)
	go sessions.RunSweeper(ctx, time.Minute)

	reconciler := service.NewReconciler(subSvc, failureRepo, publisher, hub, cfg.PostPaymentRedirect)
	checkoutSvc := service.NewCheckoutService(subSvc, gateways, sessions, reconciler, publisher, hub)

	r := newRouter(ctx, cfg, routes{
		auth:          authSvc,
		health:        handler.NewHealthHandler(db, gateways),
		authHandler:   handler.NewAuthHandler(authSvc),
		checkout:      handler.NewCheckoutHandler(checkoutSvc),
		catalog:       handler.NewCatalogHandler(subSvc),
		admin:         handler.NewAdminHandler(checkoutSvc, subSvc, failureRepo),
		webhook:       handler.NewWebhookHandler(cfg.StripeWebhookSecret, publisher),
		notifications: ws.NewNotificationsHandler(hub, checkoutSvc),
	})

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  Shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Checkout API listening at http://%s (gateways: %v, default %s)", addr, gateways.Names(), cfg.DefaultGateway)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("❌ Server error: %v", err)
	}
}

// newGateways registers the simulated ComplyPay gateway and, when a key is
// configured, Stripe for cards with ComplyPay issuing pix and boleto.
func newGateways(cfg *config.Config) *payment.Registry {
	reg := payment.NewRegistry(cfg.DefaultGateway)
	sim := payment.NewSimulatedGateway(cfg.SimulatedLatency)
	reg.Register(payment.GatewayComplyPay, sim)
	if cfg.StripeSecretKey != "" {
		reg.Register(payment.GatewayStripe, payment.NewStripeGateway(cfg.StripeSecretKey, sim))
		log.Println("✅ Stripe gateway enabled")
	}
	return reg
}
