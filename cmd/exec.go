package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ticket-shop/config"
	"ticket-shop/internal/handlers"
	"ticket-shop/internal/services"
	"ticket-shop/internal/services/gateway"
	"ticket-shop/internal/store"
	"ticket-shop/monitoring"
	"ticket-shop/security"
	"ticket-shop/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis. Holds and rate limits degrade without it.
	redisClient, err := utils.NewRedisClient(cfg.RedisURL)
	if err != nil {
		slog.Warn("Redis unavailable, seat holds disabled", "error", err)
	} else {
		defer redisClient.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signingKey, err := ticketSigningKey(cfg)
	if err != nil {
		return err
	}
	secretHash, err := verificationSecretHash(cfg)
	if err != nil {
		return err
	}

	monitor := monitoring.NewMonitor(redisClient)
	notifier := services.NewNotifier(services.NewPublisher(services.PubNubConfig{
		PublishKey:   cfg.PubNubPublishKey,
		SubscribeKey: cfg.PubNubSubscribeKey,
		SecretKey:    cfg.PubNubSecretKey,
		UserID:       cfg.PubNubUserID,
	}))

	var holds services.SeatHolds = services.NopHolds{}
	if redisClient != nil {
		holds = services.NewHoldService(redisClient, cfg.HoldTTL)
	}

	registry := gateway.NewRegistry(gateway.NewFactory(), monitor)
	if cfg.IsDevelopment() {
		registry.Register(gateway.NewMock())
	}

	// Initialize services
	st := store.NewPocketBase(app)
	payments := services.NewPaymentConfig(st, services.PaymentDefaults{
		Provider:             cfg.PaymentProvider,
		Currency:             cfg.Currency,
		Timeout:              cfg.GatewayTimeout,
		PaystackBaseURL:      cfg.PaystackBaseURL,
		PaystackPublicKey:    cfg.PaystackPublicKey,
		PaystackSecretKey:    cfg.PaystackSecretKey,
		StripePublishableKey: cfg.StripePublishableKey,
		StripeSecretKey:      cfg.StripeSecretKey,
	})
	signer := services.NewPayloadSigner(signingKey)
	inventory := services.NewInventoryService(st, holds, notifier)
	checkout := services.NewCheckoutService(st, inventory, holds, payments, registry, services.CheckoutOptions{
		ReferencePrefix: cfg.ReferencePrefix,
		HoldTTL:         cfg.HoldTTL,
		Metrics:         monitor,
	})
	issuance := services.NewIssuanceService(st, payments, registry, holds, signer, notifier, monitor)
	validator := services.NewValidatorService(st, signer, notifier, monitor)
	admin := services.NewAdminService(st, inventory, payments)
	printer := services.NewTicketPrinter(st, cfg.Currency)
	reaper := services.NewReaper(st, holds, cfg.PendingTTL, cfg.ReaperInterval)

	// Initialize handlers
	storefrontHandler := handlers.NewStorefrontHandler(inventory, admin, validator, printer)
	paymentHandler := handlers.NewPaymentHandler(checkout, issuance, secretHash)
	scannerHandler := handlers.NewScannerHandler(validator)
	adminHandler := handlers.NewAdminHandler(inventory, admin)

	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Start background tasks
		go monitor.Run(ctx)
		go reaper.Run(ctx)
		if cfg.EnableMetrics {
			go serveMetrics(ctx, cfg.MetricsPort)
		}

		api := e.Router.Group("/api/v1")
		api.BindFunc(limiter.Middleware("api"))

		// Storefront endpoints
		api.GET("/ticket-types", storefrontHandler.ListTicketTypes)
		api.GET("/event", storefrontHandler.GetEvent)
		api.POST("/qr", storefrontHandler.GenerateQR)
		api.GET("/tickets/{ticketNumber}", storefrontHandler.GetTicket)
		api.GET("/tickets/{ticketNumber}/pdf", storefrontHandler.GetTicketPDF)

		// Checkout endpoints
		antiBot := limiter.AntiBotMiddleware()
		api.POST("/checkout", paymentHandler.InitiateCheckout).BindFunc(limiter.Middleware("checkout"), antiBot)
		api.POST("/checkout/{reference}/cancel", paymentHandler.CancelCheckout).BindFunc(antiBot)
		api.POST("/payments/verify", paymentHandler.VerifyPayment).BindFunc(limiter.Middleware("verify"))

		// Door scanner
		scanner := api.Group("/scanner")
		scanner.BindFunc(handlers.RequireAdmin)
		scanner.POST("/scan", scannerHandler.Scan)

		// Admin endpoints
		adminGroup := api.Group("/admin")
		adminGroup.BindFunc(handlers.RequireAdmin)
		adminGroup.GET("/ticket-types", adminHandler.ListTicketTypes)
		adminGroup.POST("/ticket-types", adminHandler.CreateTicketType)
		adminGroup.PUT("/ticket-types/{id}", adminHandler.UpdateTicketType)
		adminGroup.DELETE("/ticket-types/{id}", adminHandler.DeleteTicketType)
		adminGroup.GET("/event", adminHandler.GetEvent)
		adminGroup.PUT("/event", adminHandler.SaveEvent)
		adminGroup.GET("/gateway", adminHandler.GetGateway)
		adminGroup.PUT("/gateway", adminHandler.SaveGateway)
		adminGroup.GET("/reports/summary", adminHandler.Summary)
		adminGroup.GET("/transactions", adminHandler.Transactions)
		adminGroup.GET("/transactions/{reference}", adminHandler.TransactionDetail)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if redisClient == nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  "redis not configured",
				})
			}
			if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server; in-flight realtime events drain on the way out
	defer notifier.Wait()
	return app.Start()
}

// ticketSigningKey returns the HMAC key for ticket payloads. Development
// gets a per-process key; tickets issued by it stop verifying on restart.
func ticketSigningKey(cfg *config.Config) (string, error) {
	if cfg.TicketSigningKey != "" {
		return cfg.TicketSigningKey, nil
	}
	if !cfg.IsDevelopment() {
		return "", errors.New("TICKET_SIGNING_KEY is required outside development")
	}
	key, err := utils.GenerateCode(32)
	if err != nil {
		return "", fmt.Errorf("generate signing key: %w", err)
	}
	slog.Warn("TICKET_SIGNING_KEY not set, using an ephemeral key")
	return key, nil
}

// verificationSecretHash prefers a configured bcrypt hash and otherwise
// hashes the plain secret once at boot.
func verificationSecretHash(cfg *config.Config) (string, error) {
	if cfg.VerificationSecretHash != "" {
		return cfg.VerificationSecretHash, nil
	}
	if cfg.VerificationSecret == "" {
		slog.Warn("No verification secret configured, payment verification is disabled")
		return "", nil
	}
	hash, err := utils.GenerateHash([]byte(cfg.VerificationSecret))
	if err != nil {
		return "", fmt.Errorf("hash verification secret: %w", err)
	}
	return hash, nil
}

func serveMetrics(ctx context.Context, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Metrics listening on :%s/metrics", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Metrics server stopped", "error", err)
	}
}

// handleShutdown cancels background work on SIGINT/SIGTERM
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
