package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edulearn-backend/config"
	"edulearn-backend/internal/delivery/http/middleware"
	v1 "edulearn-backend/internal/delivery/http/v1"
	"edulearn-backend/internal/domain"
	"edulearn-backend/internal/infrastructure/cache"
	"edulearn-backend/internal/infrastructure/notify"
	"edulearn-backend/internal/infrastructure/paymob"
	"edulearn-backend/internal/jobs"
	"edulearn-backend/internal/repository/postgres"
	"edulearn-backend/internal/usecase"
	"edulearn-backend/pkg/logger"
	"edulearn-backend/pkg/storage"
	"edulearn-backend/pkg/utils"

	"github.com/NYTimes/gziphandler"
)

func main() {
	cfg := config.LoadConfig()
	utils.SetSecret(cfg.JWTSecret)

	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	pgxPool, err := postgres.NewPgxPool(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgxPool.Close()
	log.Info().Msg("Successfully connected to PostgreSQL")

	// Repositories
	userRepo := postgres.NewUserRepository(pgxPool)
	catalogRepo := postgres.NewCatalogRepository(pgxPool)
	cartRepo := postgres.NewCartRepository(pgxPool)
	promoRepo := postgres.NewPromoRepository(pgxPool)
	purchaseRepo := postgres.NewPurchaseRepository(pgxPool)
	txManager := postgres.NewTransactionManager(pgxPool)

	// Default expiration 30m, cleanup every 60m
	memCache := cache.NewMemoryCache(30*time.Minute, 60*time.Minute)

	// Payment gateway
	gateway := paymob.NewClient(paymob.Options{
		BaseURL:             cfg.PaymobBaseURL,
		APIKey:              cfg.PaymobAPIKey,
		CardIntegrationID:   cfg.PaymobCardIntegrationID,
		WalletIntegrationID: cfg.PaymobWalletIntegrationID,
		IframeID:            cfg.PaymobIframeID,
		Timeout:             cfg.PaymobTimeout,
	})

	// Best-effort collaborators; both stay nil when unconfigured.
	var notifier domain.InvoiceNotifier
	if n := notify.NewInvoiceNotifier(cfg.NotifyURL, cfg.NotifyAPIKey); n != nil {
		notifier = n
	}
	var archiver domain.PayloadArchiver
	r2, err := storage.NewR2Archive(
		context.Background(),
		cfg.R2AccountID,
		cfg.R2AccessKeyID,
		cfg.R2AccessKeySecret,
		cfg.R2BucketName,
		cfg.R2UploadTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize R2 payload archive")
	}
	if r2 != nil {
		archiver = r2
	}

	// --- Modules Initialization ---

	cartUC := usecase.NewCartUsecase(cartRepo, catalogRepo, userRepo, memCache, cfg.CacheCatalogTTL, cfg.MaxCartSize)
	promoUC := usecase.NewPromoUsecase(promoRepo)
	reconciler := usecase.NewEnrollmentReconciler(userRepo, catalogRepo, promoRepo)
	checkoutUC := usecase.NewCheckoutUsecase(
		purchaseRepo,
		userRepo,
		cartUC,
		promoUC,
		gateway,
		reconciler,
		txManager,
		notifier,
		archiver,
		cfg.Currency,
	)

	cartHandler := v1.NewCartHandler(cartUC)
	promoHandler := v1.NewPromoHandler(promoUC, cartUC)
	checkoutHandler := v1.NewCheckoutHandler(checkoutUC)
	paymentHandler := v1.NewPaymentHandler(checkoutUC, cfg)
	adminPromoHandler := v1.NewAdminPromoHandler(promoUC)
	adminPurchaseHandler := v1.NewAdminPurchaseHandler(checkoutUC)

	// Background sweep for pending purchases whose callbacks never landed.
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	sweeper := jobs.NewPendingPaymentSweeper(
		purchaseRepo,
		checkoutUC,
		cfg.ReconcileInterval,
		cfg.ReconcileMinAge,
		cfg.ReconcileMaxAge,
		cfg.ReconcileThrottle,
		cfg.ReconcileBatch,
	)
	go sweeper.Start(jobCtx)

	// --- Routes ---

	mux := http.NewServeMux()

	adminOnly := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.AdminMiddleware(h))
	}

	// Cart (Protected)
	mux.Handle("GET /api/v1/cart", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.GetCart)))
	mux.Handle("POST /api/v1/cart", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.AddToCart)))
	mux.Handle("DELETE /api/v1/cart/{itemId}", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.RemoveFromCart)))
	mux.Handle("DELETE /api/v1/cart", middleware.AuthMiddleware(http.HandlerFunc(cartHandler.ClearCart)))

	// Promo validation (Protected)
	mux.Handle("POST /api/v1/cart/promo", middleware.AuthMiddleware(http.HandlerFunc(promoHandler.ApplyPromo)))

	// Checkout & Purchases (Protected)
	mux.Handle("POST /api/v1/checkout", middleware.AuthMiddleware(http.HandlerFunc(checkoutHandler.Checkout)))
	mux.Handle("GET /api/v1/purchases", middleware.AuthMiddleware(http.HandlerFunc(checkoutHandler.GetMyPurchases)))
	mux.Handle("GET /api/v1/purchases/{id}", middleware.AuthMiddleware(http.HandlerFunc(checkoutHandler.GetMyPurchase)))

	// Payment gateway callbacks (Public: authenticated by HMAC signature,
	// not by user token)
	mux.HandleFunc("POST /api/v1/payments/webhook", paymentHandler.Webhook)
	mux.HandleFunc("GET /api/v1/payments/callback", paymentHandler.Landing)

	// Admin Promo Codes
	mux.Handle("GET /api/v1/admin/promo-codes", adminOnly(adminPromoHandler.List))
	mux.Handle("POST /api/v1/admin/promo-codes", adminOnly(adminPromoHandler.Create))
	mux.Handle("GET /api/v1/admin/promo-codes/{id}", adminOnly(adminPromoHandler.Get))
	mux.Handle("PUT /api/v1/admin/promo-codes/{id}", adminOnly(adminPromoHandler.Update))
	mux.Handle("DELETE /api/v1/admin/promo-codes/{id}", adminOnly(adminPromoHandler.Delete))

	// Admin Purchases
	mux.Handle("GET /api/v1/admin/purchases", adminOnly(adminPurchaseHandler.List))
	mux.Handle("GET /api/v1/admin/purchases/{id}", adminOnly(adminPurchaseHandler.Get))

	// Health Check
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	}
	mux.HandleFunc("GET /api/v1/health", healthHandler)
	mux.HandleFunc("GET /health", healthHandler)

	addr := fmt.Sprintf(":%s", cfg.Port)

	// 50 req/s, burst 100, cleanup every minute, TTL 3 minutes
	rateLimiter := middleware.NewRateLimiter(
		context.Background(),
		50,
		100,
		time.Minute,
		3*time.Minute,
	)

	handler := middleware.NewCORSMiddleware(cfg)(mux)
	handler = middleware.RequestLogger(handler)
	handler = rateLimiter.Middleware()(handler)
	handler = gziphandler.GzipHandler(handler)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	log.Info().Msgf("Server starting on %s", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	jobCancel()
	rateLimiter.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
