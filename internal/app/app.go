package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/mirante-studio/studio-api/internal/domain/order"
	"github.com/mirante-studio/studio-api/internal/domain/payment"
	"github.com/mirante-studio/studio-api/internal/handler"
	"github.com/mirante-studio/studio-api/internal/mercadopago"
	"github.com/mirante-studio/studio-api/internal/repository"
	"github.com/mirante-studio/studio-api/pkg/health"
	"github.com/mirante-studio/studio-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	auditRepo := repository.NewWebhookAuditRepository(pool)

	// Payment gateway. Missing credentials degrade the checkout and
	// webhook endpoints instead of refusing to boot, so the catalog stays
	// up while tokens rotate.
	var gateway payment.Gateway
	mpClient, err := mercadopago.New(mercadopago.Config{
		BaseURL: cfg.MercadoPago.BaseURL,
		Mode:    mercadopago.Mode(cfg.MercadoPago.Mode),
		Test:    mercadopago.Credentials{AccessToken: cfg.MercadoPago.TestAccessToken},
		Prod:    mercadopago.Credentials{AccessToken: cfg.MercadoPago.ProdAccessToken},
		Timeout: cfg.MercadoPago.Timeout,
	})
	switch {
	case err == nil:
		gateway = mpClient
		lg.Info("Payment gateway configured", zap.String("mode", cfg.MercadoPago.Mode))
	case errors.Is(err, mercadopago.ErrNotConfigured):
		lg.Warn("Payment gateway not configured, checkout and webhooks degraded",
			zap.String("mode", cfg.MercadoPago.Mode))
		mpClient = nil
	default:
		return errors.Wrap(err, "create mercado pago client")
	}

	// Domain services.
	orderService := order.NewService(couponRepo, orderRepo)
	reconciler := payment.NewReconciler(gateway, paymentRepo, auditRepo)

	// HTTP handlers.
	h := handler.NewHandler(couponRepo, orderService, reconciler, mpClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.HandleFunc("/webhooks/mercadopago", h.MercadoPagoWebhook)
	mux.HandleFunc("/api/checkout/preference", h.CreatePreference)
	mux.HandleFunc("/api/coupons/active", h.ListActiveCoupons)
	mux.HandleFunc("/api/coupons/quote", h.QuoteCoupon)
	mux.HandleFunc("/api/admin/coupons", h.CreateCoupon)
	mux.HandleFunc("/api/orders", h.Orders)
	mux.HandleFunc("/api/orders/", h.Orders)

	instrument, err := httpmiddleware.Instrument("studio-api", m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics middleware")
	}

	wrapped := httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		instrument,
		httpmiddleware.LogRequests(),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(wrapped, "studio-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
