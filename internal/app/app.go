// Package app wires configuration, storage, domain services, and the HTTP
// server into a runnable application.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/openkiosk/storefront/internal/auth"
	"github.com/openkiosk/storefront/internal/domain/cart"
	"github.com/openkiosk/storefront/internal/domain/checkout"
	"github.com/openkiosk/storefront/internal/domain/order"
	"github.com/openkiosk/storefront/internal/domain/pricing"
	"github.com/openkiosk/storefront/internal/domain/wishlist"
	"github.com/openkiosk/storefront/internal/handler"
	"github.com/openkiosk/storefront/internal/razorpay"
	"github.com/openkiosk/storefront/internal/repository"
	"github.com/openkiosk/storefront/pkg/health"
	"github.com/openkiosk/storefront/pkg/httpmiddleware"
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
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	failureRepo := repository.NewFailureRepository(pool)

	// Domain services.
	pricer, err := newPricer(cfg.Pricing)
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}
	gateway := razorpay.NewClient(razorpay.Config{
		KeyID:   cfg.Razorpay.KeyID,
		Secret:  cfg.Razorpay.KeySecret,
		BaseURL: cfg.Razorpay.BaseURL,
		Timeout: cfg.Razorpay.Timeout,
	})

	authSvc := auth.NewService(userRepo, auth.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL))
	cartSvc := cart.NewService(userRepo, productRepo)
	wishlistSvc := wishlist.NewService(userRepo, productRepo)
	orderSvc := order.NewService(orderRepo)
	checkoutSvc := checkout.NewService(userRepo, productRepo, orderRepo, gateway, failureRepo, pricer, checkout.Config{
		Currency:     cfg.Checkout.Currency,
		ReserveStock: cfg.Checkout.ReserveStock,
	})

	// Router: gin engine for the API, plain mux for health probes.
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	handler.New(authSvc, userRepo, productRepo, cartSvc, wishlistSvc, orderSvc, checkoutSvc, gateway).Routes(engine)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", otelhttp.NewHandler(engine, "storefront-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.Logging(zctx.From(ctx)),
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

func newPricer(cfg PricingConfig) (*pricing.Calculator, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, errors.Wrap(err, "tax rate")
	}
	shippingFee, err := decimal.NewFromString(cfg.ShippingFee)
	if err != nil {
		return nil, errors.Wrap(err, "shipping fee")
	}
	freeOver, err := decimal.NewFromString(cfg.FreeShippingOver)
	if err != nil {
		return nil, errors.Wrap(err, "free shipping threshold")
	}
	return pricing.NewCalculator(taxRate, shippingFee, freeOver), nil
}
