package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/roamly/experience-booking/internal/config"
	"github.com/roamly/experience-booking/internal/database"
	"github.com/roamly/experience-booking/internal/handler"
	"github.com/roamly/experience-booking/internal/middleware"
	"github.com/roamly/experience-booking/internal/model"
	"github.com/roamly/experience-booking/internal/payment"
	"github.com/roamly/experience-booking/internal/queue"
	"github.com/roamly/experience-booking/internal/repository"
	"github.com/roamly/experience-booking/internal/router"
	"github.com/roamly/experience-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment

	cfg := config.Load()
	payCfg := config.LoadPaymentsConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.InitSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema: %v", err)
	}
	cancel()

	// Redis is optional: without it the availability cache and the
	// rate limiter degrade to pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; availability cache and rate limiting disabled")
	}

	// Register only the providers that have credentials.
	var providers []payment.Provider
	if p := payment.NewStripeClient(payCfg.StripeSecretKey, payCfg.StripeBaseURL); p != nil {
		providers = append(providers, p)
	}
	if p := payment.NewPayPalClient(payCfg.PayPalClientID, payCfg.PayPalClientSecret, payCfg.PayPalBaseURL); p != nil {
		providers = append(providers, p)
	}
	if p := payment.NewPayzoneClient(payCfg.PayzoneAPIKey, payCfg.PayzoneBaseURL); p != nil {
		providers = append(providers, p)
	}
	registry := payment.NewRegistry(providers...)

	sessionRepo := repository.NewSessionRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)
	couponRepo := repository.NewCouponRepo(db)
	refundRepo := repository.NewRefundRepo(db)

	enabled := make([]model.PaymentProvider, 0, len(payCfg.EnabledProviders))
	for _, id := range payCfg.EnabledProviders {
		enabled = append(enabled, model.PaymentProvider(id))
	}
	checkoutCfg := service.CheckoutConfig{
		DefaultProvider:  model.PaymentProvider(payCfg.DefaultProvider),
		EnabledProviders: enabled,
	}

	notify := func(ctx context.Context, ev queue.BookingConfirmedEvent) {
		// Settlement must not fail on a broker outage; the error is
		// already logged by the publisher.
		_ = queue.PublishBookingConfirmed(ctx, ev)
	}

	capacitySvc := service.NewCapacityService(bookingRepo, sessionRepo, time.Duration(cfg.HoldTTLMin)*time.Minute)
	couponSvc := service.NewCouponService(couponRepo, bookingRepo)
	checkoutSvc := service.NewCheckoutService(bookingRepo, paymentRepo, registry, checkoutCfg, notify)
	settlementSvc := service.NewSettlementService(paymentRepo, payCfg.WebhookSecret, notify)
	refundSvc := service.NewRefundService(paymentRepo, refundRepo, registry)

	h := &router.Handlers{
		Booking:  &handler.BookingHandler{Capacity: capacitySvc, Redis: rdb},
		Checkout: &handler.CheckoutHandler{Checkout: checkoutSvc, Bookings: bookingRepo},
		Webhook:  &handler.WebhookHandler{Settlement: settlementSvc},
		Coupon:   &handler.CouponHandler{Coupons: couponSvc, Bookings: bookingRepo, Repo: couponRepo},
		Refund:   &handler.RefundHandler{Refunds: refundSvc, Payments: paymentRepo},
		Session:  &handler.SessionHandler{Capacity: capacitySvc, Redis: rdb},
	}

	var rateLimit echo.MiddlewareFunc
	if rlCfg := config.LoadRateLimitConfig(); rlCfg.Enabled && rdb != nil {
		rateLimit = middleware.NewTokenBucket(rlCfg, rdb)
	}

	e := echo.New()
	router.RegisterRoutes(e, h)
	router.RegisterAPI(e, h, cfg.JWTSecret, rateLimit)

	// Background consumer turns settlement events into the booking
	// audit log; it reconnects forever on broker failures.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking-consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
