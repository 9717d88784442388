package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/mscinema/booking-service/internal/bookingapi"
	"github.com/mscinema/booking-service/internal/config"
	"github.com/mscinema/booking-service/internal/database"
	"github.com/mscinema/booking-service/internal/handler"
	"github.com/mscinema/booking-service/internal/payment"
	"github.com/mscinema/booking-service/internal/queue"
	"github.com/mscinema/booking-service/internal/repository"
	"github.com/mscinema/booking-service/internal/router"
	queue_publisher "github.com/mscinema/booking-service/internal/service"
	"github.com/mscinema/booking-service/internal/session"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		// The session store has no fallback; everything else degrades.
		log.Fatal("redis: connection failed, booking sessions cannot be stored")
	}

	// External cinema-operations API client with guest-token auth.
	tokens := bookingapi.NewTokenManager(cfg.BookingAPIBase, cfg.BookingAPIAppID, cfg.BookingAPIAppKey)
	api := bookingapi.New(cfg.BookingAPIBase, tokens)

	store := session.NewRedisStore(rdb, time.Duration(cfg.SessionTTLMin)*time.Minute)
	sessions := session.NewService(store, api, cfg.TwinTicketTypeIDs)

	orders := repository.NewOrderRepo(db)
	paymentLogs := repository.NewPaymentLogRepo(db)
	stash := payment.NewRedisStash(rdb, 0)

	gateway := payment.GatewayConfig{
		MerchantID: cfg.FiuuMerchantID,
		VerifyKey:  cfg.FiuuVerifyKey,
		ReturnURL:  cfg.PaymentReturn,
		SuccessURL: cfg.PaymentSuccess,
		FailedURL:  cfg.PaymentFailed,
		Currency:   cfg.FiuuCurrency,
	}
	reconciler := payment.NewReconciler(gateway, api, orders, paymentLogs, stash, sessions, queue_publisher.Publisher{})

	shows := handler.NewShowHandler(api, cfg.TwinTicketTypeIDs)
	booking := handler.NewBookingHandler(sessions, cfg.JWTSecret, cfg.SessionTTLMin)
	payments := handler.NewPaymentHandler(gateway, sessions, orders, stash, reconciler)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterBooking(e, shows, booking, cfg.JWTSecret, rdb)
	router.RegisterPayment(e, payments, cfg.JWTSecret)

	// Background workers: the janitor sweeps abandoned sessions so their
	// upstream holds are released promptly, and the consumer writes the
	// payment audit log from the broker.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.NewJanitor(sessions, 0).Run(ctx)
	go func() {
		if err := queue.StartPaymentConsumer(); err != nil {
			log.Printf("payment-consumer: stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
