package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/avelsk/counselling-booking/internal/booking"
	"github.com/avelsk/counselling-booking/internal/config"
	"github.com/avelsk/counselling-booking/internal/database"
	"github.com/avelsk/counselling-booking/internal/handler"
	"github.com/avelsk/counselling-booking/internal/queue"
	"github.com/avelsk/counselling-booking/internal/repository"
	"github.com/avelsk/counselling-booking/internal/router"
)

func main() {
	// Load .env when present; real environments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	sessionRepo := repository.NewSessionRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	userRepo := repository.NewUserRepo(db)
	tokenRepo := repository.NewTokenRepo(db)
	engine := booking.NewEngine(repository.NewStore(db))

	// Redis is optional: a nil client disables rate limiting.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting disabled")
	}

	e := echo.New()
	e.HideBanner = true

	sessionHandler := handler.NewSessionHandler(sessionRepo)
	bookingHandler := handler.NewBookingHandler(engine, bookingRepo, sessionRepo)
	authHandler := handler.NewAuthHandler(cfg, userRepo, tokenRepo)

	router.RegisterRoutes(e, sessionHandler)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterBooking(e, bookingHandler, sessionHandler, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	// Background consumer appends confirmed bookings to logs/booking.log.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
