/**
 * @description
 * This is the main entry point for the funding-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the payment authority client, the message broker, the repository,
 * the core application service, and the HTTP server. It wires everything
 * together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/paymentclient: Client for the external payment authority.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pawfund/funding-service/internal/api"
	"github.com/pawfund/funding-service/internal/app"
	"github.com/pawfund/funding-service/internal/config"
	"github.com/pawfund/funding-service/internal/store"
	"github.com/pawfund/funding-service/pkg/paymentclient"
	pfrabbit "github.com/pawfund/funding-service/pkg/rabbitmq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting funding-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database. All durable
	// state lives here; the reconciler's guarantees ride on its transactions.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish ledger events. The service
	// only publishes; a missing broker degrades to the no-op fallback.
	var eventProducer pfrabbit.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; ledger events disabled\" env=RABBITMQ_URL")
		eventProducer = &pfrabbit.EventProducerFallback{}
	} else {
		producer, prodErr := pfrabbit.NewEventProducer(cfg.RabbitMQURL)
		if prodErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", prodErr)
			eventProducer = &pfrabbit.EventProducerFallback{}
		} else {
			defer producer.Close()
			log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
			eventProducer = producer
		}
	}

	// Initialize the client for the external payment authority. A missing
	// configuration should not prevent the ledger from booting; the intent
	// endpoint will degrade.
	var paymentClient *paymentclient.Client
	if strings.TrimSpace(cfg.PaymentAPIBaseURL) == "" || strings.TrimSpace(cfg.PaymentAPIKey) == "" {
		log.Printf("level=warn component=bootstrap msg=\"payment authority client not configured; donation intents disabled\" base_url_set=%t api_key_set=%t",
			strings.TrimSpace(cfg.PaymentAPIBaseURL) != "",
			strings.TrimSpace(cfg.PaymentAPIKey) != "",
		)
	} else {
		paymentClient = paymentclient.NewClient(cfg.PaymentAPIBaseURL, cfg.PaymentAPIKey)
	}

	var redisClient *redis.Client
	if cfg.DonationRateLimitPerMinute > 0 {
		if cfg.RedisURL == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; donation rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; donation rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; donation rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	fundingService := app.NewService(repository, paymentClient, eventProducer)
	if redisClient != nil {
		fundingService.SetDonationRateLimiter(
			app.NewRedisDonationRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.DonationRateLimitPerMinute,
		)
	}

	// Initialize the API handlers.
	fundingHandlers := api.NewFundingHandlers(fundingService)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/api", api.FundingRoutes(fundingHandlers, cfg.JWTSecret))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
