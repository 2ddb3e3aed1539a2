package main

import (
	"log"
	"net/http"
	"time"

	"payment-reconciler/internal/client"
	"payment-reconciler/internal/config"
	"payment-reconciler/internal/event"
	"payment-reconciler/internal/journal"
	"payment-reconciler/internal/logging"
	"payment-reconciler/internal/metrics"
	"payment-reconciler/internal/mpesa"
	"payment-reconciler/internal/poller"
	"payment-reconciler/internal/push"
	"payment-reconciler/internal/reconcile"
	"payment-reconciler/internal/resolver"
	"payment-reconciler/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoadConfig("config")

	logger := logging.GetLogger(cfg.Logs)
	metrics.Setup(cfg.Metrics)

	connStr := journal.ConnStr(cfg.Database)
	journal.RunMigrations(connStr, "migrations")

	dbpool, err := journal.GetPool(connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer dbpool.Close()

	attempts := journal.NewAttemptRepository(dbpool)

	timeout := time.Duration(cfg.Services.TimeoutMs) * time.Millisecond
	payments := client.NewPaymentsClient(cfg.Services.PaymentsURL, timeout)
	bookings := client.NewBookingClient(cfg.Services.BookingsURL, timeout)
	gateway := client.NewGatewayClient(cfg.Services.GatewayURL, timeout)

	var publisher *event.Publisher
	if cfg.Kafka.Broker.URL != "" {
		writer := event.NewWriter(cfg.Kafka)
		defer writer.Close()
		publisher = event.NewPublisher(writer, logger)
	}

	flow := mpesa.NewFlow(
		resolver.New(payments, logger),
		push.New(gateway, logger),
		poller.New(payments, poller.ConfigFrom(cfg.Poller), logger),
		reconcile.New(payments, bookings, reconcile.ConfigFrom(cfg.Reconciler), logger),
		attempts,
		publisher,
		cfg.Flow.Parallelism,
		logger,
	)

	mux := http.NewServeMux()
	server.NewHandler(flow, attempts, logger).Register(mux)

	logger.Info("Starting server", "port", cfg.Server.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Server.Port, mux))
}
