package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "dishpatch/internal/api/http"
	"dishpatch/internal/coordinator"
	"dishpatch/internal/fanout"
	"dishpatch/internal/store"
	"dishpatch/internal/store/memory"
	"dishpatch/internal/store/postgres"
	"dishpatch/pkg/config"
	"dishpatch/pkg/db"
	"dishpatch/pkg/logger"
	"dishpatch/pkg/rabbitmq"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	port := flag.Int("port", 0, "HTTP port, overrides the configuration")
	inMemory := flag.Bool("in-memory", false, "Run against the in-memory store, no database required")
	flag.Parse()

	log0 := logger.NewLogger("coordinator")
	defer log0.Sync()
	log0.Info("startup", "service_started", "Order coordinator starting")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log0.Error("startup", "config_load_failed", "Failed to load configuration", err)
		log.Fatal(err)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st store.Store
	if *inMemory {
		st = memory.New()
	} else {
		pool, err := db.ConnectDB(&cfg.Database, log0)
		if err != nil {
			log0.Error("startup", "db_connection_failed", "Failed to connect to database", err)
			log.Fatal(err)
		}
		pg := postgres.New(pool)
		if err := pg.Migrate(ctx); err != nil {
			log0.Error("startup", "migration_failed", "Failed to run migrations", err)
			log.Fatal(err)
		}
		st = pg
	}
	defer st.Close()

	var pub fanout.Publisher
	rm, err := rabbitmq.ConnectRabbitMQ(&cfg.RabbitMQ, log0)
	if err != nil {
		log0.Error("startup", "mq_connection_failed", "Failed to connect to RabbitMQ, events disabled", err)
	} else {
		defer rm.Close()
		pub = fanout.NewRabbitPublisher(rm)
	}

	service := coordinator.NewService(st, pub, log0)
	server := api.NewServer(cfg.HTTP.Port, service, log0)

	go func() {
		if err := server.Start(); err != nil {
			log0.Error("startup", "server_start_failed", "HTTP server stopped", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log0.Info("shutdown", "graceful_shutdown", "Shutting down coordinator...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log0.Error("shutdown", "shutdown_failed", "Failed to shut down HTTP server gracefully", err)
	}
	log0.Info("shutdown", "service_stopped", "Coordinator exiting")
}
