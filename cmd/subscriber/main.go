package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dishpatch/internal/subscriber"
	"dishpatch/pkg/config"
	"dishpatch/pkg/logger"
)

func main() {
	group := flag.String("group", "", "Subscriber group: cashier, waiter or kitchen")
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	flag.Parse()

	switch *group {
	case "cashier", "waiter", "kitchen":
	default:
		log.Fatal("group must be one of: cashier, waiter, kitchen")
	}

	log0 := logger.NewLogger(*group + "-subscriber")
	defer log0.Sync()
	log0.Info("startup", "service_started", "Event subscriber starting")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log0.Error("startup", "config_load_failed", "Failed to load configuration", err)
		log.Fatal(err)
	}

	sub := subscriber.New(*group, cfg, log0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sub.Start(ctx); err != nil {
			log0.Error("startup", "subscribe_start_failed", "Failed to start subscriber", err)
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log0.Info("shutdown", "graceful_shutdown", "Shutting down subscriber...")
	cancel()
	sub.Stop()

	log0.Info("shutdown", "service_stopped", "Subscriber exiting")
}
