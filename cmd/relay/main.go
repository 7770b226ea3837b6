package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"rtc-game/config"
	"rtc-game/logger"
	"rtc-game/nats"
	"rtc-game/server"
	"rtc-game/signaling"
)

func main() {
	conf := config.Init()
	if err := logger.Init(conf); err != nil {
		log.WithError(err).Fatal("Failed to set up logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher := nats.Connect(conf.NatsURL)
	defer publisher.Close()

	hub := server.NewHub(conf, publisher)
	go hub.Run(ctx)

	api := signaling.NewAPI(logger.NewPionFactory())
	handler := server.NewHandler(hub, api, signaling.Configuration(conf.ICEServers))
	if err := server.Start(ctx, conf, handler); err != nil {
		log.WithError(err).Fatal("Relay server failed")
	}
}
