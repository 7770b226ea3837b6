package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"rtc-game/config"
	"rtc-game/game"
	"rtc-game/input"
	"rtc-game/logger"
	"rtc-game/render"
	"rtc-game/signaling"
)

func main() {
	conf := config.Init()

	flagSet := pflag.NewFlagSet("rtc-game", pflag.ExitOnError)
	flagSet.StringVar(&conf.ServerURL, "url", conf.ServerURL, "signaling server websocket url")
	keyboard := flagSet.Bool("keyboard", false, "read movement keys from the terminal")
	flagSet.Parse(os.Args[1:])

	if err := logger.Init(conf); err != nil {
		log.WithError(err).Fatal("Failed to set up logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := render.NewHeadless(conf.ModelLoadDelay, conf.CameraAzimuth)
	controller := game.NewController(adapter, conf.FrameRate)

	api := signaling.NewAPI(logger.NewPionFactory())
	client := signaling.NewClient(signaling.NewPionFactory(api, signaling.Configuration(conf.ICEServers)))
	controller.Attach(client)

	if err := client.Connect(ctx, conf.ServerURL); err != nil {
		log.WithError(err).Fatal("Failed to connect")
	}
	defer client.Close()

	if *keyboard {
		go func() {
			err := input.RunTerminal(ctx, controller)
			if err != nil && !errors.Is(err, input.ErrQuit) && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Keyboard input stopped")
			}
			stop()
		}()
	}

	go func() {
		select {
		case <-client.Done():
			log.WithField("state", client.State()).Warn("Signaling ended, no further updates will arrive")
		case <-ctx.Done():
		}
	}()

	controller.Run(ctx)
	log.Info("Client stopped")
}
