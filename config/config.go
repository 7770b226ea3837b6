package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	LogJSON  bool   `env:"GAME_LOG_JSON" envDefault:"false"`
	LogLevel string `env:"GAME_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"GAME_LOG_FILE"`

	// Client
	ServerURL      string        `env:"GAME_SERVER_URL" envDefault:"ws://127.0.0.1:3000"`
	ICEServers     []string      `env:"GAME_ICE_SERVERS" envSeparator:","`
	FrameRate      int           `env:"GAME_FRAME_RATE" envDefault:"60"`
	ModelLoadDelay time.Duration `env:"GAME_MODEL_LOAD_DELAY" envDefault:"250ms"`
	CameraAzimuth  float64       `env:"GAME_CAMERA_AZIMUTH" envDefault:"0"`

	// Relay
	HTTPPort       string        `env:"GAME_HTTP_PORT" envDefault:"3000"`
	BroadcastRate  time.Duration `env:"GAME_BROADCAST_RATE" envDefault:"50ms"`
	ReplayInterval time.Duration `env:"GAME_REPLAY_INTERVAL" envDefault:"500ms"`
	NatsURL        string        `env:"GAME_NATS_URL"`
}

// Parse reads the environment, after loading a .env file if there is one.
func Parse() (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded .env file")
	}

	conf, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if conf.FrameRate <= 0 {
		return Config{}, fmt.Errorf("GAME_FRAME_RATE must be positive, got %d", conf.FrameRate)
	}
	if conf.BroadcastRate <= 0 || conf.ReplayInterval <= 0 {
		return Config{}, fmt.Errorf("GAME_BROADCAST_RATE and GAME_REPLAY_INTERVAL must be positive")
	}
	return conf, nil
}

// Init is Parse for binaries: a bad environment is fatal.
func Init() Config {
	conf, err := Parse()
	if err != nil {
		log.WithError(err).Fatal("Failed to parse config")
	}
	return conf
}
