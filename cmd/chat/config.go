package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL  string `envconfig:"SERVER_URL" required:"true"`
	SenderID   string `envconfig:"SENDER_ID" required:"true"`
	ClientID   string `envconfig:"CLIENT_ID"`
	AuthSecret string `envconfig:"AUTH_SECRET" required:"true"`
	// CHAT_DATA_DIR holds the local copy of the rooms
	DataDir      string        `envconfig:"DATA_DIR" default:".chat-sync"`
	PullInterval time.Duration `envconfig:"PULL_INTERVAL" default:"5s"`
	Timeout      time.Duration `envconfig:"TIMEOUT" default:"10s"`
	Latitude     *float64      `envconfig:"LATITUDE"`
	Longitude    *float64      `envconfig:"LONGITUDE"`
	// CHAT_COLOURS enables colorized output
	Colours  bool   `envconfig:"COLOURS" default:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"ERROR"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("chat", &cfg)
	return cfg, err
}
