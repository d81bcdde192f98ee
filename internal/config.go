package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	MaxConcurrentQueries int           `env:"MAX_CONCURRENT_QUERIES,default=4"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=15s"`
	MetricsAddr          string        `env:"METRICS_ADDR,default=:9090"`

	ServerURL       string        `env:"SERVER_URL,required=true"`
	SenderID        string        `env:"SENDER_ID,required=true"`
	ClientID        string        `env:"CLIENT_ID"`
	AuthSecret      string        `env:"AUTH_SECRET,required=true"`
	AuthTokenTTL    time.Duration `env:"AUTH_TOKEN_DURATION,default=1h"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT,default=10s"`

	NatsURL       string        `env:"NATS_URL"`
	NatsSubject   string        `env:"NATS_SUBJECT,default=chat.messages"`
	SyncCron      string        `env:"SYNC_CRON"`
	SyncInterval  time.Duration `env:"SYNC_INTERVAL,default=1m"`
	SyncCursorKey string        `env:"SYNC_CURSOR,default=remote"`
}

// LoadConfig reads a .env file when present, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return config, nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
