package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	// Base URL of the external verification authority.
	AuthorityURL string `env:"AUTH_AUTHORITY_URL" envDefault:"http://localhost:9000" validate:"url"`

	// Shared secret expected on the /broadcast and /state endpoints.
	BroadcastSecret string `env:"BROADCAST_SECRET,required" validate:"min=8"`

	// Optional routing metadata: when set, the hub binds this room at boot
	// and rehydrates its persisted state.
	RoomID string `env:"ROOM_ID"`

	AdmissionTimeout time.Duration `env:"ADMISSION_TIMEOUT" envDefault:"10s"`
	IdleTimeout      time.Duration `env:"IDLE_TIMEOUT"      envDefault:"30s"`
	VerifyTimeout    time.Duration `env:"VERIFY_TIMEOUT"    envDefault:"5s"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
