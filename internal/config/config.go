package config

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"snakeiaserver/internal/game"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	LogFormat     string `env:"LOG_FORMAT"      envDefault:"console" validate:"oneof=console json"`
	HttpAccessLog bool   `env:"HTTP_ACCESS_LOG" envDefault:"false"`

	HttpServerPort      uint16   `env:"HTTP_SERVER_PORT"       envDefault:"3000" validate:"min=1000,max=65535"`
	AllowedOrigins      []string `env:"ALLOWED_ORIGINS"        envSeparator:","`
	WsMessagesPerSecond float64  `env:"WS_MESSAGES_PER_SECOND" envDefault:"30"   validate:"gt=0"`
	WsBurst             int      `env:"WS_BURST"               envDefault:"60"   validate:"min=1"`

	// game
	MaxRooms         int           `env:"MAX_ROOMS"          envDefault:"20"     validate:"min=1"`
	MaxPlayers       int           `env:"MAX_PLAYERS"        envDefault:"20"     validate:"min=2"`
	MinGridSize      int           `env:"MIN_GRID_SIZE"      envDefault:"5"      validate:"min=3"`
	MaxGridSize      int           `env:"MAX_GRID_SIZE"      envDefault:"100"    validate:"gtefield=MinGridSize"`
	MinSpeed         int           `env:"MIN_SPEED"          envDefault:"1"      validate:"min=1"`
	MaxSpeed         int           `env:"MAX_SPEED"          envDefault:"100"    validate:"gtefield=MinSpeed"`
	PlayerWaitTime   time.Duration `env:"PLAYER_WAIT_TIME"   envDefault:"45s"    validate:"gt=0"`
	MaxGameDuration  time.Duration `env:"MAX_GAME_DURATION"  envDefault:"0s"     validate:"gte=0"`
	AISlotsPerRoom   int           `env:"AI_SLOTS_PER_ROOM"  envDefault:"2"      validate:"min=0"`
	EmptyRoomTTL     time.Duration `env:"EMPTY_ROOM_TTL"     envDefault:"1m"     validate:"gt=0"`
	EnablePause      bool          `env:"ENABLE_PAUSE"       envDefault:"true"`
	EnableRetry      bool          `env:"ENABLE_RETRY"       envDefault:"false"`
	ProgressiveSpeed bool          `env:"PROGRESSIVE_SPEED"  envDefault:"false"`
	ServerVersion    string        `env:"SERVER_VERSION"     envDefault:"1.0.0"`

	// authentication
	EnableAuthentication  bool          `env:"ENABLE_AUTHENTICATION"   envDefault:"true"`
	JwtSecret             string        `env:"JWT_SECRET"`
	AuthenticationTime    time.Duration `env:"AUTHENTICATION_TIME"     envDefault:"24h" validate:"gt=0"`
	MinCharactersUsername int           `env:"MIN_CHARACTERS_USERNAME" envDefault:"3"   validate:"min=1"`
	MaxCharactersUsername int           `env:"MAX_CHARACTERS_USERNAME" envDefault:"15"  validate:"gtefield=MinCharactersUsername"`
	BannedUsernames       []string      `env:"BANNED_USERNAMES"        envSeparator:","`

	RedisEnabled     bool          `env:"REDIS_ENABLED"      envDefault:"false"`
	RedisHost        string        `env:"REDIS_HOST"         envDefault:"localhost"`
	RedisPort        uint16        `env:"REDIS_PORT"         envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RoomSyncInterval time.Duration `env:"ROOM_SYNC_INTERVAL" envDefault:"2s"   validate:"gt=0"`

	PostgresEnabled  bool   `env:"POSTGRES_ENABLED"  envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     uint16 `env:"POSTGRES_PORT"     envDefault:"5432" validate:"min=1"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"snake_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"snake_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"snake_db"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}

	// tokens issued by a random secret do not survive a restart
	if cfg.JwtSecret == "" {
		cfg.JwtSecret = randomSecret()
		zap.L().Warn("config.jwt_secret_generated")
	}
	return cfg, nil
}

// Game returns the tunables of the room/matchmaking core.
func (c *Config) Game() game.Config {
	return game.Config{
		MaxRooms:         c.MaxRooms,
		MaxPlayers:       c.MaxPlayers,
		MinGridSize:      c.MinGridSize,
		MaxGridSize:      c.MaxGridSize,
		MinSpeed:         c.MinSpeed,
		MaxSpeed:         c.MaxSpeed,
		PlayerWaitTime:   c.PlayerWaitTime,
		MaxGameDuration:  c.MaxGameDuration,
		AISlotsPerRoom:   c.AISlotsPerRoom,
		EmptyRoomTTL:     c.EmptyRoomTTL,
		EnablePause:      c.EnablePause,
		EnableRetry:      c.EnableRetry,
		ProgressiveSpeed: c.ProgressiveSpeed,
		ServerVersion:    c.ServerVersion,
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
