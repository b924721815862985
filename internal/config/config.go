package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

const DefaultPath = "config/local.yaml"

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Realtime   RealtimeConfig   `yaml:"realtime"`
}

type HTTPConfig struct {
	Address        string        `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace" env-default:"10s"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	DSN           string `yaml:"dsn" env:"DATABASE_DSN" env-default:""`
	MongoURI      string `yaml:"mongo_uri" env:"MONGO_URI" env-default:""`
	MongoDatabase string `yaml:"mongo_database" env:"MONGO_DATABASE" env-default:"missionops"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
	CookieName string        `yaml:"cookie_name" env-default:"token"`
	TokenTTL   time.Duration `yaml:"token_ttl" env-default:"24h"`
	Leeway     time.Duration `yaml:"leeway" env-default:"30s"`
}

type AttendanceConfig struct {
	Window            time.Duration `yaml:"window" env:"ATTENDANCE_WINDOW" env-default:"60s"`
	CodeLength        int           `yaml:"code_length" env-default:"4"`
	Timezone          string        `yaml:"timezone" env:"ATTENDANCE_TIMEZONE" env-default:"UTC"`
	ExposeCode        bool          `yaml:"expose_code" env:"ATTENDANCE_EXPOSE_CODE" env-default:"false"`
	SweepRate         int           `yaml:"sweep_rate" env-default:"50"`
	MaxSubmitAttempts int           `yaml:"max_submit_attempts" env:"ATTENDANCE_MAX_SUBMIT_ATTEMPTS" env-default:"0"`
}

type RealtimeConfig struct {
	SendQueue       int           `yaml:"send_queue" env-default:"64"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"10s"`
	PongWait        time.Duration `yaml:"pong_wait" env-default:"60s"`
	MaxMessageBytes int64         `yaml:"max_message_bytes" env-default:"8192"`
}

func MustLoad(configPath string) *Config {
	if configPath == "" {
		configPath = fetchConfigPath()
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic("cannot read config: " + err.Error())
	}

	return cfg
}

// Load reads the file at configPath, applies env overrides and defaults and
// validates the result.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func fetchConfigPath() string {
	res := os.Getenv("CONFIG_PATH")
	if res == "" {
		res = DefaultPath
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.HTTP.ShutdownGrace <= 0 {
		c.HTTP.ShutdownGrace = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMemory
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "token"
	}
	if c.Attendance.Window <= 0 {
		c.Attendance.Window = 60 * time.Second
	}
	if c.Attendance.CodeLength <= 0 {
		c.Attendance.CodeLength = 4
	}
	if c.Attendance.Timezone == "" {
		c.Attendance.Timezone = "UTC"
	}
	if c.Attendance.SweepRate <= 0 {
		c.Attendance.SweepRate = 50
	}
	if c.Realtime.SendQueue <= 0 {
		c.Realtime.SendQueue = 64
	}
	if c.Realtime.WriteTimeout <= 0 {
		c.Realtime.WriteTimeout = 10 * time.Second
	}
	if c.Realtime.PongWait <= 0 {
		c.Realtime.PongWait = 60 * time.Second
	}
	if c.Realtime.MaxMessageBytes <= 0 {
		c.Realtime.MaxMessageBytes = 8192
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("storage.mongo_uri is required for mongo")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" && c.Storage.Driver != StorageMemory {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Attendance.CodeLength > 9 {
		return errors.New("attendance.code_length must be at most 9")
	}
	if _, err := time.LoadLocation(c.Attendance.Timezone); err != nil {
		return fmt.Errorf("attendance.timezone: %w", err)
	}

	return nil
}

// Location returns the time zone attendance days are computed in.
func (c AttendanceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
