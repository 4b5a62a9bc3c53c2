package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sakashimaa/food-order/pkg/utils"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string   `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Cache    Cache    `yaml:"cache"`
	Pricing  Pricing  `yaml:"pricing"`
	Stream   Stream   `yaml:"stream"`
	Auth     Auth     `yaml:"auth"`
	Kafka    Kafka    `yaml:"kafka"`
	Limiter  Limiter  `yaml:"limiter"`
	Metrics  Metrics  `yaml:"metrics"`
	Tracing  Tracing  `yaml:"tracing"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL      string `yaml:"url" env:"DB_URL"`
	MaxConns int32  `yaml:"max_conns" env-default:"10"`
	MinConns int32  `yaml:"min_conns" env-default:"2"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Cache controls the restaurant status cache. FailOnWriteError decides whether
// a status update whose cache refresh failed is reported as a failed request.
type Cache struct {
	TTL              time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"1h"`
	FailOnWriteError bool          `yaml:"fail_on_write_error" env:"CACHE_FAIL_ON_WRITE_ERROR" env-default:"false"`
}

type Pricing struct {
	AbsoluteTolerance float64 `yaml:"absolute_tolerance" env-default:"0.005"`
	RelativeTolerance float64 `yaml:"relative_tolerance" env-default:"0.000001"`
}

type Stream struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" env:"STREAM_HEARTBEAT_INTERVAL" env-default:"15s"`
}

type Auth struct {
	Secret string `yaml:"secret" env:"ACCESS_SECRET"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"order_events"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

type Metrics struct {
	Port string `yaml:"port" env:"METRICS_PORT" env-default:":9091"`
}

type Tracing struct {
	Endpoint    string  `yaml:"endpoint" env:"JAEGER_ENDPOINT" env-default:"localhost:4318"`
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACING_SAMPLE_RATIO" env-default:"1"`
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is not set")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	return cfg
}
