package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"parallel-integrator/internal/protocol"
)

// Бэкенды очереди
const (
	BackendRedis  = "redis"
	BackendGRPC   = "grpc"
	BackendMemory = "memory"
)

// Режимы стартового барьера
const (
	BarrierBroadcast = "broadcast"
	BarrierCounting  = "counting"
)

// Способы поднятия пула воркеров
const (
	ProvisionerCompose = "compose"
	ProvisionerLocal   = "local"
	ProvisionerNone    = "none"
)

type Config struct {
	QueueBackend     string `validate:"oneof=redis grpc memory"`
	RedisHost        string `validate:"required_if=QueueBackend redis"`
	RedisPort        int    `validate:"gt=0,lte=65535"`
	RedisDB          int    `validate:"gte=0"`
	QueueGRPCAddress string `validate:"required_if=QueueBackend grpc"`
	QueueNamespace   string
	BarrierMode      string `validate:"oneof=broadcast counting"`

	WorkerCount int `validate:"gte=1"`
	WorkerID    string

	TaskFile  string
	OutputDir string `validate:"required"`

	Provisioner    string `validate:"oneof=compose local none"`
	ComposeCommand string
	ComposeService string

	// Сервис очередей в том же compose-файле, поднимается до подключения
	ComposeQueueService string

	SamplerCommand   string `validate:"required"`
	SamplerInterval  time.Duration
	SamplerTargetPID int `validate:"gte=0"`

	PollInterval    time.Duration `validate:"gt=0"`
	ReadyTimeout    time.Duration `validate:"gt=0"`
	ReleaseTimeout  time.Duration `validate:"gt=0"`
	ResultTimeout   time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	CoordinatorLogFilePath string
	WorkerLogFilePath      string
	LogLevel               string `validate:"oneof=debug info warn error"`

	DBPath               string
	ServerPort           string
	JWTSecret            string
	JWTExpirationMinutes int `validate:"gt=0"`
	OperatorLogin        string
	OperatorPasswordHash string
}

var AppConfig *Config

// Channels возвращает каналы очереди для пространства имен из конфигурации
func (c *Config) Channels() protocol.Channels {
	return protocol.NewChannels(c.QueueNamespace)
}

// InitConfig загружает конфигурацию в AppConfig и завершает процесс при ошибке
func InitConfig(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	AppConfig = cfg
}

// Load читает .env (если он есть) и переменные окружения
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := godotenv.Load(configPath); err != nil {
				return nil, fmt.Errorf("%w: error loading %s: %v", protocol.ErrConfiguration, configPath, err)
			}
		} else {
			log.Printf("%s not found, using environment only", configPath)
		}
	}

	cfg := &Config{
		QueueBackend:           envString("QUEUE_BACKEND", BackendRedis),
		RedisHost:              envString("REDIS_HOST", "localhost"),
		QueueGRPCAddress:       envString("QUEUE_GRPC_ADDRESS", "localhost:50051"),
		QueueNamespace:         os.Getenv("QUEUE_NAMESPACE"),
		BarrierMode:            envString("BARRIER_MODE", BarrierBroadcast),
		WorkerID:               os.Getenv("WORKER_ID"),
		TaskFile:               envString("TASK_FILE", "task.json"),
		OutputDir:              envString("OUTPUT_DIR", "output"),
		Provisioner:            envString("PROVISIONER", ProvisionerCompose),
		ComposeCommand:         envString("COMPOSE_COMMAND", "docker-compose"),
		ComposeService:         envString("COMPOSE_SERVICE", "worker"),
		ComposeQueueService:    envString("COMPOSE_QUEUE_SERVICE", "redis"),
		SamplerCommand:         envString("SAMPLER_COMMAND", "sampler"),
		CoordinatorLogFilePath: os.Getenv("COORDINATOR_LOG_FILE_PATH"),
		WorkerLogFilePath:      os.Getenv("WORKER_LOG_FILE_PATH"),
		LogLevel:               envString("LOG_LEVEL", "info"),
		DBPath:                 envString("DB_PATH", "data/runs.db"),
		ServerPort:             envString("SERVER_PORT", "8080"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		OperatorLogin:          envString("OPERATOR_LOGIN", "operator"),
		OperatorPasswordHash:   os.Getenv("OPERATOR_PASSWORD_HASH"),
	}

	var err error
	if cfg.RedisPort, err = envInt("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = envInt("WORKER_COUNT", 7); err != nil {
		return nil, err
	}
	if cfg.JWTExpirationMinutes, err = envInt("JWT_EXPIRATION_MINUTES", 60); err != nil {
		return nil, err
	}
	if cfg.SamplerInterval, err = envMillis("SAMPLER_INTERVAL_MS", 0); err != nil {
		return nil, err
	}
	if cfg.SamplerTargetPID, err = envInt("SAMPLER_TARGET_PID", 0); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = envMillis("POLL_INTERVAL_MS", time.Second); err != nil {
		return nil, err
	}
	if cfg.ReadyTimeout, err = envMillis("READY_TIMEOUT_MS", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReleaseTimeout, err = envMillis("RELEASE_TIMEOUT_MS", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.ResultTimeout, err = envMillis("RESULT_TIMEOUT_MS", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = envMillis("SHUTDOWN_TIMEOUT_MS", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения и их сочетания
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrConfiguration, err)
	}
	if c.QueueBackend == BackendMemory && c.Provisioner != ProvisionerLocal {
		return fmt.Errorf("%w: QUEUE_BACKEND=memory requires PROVISIONER=local", protocol.ErrConfiguration)
	}
	return nil
}

func envString(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s not a number", protocol.ErrConfiguration, key)
	}
	return value, nil
}

func envMillis(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s not a number", protocol.ErrConfiguration, key)
	}
	return time.Duration(value) * time.Millisecond, nil
}
