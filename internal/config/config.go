// Package config предоставляет структуры и функции для загрузки конфигурации
// сервиса из YAML файла с переопределением через переменные окружения.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// MinSecretLength — минимальная длина ключа подписи токенов в байтах.
const MinSecretLength = 32

// Config общая структура для хранения настроек.
type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer HTTPServer `yaml:"http_server"`
	JWT        JWT        `yaml:"jwt"`
	Storage    Storage    `yaml:"storage"`
	Cache      Cache      `yaml:"cache"`
	RabbitMQ   RabbitMQ   `yaml:"rabbitmq"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	RateLimit  RateLimit  `yaml:"rate_limit"`
	SMTP       SMTP       `yaml:"smtp"`
}

// HTTPServer структура для настройки сервера.
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// JWT — настройки выпуска токенов. Время жизни задается в миллисекундах.
type JWT struct {
	Secret       string `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	ExpirationMS int64  `yaml:"expiration_ms" env:"JWT_EXPIRATION_MS" env-default:"86400000"`
}

// TTL возвращает время жизни токена.
func (j JWT) TTL() time.Duration {
	return time.Duration(j.ExpirationMS) * time.Millisecond
}

// Storage — пути к файлам снимков.
type Storage struct {
	UsersFile         string `yaml:"users_file" env:"USERS_FILE" env-default:"data/users.json"`
	SubscriptionsFile string `yaml:"subscriptions_file" env:"SUBSCRIPTIONS_FILE" env-default:"data/subscriptions.json"`
}

// Cache — подключение к redis. Пустой адрес включает кеш в памяти процесса.
type Cache struct {
	Address  string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env-default:"1h"`
}

// RabbitMQ — подключение к брокеру. Пустой url отключает планировщик напоминаний.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Scheduler — настройки планировщика напоминаний о списаниях.
type Scheduler struct {
	Interval        time.Duration `yaml:"interval" env-default:"1h"`
	NotifyAheadDays int           `yaml:"notify_ahead_days" env-default:"3"`
}

// RateLimit — ограничение частоты запросов к регистрации и входу.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"1"`
	Burst int     `yaml:"burst" env-default:"3"`
}

// SMTP — почтовый сервер для рассылки напоминаний. Нужен только subman-sender.
type SMTP struct {
	Host    string `yaml:"host" env:"SMTP_HOST"`
	Port    string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User    string `yaml:"user" env:"SMTP_USER"`
	Pass    string `yaml:"pass" env:"SMTP_PASS"`
	From    string `yaml:"from" env:"SMTP_FROM"`
	Workers int    `yaml:"workers" env-default:"10"`
}

// Sender возвращает адрес отправителя: From, а если он пуст, то User.
func (s SMTP) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.User
}

// Load читает конфиг из path, применяет переменные окружения и проверяет значения.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает .env (если есть) и конфиг по пути из CONFIG_PATH.
// Любая ошибка завершает процесс.
func MustLoad() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("cannot read .env: %s", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	if len(c.JWT.Secret) < MinSecretLength {
		return fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	}
	if c.JWT.ExpirationMS <= 0 {
		return errors.New("jwt expiration_ms must be positive")
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate_limit rps and burst must be positive")
	}
	if c.Scheduler.Interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}
	if c.SMTP.Workers <= 0 {
		return errors.New("smtp workers must be positive")
	}
	return nil
}

// String возвращает конфиг в читаемом виде без секретов.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"JWT:\n"+
			"  Secret: ***\n"+
			"  TTL: %s\n"+
			"Storage:\n"+
			"  UsersFile: %s\n"+
			"  SubscriptionsFile: %s\n"+
			"Cache:\n"+
			"  Address: %s\n"+
			"  DB: %d\n"+
			"  TTL: %s\n"+
			"RabbitMQ enabled: %t\n"+
			"Scheduler:\n"+
			"  Interval: %s\n"+
			"  NotifyAheadDays: %d\n"+
			"RateLimit: %.2f rps, burst %d\n"+
			"SMTP: %s:%s\n",
		c.Env,
		c.HTTPServer.Address,
		c.HTTPServer.Timeout,
		c.HTTPServer.IdleTimeout,
		c.JWT.TTL(),
		c.Storage.UsersFile,
		c.Storage.SubscriptionsFile,
		c.Cache.Address,
		c.Cache.DB,
		c.Cache.TTL,
		c.RabbitMQ.URL != "",
		c.Scheduler.Interval,
		c.Scheduler.NotifyAheadDays,
		c.RateLimit.RPS,
		c.RateLimit.Burst,
		c.SMTP.Host,
		c.SMTP.Port,
	)
}
