// Package config предоставляет структуры и функции для загрузки конфигурации сервисов.
//
// Значения читаются из yaml-файла (путь в CONFIG_PATH) и могут быть переопределены
// переменными окружения. Перед чтением подгружается .env, если он есть.
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

// Значения env.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config общая структура для хранения настроек.
type Config struct {
	Env                     string     `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string     `yaml:"storage_connection_string" env:"DATABASE_URL"`
	MigrationsPath          string     `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              HTTPServer `yaml:"http_server"`
	JWT                     JWT        `yaml:"jwt"`
	Redis                   Redis      `yaml:"redis"`
	RabbitMQ                RabbitMQ   `yaml:"rabbitmq"`
	YooKassa                YooKassa   `yaml:"yookassa"`
	Course                  Course     `yaml:"course"`
	SMTP                    SMTP       `yaml:"smtp"`
	Telegram                Telegram   `yaml:"telegram"`
	S3                      S3         `yaml:"s3"`
	Files                   Files      `yaml:"files"`
	Reset                   Reset      `yaml:"reset"`
	Scheduler               Scheduler  `yaml:"scheduler"`
	RateLimit               RateLimit  `yaml:"rate_limit"`
}

// HTTPServer настройки HTTP сервера.
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// JWT настройки подписи токенов.
type JWT struct {
	SecretKey string        `yaml:"secret_key" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env-default:"720h"`
}

// Redis настройки подключения к redis. Пустой адрес отключает кэш.
type Redis struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RabbitMQ настройки брокера. Пустой URL означает отправку писем напрямую из API.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// YooKassa настройки платежного шлюза.
type YooKassa struct {
	ShopID        string        `yaml:"shop_id" env:"YUKASSA_SHOP_ID"`
	SecretKey     string        `yaml:"secret_key" env:"YUKASSA_SECRET_KEY"`
	APIURL        string        `yaml:"api_url" env-default:"https://api.yookassa.ru/v3"`
	ReturnURL     string        `yaml:"return_url" env-default:"https://bankrot-kurs.ru/payment/success"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
	TrustWebhooks bool          `yaml:"trust_webhooks" env:"YUKASSA_TRUST_WEBHOOKS"`
}

// Course параметры продаваемого курса.
type Course struct {
	DefaultAmount      float64       `yaml:"default_amount" env-default:"2999"`
	Currency           string        `yaml:"currency" env-default:"RUB"`
	RenewalPeriod      time.Duration `yaml:"renewal_period" env-default:"4320h"`
	PaymentDescription string        `yaml:"payment_description" env-default:"Оплата курса 'Банкротство физических лиц'"`
	ReceiptDescription string        `yaml:"receipt_description" env-default:"Онлайн-курс 'Банкротство физических лиц'"`
	LoginURL           string        `yaml:"login_url" env-default:"https://bankrot-kurs.ru/login"`
}

// SMTP настройки почты.
type SMTP struct {
	Host       string `yaml:"host" env:"SMTP_HOST"`
	Port       int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User       string `yaml:"user" env:"SMTP_USER"`
	Password   string `yaml:"password" env:"SMTP_PASSWORD"`
	AdminEmail string `yaml:"admin_email" env:"ADMIN_EMAIL"`
}

// Telegram настройки бота для напоминаний.
type Telegram struct {
	BotToken    string        `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	APIEndpoint string        `yaml:"api_endpoint" env-default:"https://api.telegram.org/bot%s/%s"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	ChatIDTTL   time.Duration `yaml:"chat_id_ttl" env-default:"720h"`
}

// S3 настройки объектного хранилища.
type S3 struct {
	Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"https://storage.yandexcloud.net"`
	Region        string `yaml:"region" env:"S3_REGION" env-default:"ru-central1"`
	Bucket        string `yaml:"bucket" env:"S3_BUCKET"`
	AccessKey     string `yaml:"access_key" env:"AWS_ACCESS_KEY_ID"`
	SecretKey     string `yaml:"secret_key" env:"AWS_SECRET_ACCESS_KEY"`
	PublicBaseURL string `yaml:"public_base_url" env-default:"https://storage.yandexcloud.net"`
}

// Files настройки хранения файлов курса.
type Files struct {
	Backend string `yaml:"backend" env:"FILES_BACKEND" env-default:"s3"`
	MaxSize int64  `yaml:"max_size" env-default:"52428800"`
}

// Reset настройки восстановления пароля.
type Reset struct {
	TokenTTL time.Duration `yaml:"token_ttl" env-default:"1h"`
	URL      string        `yaml:"url" env-default:"https://bankrot-kurs.ru/reset-password"`
}

// Scheduler интервалы фоновых задач.
type Scheduler struct {
	SweepInterval  time.Duration `yaml:"sweep_interval" env-default:"1h"`
	NotifyInterval time.Duration `yaml:"notify_interval" env-default:"24h"`
}

// RateLimit настройки ограничителя запросов для auth и reset.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"1"`
	Burst int     `yaml:"burst" env-default:"5"`
}

// MustLoad загружает конфиг из файла CONFIG_PATH, завершает процесс при ошибке.
func MustLoad() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("cannot load .env: %s", err)
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

// Load читает конфиг по пути path.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, path)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// PaymentsConfigured сообщает, заданы ли реквизиты магазина.
func (y YooKassa) PaymentsConfigured() bool {
	return y.ShopID != "" && y.SecretKey != ""
}

// Configured сообщает, достаточно ли настроек для отправки писем.
func (s SMTP) Configured() bool {
	return s.Host != "" && s.User != "" && s.Password != "" && s.AdminEmail != ""
}
