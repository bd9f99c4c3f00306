package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Store struct {
		Driver     string `envconfig:"STORE_DRIVER" default:"postgres"`
		PGDSN      string `envconfig:"PG_DSN"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"social_tracker.db"`
	} `envconfig:""`

	Cache struct {
		RedisAddr string        `envconfig:"REDIS_ADDR"`
		TTL       time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	} `envconfig:""`

	BrandsFile string `envconfig:"BRANDS_FILE"`

	Meta struct {
		BaseURL    string        `envconfig:"META_BASE_URL" default:"https://graph.facebook.com"`
		APIVersion string        `envconfig:"META_API_VERSION" default:"v21.0"`
		RPS        float64       `envconfig:"META_RPS" default:"5"`
		Timeout    time.Duration `envconfig:"META_TIMEOUT" default:"15s"`
	} `envconfig:""`

	TikTok struct {
		BaseURL string        `envconfig:"TIKTOK_BASE_URL" default:"https://open.tiktokapis.com/v2"`
		RPS     float64       `envconfig:"TIKTOK_RPS" default:"2"`
		Timeout time.Duration `envconfig:"TIKTOK_TIMEOUT" default:"15s"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Queue struct {
		Driver    string `envconfig:"QUEUE_DRIVER" default:"redis"`
		RabbitURL string `envconfig:"RABBITMQ_URL"`
		Key       string `envconfig:"SYNC_QUEUE_KEY" default:"sync_jobs"`
	} `envconfig:""`

	Schedule struct {
		Followers string `envconfig:"SCHEDULE_FOLLOWERS" default:"@every 15m"`
		Posts     string `envconfig:"SCHEDULE_POSTS" default:"@hourly"`
		TikTok    string `envconfig:"SCHEDULE_TIKTOK" default:"@every 6h"`
		Reports   string `envconfig:"SCHEDULE_REPORTS" default:"0 6 1 * *"`
	} `envconfig:""`

	HistorySinceYear int `envconfig:"HISTORY_SINCE_YEAR" default:"2023"`

	Telegram struct {
		Token        string `envconfig:"TG_BOT_TOKEN"`
		NotifyChatID int64  `envconfig:"TG_NOTIFY_CHAT_ID"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает конфиг из окружения и возвращает ошибку вместо завершения процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
