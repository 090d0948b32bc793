package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию процесса рассылки.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Asia/Tashkent"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token string `envconfig:"TG_BOT_TOKEN"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Admins struct {
		// IDs — операторы, которым разрешено планировать публикации.
		IDs []int64 `envconfig:"ADMIN_IDS"`
		// NotifyIDs — кто получает служебные уведомления о членстве.
		// Пустой список означает «все операторы из ADMIN_IDS».
		NotifyIDs []int64 `envconfig:"NOTIFY_IDS"`
	} `envconfig:""`

	Broadcast struct {
		TickInterval time.Duration `envconfig:"BROADCAST_TICK_INTERVAL" default:"1m"`
		SendDelay    time.Duration `envconfig:"BROADCAST_SEND_DELAY" default:"500ms"`
		SessionTTL   time.Duration `envconfig:"INTAKE_SESSION_TTL" default:"10m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// NotifyList возвращает итоговый список получателей служебных уведомлений.
func (c AppConfig) NotifyList() []int64 {
	if len(c.Admins.NotifyIDs) > 0 {
		return c.Admins.NotifyIDs
	}
	return c.Admins.IDs
}
