package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-broadcast-bot/internal/adapters/bot"
	"tg-broadcast-bot/internal/adapters/repo"
	"tg-broadcast-bot/internal/adapters/telegram"
	"tg-broadcast-bot/internal/domain"
	"tg-broadcast-bot/internal/infra/cache"
	"tg-broadcast-bot/internal/infra/config"
	"tg-broadcast-bot/internal/infra/db"
	httpinfra "tg-broadcast-bot/internal/infra/http"
	loginfra "tg-broadcast-bot/internal/infra/log"
	"tg-broadcast-bot/internal/infra/metrics"
	"tg-broadcast-bot/internal/usecase/delivery"
	"tg-broadcast-bot/internal/usecase/intake"
	"tg-broadcast-bot/internal/usecase/membership"
)

func main() {
	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv)

	// Ошибки конфигурации — единственный фатальный класс.
	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("TG_BOT_TOKEN не задан")
	}
	if cfg.PGDSN == "" {
		logger.Fatal().Msg("PG_DSN не задан")
	}
	if len(cfg.Admins.IDs) == 0 {
		logger.Fatal().Msg("ADMIN_IDS не заданы")
	}
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("неизвестный часовой пояс")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("нет подключения к БД")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool, loc)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("не удалось инициализировать схему БД")
	}

	var guard domain.TickGuard
	if cfg.RedisAddr != "" {
		guard = cache.NewRedisTickGuard(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	sender := telegram.NewSender(botAPI)

	engine := delivery.NewService(store, store, sender, logger.With().Str("component", "delivery").Logger(), cfg.Broadcast.SendDelay)
	driver := delivery.NewDriver(engine, guard, cfg.Broadcast.TickInterval, loc, logger.With().Str("component", "ticker").Logger())

	intakeUC := intake.NewService(store, loc, cfg.Broadcast.SessionTTL)
	memberUC := membership.NewService(store, sender, cfg.NotifyList(), logger.With().Str("component", "membership").Logger())
	handler := bot.NewHandler(botAPI, logger.With().Str("component", "gateway").Logger(), intakeUC, memberUC, store, cfg.Admins.IDs, loc)

	srv := httpinfra.NewServer(logger, fmt.Sprintf(":%d", cfg.Port))
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен с ошибкой")
		}
	}()
	go handler.Run(ctx)
	go driver.Run(ctx)

	<-ctx.Done()
	logger.Info().Msg("остановка бота")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("не удалось корректно остановить HTTP сервер")
	}
}
