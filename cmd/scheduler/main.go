package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"social-tracker/internal/app"
	"social-tracker/internal/domain"
	"social-tracker/internal/infra/config"
	applog "social-tracker/internal/infra/log"
	"social-tracker/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось инициализировать приложение")
	}
	defer a.Close()

	syncQueue, closeQueue, err := a.Queue()
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось подключить очередь")
	}
	defer closeQueue()

	p := &producer{
		log:    logger.With().Str("component", "scheduler").Logger(),
		queue:  syncQueue,
		once:   a.Cache,
		brands: a.Brands.Names,
	}

	c := cron.New(cron.WithLocation(time.UTC))
	entries := []struct {
		spec string
		kind domain.SyncKind
	}{
		{cfg.Schedule.Followers, domain.SyncFollowers},
		{cfg.Schedule.Posts, domain.SyncPosts},
		{cfg.Schedule.TikTok, domain.SyncTikTok},
		{cfg.Schedule.Reports, domain.SyncReport},
	}
	for _, e := range entries {
		if e.spec == "" || e.spec == "-" {
			logger.Info().Str("kind", string(e.kind)).Msg("scheduler: расписание отключено")
			continue
		}
		kind := e.kind
		if _, err := c.AddFunc(e.spec, func() { p.Tick(ctx, kind) }); err != nil {
			logger.Fatal().Err(err).Str("spec", e.spec).Str("kind", string(kind)).Msg("scheduler: некорректное расписание")
		}
	}

	logger.Info().Int("entries", len(c.Entries())).Msg("scheduler: запущен")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("scheduler: остановлен")
}
