package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"social-tracker/internal/adapters/httpapi"
	"social-tracker/internal/app"
	"social-tracker/internal/infra/config"
	httpinfra "social-tracker/internal/infra/http"
	applog "social-tracker/internal/infra/log"
	"social-tracker/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось инициализировать приложение")
	}
	defer a.Close()

	syncQueue, closeQueue, err := a.Queue()
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось подключить очередь")
	}
	defer closeQueue()

	handler := httpapi.NewHandler(httpapi.Deps{
		Posts:     a.Stats,
		Importer:  a.Ingest,
		Followers: a.Followers,
		Remarks:   a.Store,
		Reports:   a.Reports(),
		Queue:     syncQueue,
		Brands:    a.Brands,
	}, logger)

	srv := httpinfra.NewServer(logger)
	handler.Register(srv.Router)

	if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Error().Err(err).Msg("api: сервер остановлен с ошибкой")
	}
}
