package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/signal-relay/backend/config"
	"github.com/adwski/signal-relay/backend/metrics"
	httpServer "github.com/adwski/signal-relay/backend/server/http"
	websocketServer "github.com/adwski/signal-relay/backend/server/websocket"
	"github.com/adwski/signal-relay/backend/service"
	store "github.com/adwski/signal-relay/backend/storage/memory"
	sw "github.com/adwski/signal-relay/backend/switch"
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}
	if err = cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	lvl, _ := cfg.Level()

	var out io.Writer = os.Stdout
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	logger = zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	logger.Trace().Msg(spew.Sdump(cfg))

	m := metrics.New()
	svc := service.NewService(service.Config{
		RoomStore: store.NewRoomStore(),
		Directory: store.NewDirectory(),
		Switch:    sw.NewSwitch(&logger, m),
		Metrics:   m,
		Logger:    &logger,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:         &logger,
		RoomService:    svc,
		MetricsHandler: m.Handler(),
		ListenAddr:     cfg.APIListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:         &logger,
		Dispatcher:     svc,
		ListenAddr:     cfg.WSListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxMessageSize: cfg.MaxMessageSize,
		SendQueueSize:  cfg.SendQueueSize,
		PingInterval:   cfg.PingInterval,
		PongWait:       cfg.PongWait,
		WriteTimeout:   cfg.WriteTimeout,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
