package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/orrn/todoprint/internal/api"
	"github.com/orrn/todoprint/internal/config"
	"github.com/orrn/todoprint/internal/core"
	"github.com/orrn/todoprint/internal/db"
	"github.com/orrn/todoprint/internal/motivation"
	"github.com/orrn/todoprint/internal/power"
	"github.com/orrn/todoprint/internal/printer"
)

func main() {
	configPath := flag.String("config", "todoprint.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)

	store, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	var powerCtrl power.Controller
	var mqttCtrl *power.MQTTController
	if cfg.Power.Enabled {
		mqttCtrl, err = power.NewMQTT(cfg.Power, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize power controller")
		}
		powerCtrl = mqttCtrl
	}

	var motivator motivation.Provider = motivation.Static{}
	if cfg.Motivation.Enabled && cfg.Motivation.APIKey != "" {
		motivator = motivation.NewOpenAI(cfg.Motivation, log)
	}

	transport := printer.NewFallback(printer.Strategies(cfg.Printer))
	gateway := core.NewGateway(transport, powerCtrl, motivator, core.GatewayConfig{
		PowerWait:   cfg.Power.Wait,
		IdleTimeout: cfg.Power.IdleTimeout,
		Language:    cfg.Language,
	}, log)

	scheduler := core.NewScheduler(store, gateway, cfg.Queue, log)
	service := core.NewService(store, gateway, scheduler, cfg.Queue, log)

	service.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(service, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown error")
	}

	// Let any in-flight delivery finish, then cancel timers and release
	// the printer before closing the store.
	service.Cleanup()
	if mqttCtrl != nil {
		mqttCtrl.Cleanup()
	}

	log.Info().Msg("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.Format == "text" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	return log
}
