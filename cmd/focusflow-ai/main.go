package main

import (
	"flag"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/focusflow-app/focusflow/internal/config"
	"github.com/focusflow-app/focusflow/internal/pipeline"
	"github.com/focusflow-app/focusflow/internal/provider"
	"github.com/focusflow-app/focusflow/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// AI_CONFIG_ERROR territory: a missing credential or broken
		// config kills the instance rather than failing per request.
		log.Fatalf("configuration error: %v", err)
	}
	setupLogging(cfg)

	client := provider.New(cfg)
	svc, err := pipeline.NewService(pipelineOptions(cfg), client)
	if err != nil {
		log.Fatalf("pipeline setup failed: %v", err)
	}

	if watcher, err := config.Watch(*configPath, func(updated *config.Config) {
		svc.UpdateOptions(pipelineOptions(updated))
	}); err != nil {
		log.WithError(err).Warn("config watcher unavailable")
	} else {
		defer func() { _ = watcher.Close() }()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.WithField("addr", addr).Info("focusflow-ai listening")
	if err := server.New(svc).Router().Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		Timeout:            time.Duration(cfg.Pipeline.TimeoutSeconds) * time.Second,
		Temperature:        cfg.Pipeline.Temperature,
		BreakdownMaxTokens: cfg.Pipeline.BreakdownMaxTokens,
		InsightsMaxTokens:  cfg.Pipeline.InsightsMaxTokens,
	}
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Logging.File != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   true,
		})
	}
}
