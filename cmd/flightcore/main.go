package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"flightcore/internal/config"
	"flightcore/internal/web"
)

func main() {
	var configPath string
	var summarizePath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.StringVar(&summarizePath, "summarize-imu-log", "", "Replay an IMU log through both attitude filters, print a summary and exit")
	flag.Parse()

	logs := web.NewLogBuffer(2000)
	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(os.Stderr, logs))
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if summarizePath != "" {
		if err := printLogSummary(os.Stdout, summarizePath); err != nil {
			logger.WithError(err).Fatal("imu log summary failed")
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.WithError(err).Fatal("config load failed")
	}
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(cfg, logger, logs)
	if err != nil {
		logger.WithError(err).Fatal("startup failed")
	}
	defer rt.Close()

	rt.log.WithField("config", configPath).Info("flightcore starting")
	if err := rt.Start(ctx); err != nil {
		rt.log.WithError(err).Error("start failed")
		return
	}

	<-ctx.Done()
	rt.log.Info("flightcore stopping")
}
