package main

import (
	"fmt"
	"time"

	"github.com/zulandar/switchyard/internal/alert"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/dispatch"
	"github.com/zulandar/switchyard/internal/events"
	"github.com/zulandar/switchyard/internal/runner"
	"github.com/zulandar/switchyard/internal/store"
	"gorm.io/gorm"
)

// connectFromConfig loads the config and opens the configured database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return cfg, conn, nil
}

// services holds the wired dispatch stack for a command invocation.
type services struct {
	cfg    *config.Config
	secret string
	store  *store.Store
	gate   *dispatch.Gate
	broker *events.Broker
	svc    *dispatch.Service
}

// buildServices wires the store, gate, runner, broker and alert channel into
// a dispatch service from config. The caller owns broker shutdown.
func buildServices(cfg *config.Config, conn *gorm.DB) (*services, error) {
	secret, err := cfg.Dispatch.ResolveSecret()
	if err != nil {
		return nil, err
	}

	st := store.New(conn)
	gate, err := dispatch.NewGate(secret, st)
	if err != nil {
		return nil, err
	}

	notifier, err := alert.FromConfig(cfg.Alerts)
	if err != nil {
		return nil, err
	}

	broker := events.NewBroker()
	svc, err := dispatch.New(dispatch.Opts{
		Store:          st,
		Gate:           gate,
		Runner:         runner.NewHTTP(cfg.Dispatch.RunnerURL, secret),
		Broker:         broker,
		Alerts:         notifier,
		InstanceID:     cfg.Service.InstanceID,
		HandoffTimeout: time.Duration(cfg.Dispatch.HandoffTimeoutSec) * time.Second,
	})
	if err != nil {
		broker.Close()
		return nil, err
	}

	return &services{
		cfg:    cfg,
		secret: secret,
		store:  st,
		gate:   gate,
		broker: broker,
		svc:    svc,
	}, nil
}
