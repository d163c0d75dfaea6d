package main

import (
	"log"

	"github.com/iurnickita/fuelcredit/internal/auth"
	"github.com/iurnickita/fuelcredit/internal/config"
	"github.com/iurnickita/fuelcredit/internal/handler"
	"github.com/iurnickita/fuelcredit/internal/logger"
	"github.com/iurnickita/fuelcredit/internal/service"
	"github.com/iurnickita/fuelcredit/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.GetConfig()

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Store.DBDsn == "" {
		zaplog.Warn("DATABASE_URI is empty, using in-memory store")
	}

	auth := auth.NewAuth(cfg.Auth)
	service := service.NewService(cfg.Service, store, zaplog)

	return handler.Serve(cfg.Handler, auth, service, zaplog)
}
