package config

import (
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	authConfig "github.com/iurnickita/fuelcredit/internal/auth/config"
	handlerConfig "github.com/iurnickita/fuelcredit/internal/handler/config"
	loggerConfig "github.com/iurnickita/fuelcredit/internal/logger/config"
	serviceConfig "github.com/iurnickita/fuelcredit/internal/service/config"
	storeConfig "github.com/iurnickita/fuelcredit/internal/store/config"
)

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
	Auth    authConfig.Config
}

const (
	defaultServerAddr = "localhost:8080"
	defaultLogLevel   = "info"
	defaultSecretKey  = "fuelcredit-dev-secret"
	defaultTokenTTL   = 24 * time.Hour
	defaultCodePrefix = "TT"
)

// GetConfig собирает параметры: .env (если есть), флаги, затем переменные окружения.
// Переменные окружения имеют приоритет над флагами.
func GetConfig() Config {
	_ = godotenv.Load()
	return load(flag.CommandLine, os.Args[1:], os.LookupEnv)
}

func load(fs *flag.FlagSet, args []string, lookupEnv func(string) (string, bool)) Config {
	var cfg Config

	fs.StringVar(&cfg.Handler.ServerAddr, "a", defaultServerAddr, "server address")
	fs.StringVar(&cfg.Store.DBDsn, "d", "", "database DSN (postgres://...), empty for in-memory store")
	fs.StringVar(&cfg.Logger.LogLevel, "l", defaultLogLevel, "log level")
	fs.StringVar(&cfg.Auth.SecretKey, "k", defaultSecretKey, "token signing key")
	fs.DurationVar(&cfg.Auth.TokenTTL, "m", defaultTokenTTL, "token lifetime")
	fs.StringVar(&cfg.Service.ClientCodePrefix, "p", defaultCodePrefix, "client code prefix")
	fs.Parse(args)

	if envRunAddr, ok := lookupEnv("RUN_ADDRESS"); ok && envRunAddr != "" {
		cfg.Handler.ServerAddr = envRunAddr
	}
	if envDBDsn, ok := lookupEnv("DATABASE_URI"); ok && envDBDsn != "" {
		cfg.Store.DBDsn = envDBDsn
	}
	if envLogLevel, ok := lookupEnv("LOG_LEVEL"); ok && envLogLevel != "" {
		cfg.Logger.LogLevel = envLogLevel
	}
	if envSecretKey, ok := lookupEnv("SECRET_KEY"); ok && envSecretKey != "" {
		cfg.Auth.SecretKey = envSecretKey
	}
	if envTokenTTL, ok := lookupEnv("TOKEN_TTL"); ok {
		if ttl, err := time.ParseDuration(envTokenTTL); err == nil {
			cfg.Auth.TokenTTL = ttl
		}
	}
	if envCodePrefix, ok := lookupEnv("CLIENT_CODE_PREFIX"); ok && envCodePrefix != "" {
		cfg.Service.ClientCodePrefix = envCodePrefix
	}

	return cfg
}
