package app

import (
	"github.com/courseloom/courseloom-backend/internal/platform/logger"
	"github.com/courseloom/courseloom-backend/internal/utils"
)

type Config struct {
	JWTSecretKey string
	Port         string
	Environment  string
	Version      string
	MetricsAddr  string
	RedisAddr    string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		JWTSecretKey: utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		Port:         utils.GetEnv("PORT", "8080", log),
		Environment:  utils.GetEnv("APP_ENV", "development", log),
		Version:      utils.GetEnv("APP_VERSION", "dev", log),
		MetricsAddr:  utils.GetEnv("METRICS_ADDR", ":9090", log),
		RedisAddr:    utils.GetEnv("REDIS_ADDR", "", log),
	}
}
