package app

import (
	"strings"
	"time"

	"github.com/emineral/emineral-backend/internal/platform/envutil"
	"github.com/emineral/emineral-backend/internal/platform/logger"
)

type Config struct {
	Port              string
	JWTSecretKey      string
	AccessTokenTTL    time.Duration
	PublicBaseURL     string
	PassValidityHours int
	CORSOrigins       []string
	Environment       string
	Version           string
}

func LoadConfig(log *logger.Logger) Config {
	accessTokenTTLSeconds := envutil.GetEnvAsInt("ACCESS_TOKEN_TTL", 86400, log)
	return Config{
		Port:              envutil.GetEnv("PORT", "8080", log),
		JWTSecretKey:      envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AccessTokenTTL:    time.Duration(accessTokenTTLSeconds) * time.Second,
		PublicBaseURL:     envutil.GetEnv("APP_PUBLIC_BASE_URL", "http://localhost:8080", log),
		PassValidityHours: envutil.GetEnvAsInt("PASS_VALIDITY_HOURS", 24, log),
		CORSOrigins:       splitOrigins(envutil.GetEnv("CORS_ALLOWED_ORIGINS", "", log)),
		Environment:       envutil.GetEnv("APP_ENV", "development", log),
		Version:           envutil.GetEnv("APP_VERSION", "dev", log),
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
