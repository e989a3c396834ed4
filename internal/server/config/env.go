package config

import (
	"os"
	"strings"
)

// parseEnv overlays configuration values from environment variables.
// Secrets (JWT secret, encryption key, API key) are normally supplied this
// way in deployed environments. Unset variables leave the current value in
// place.
func parseEnv(config *Config) {
	if v := os.Getenv("ADDRESS"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.JWTSecret = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		config.EncryptionKey = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		origins := make([]string, 0)
		for _, origin := range strings.Split(v, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			config.AllowedOrigins = origins
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.RedisAddr = v
	}
	if v := os.Getenv("LEAGUES_API_URL"); v != "" {
		config.LeaguesAPIURL = v
	}
	if v := os.Getenv("LEAGUES_API_KEY"); v != "" {
		config.LeaguesAPIKey = v
	}
	if v := os.Getenv("GOOGLE_TOKENINFO_URL"); v != "" {
		config.GoogleTokenInfoURL = v
	}
}
