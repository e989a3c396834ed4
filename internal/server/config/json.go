package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pitchside/pitchside/internal/flagx"
	"github.com/pitchside/pitchside/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "168h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	JWTSecret             string         `json:"jwt_secret"`
	EncryptionKey         string         `json:"encryption_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	AllowedOrigins        []string       `json:"allowed_origins"`
	RedisAddr             string         `json:"redis_addr"`
	LeaguesAPIURL         string         `json:"leagues_api_url"`
	LeaguesAPIKey         string         `json:"leagues_api_key"`
	LeaguesCacheTTL       timex.Duration `json:"leagues_cache_ttl"`
	GoogleTokenInfoURL    string         `json:"google_tokeninfo_url"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. Empty JSON fields leave
// the current value in place. Read or parse failures panic, since the
// process cannot run with a half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.JWTSecret != "" {
		config.JWTSecret = c.JWTSecret
	}
	if c.EncryptionKey != "" {
		config.EncryptionKey = c.EncryptionKey
	}
	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	}
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.LeaguesAPIURL != "" {
		config.LeaguesAPIURL = c.LeaguesAPIURL
	}
	if c.LeaguesAPIKey != "" {
		config.LeaguesAPIKey = c.LeaguesAPIKey
	}
	if c.LeaguesCacheTTL.Duration != 0 {
		config.LeaguesCacheTTL = time.Duration(c.LeaguesCacheTTL.Duration)
	}
	if c.GoogleTokenInfoURL != "" {
		config.GoogleTokenInfoURL = c.GoogleTokenInfoURL
	}
}
