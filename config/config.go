package config

import (
	"os"
	"strings"
)

// Configuration holds everything the service reads from the environment.
// main.go loads a .env file first (godotenv), so local dev and deploys use
// the same keys.
type Configuration struct {
	Port string

	Database string // "sqlite3" or "postgres"
	DbHost   string
	DbPort   string
	DbUser   string
	DbName   string
	DbPass   string

	MetaAppID        string
	MetaAppSecret    string
	MetaVerifyToken  string
	MetaApiVersion   string
	MetaRedirectBase string // app base URL the OAuth callback redirects back to
	GraphBaseURL     string

	JwtSecret string
}

// Get reads the configuration from the environment with defaults.
// It is cheap enough to call per request; nothing is cached so tests can
// swap values with t.Setenv.
func Get() Configuration {
	c := Configuration{
		Port: getenv("PORT", "8080"),

		Database: getenv("DATABASE", "sqlite3"),
		DbHost:   os.Getenv("DB_HOST"),
		DbPort:   getenv("DB_PORT", "5432"),
		DbUser:   os.Getenv("DB_USER"),
		DbName:   os.Getenv("DB_NAME"),
		DbPass:   os.Getenv("DB_PASS"),

		MetaAppID:        os.Getenv("META_APP_ID"),
		MetaAppSecret:    os.Getenv("META_APP_SECRET"),
		MetaVerifyToken:  os.Getenv("META_VERIFY_TOKEN"),
		MetaApiVersion:   getenv("META_API_VERSION", "v24.0"),
		MetaRedirectBase: getenv("META_REDIRECT_BASE", "http://localhost:3000"),
		GraphBaseURL:     getenv("GRAPH_API_BASE_URL", "https://graph.facebook.com"),

		JwtSecret: getenv("JWT_SECRET", "CHANGE_ME"),
	}
	return c
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
