package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	MySQLDSN    string
	RedisAddr   string // empty means in-process feed, no Redis
	JWTSecret   string
	JWTIssuer   string
	JWTValidity time.Duration
}

// Load reads configuration from the environment, after loading a .env file
// when one is present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:    getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/negotiation?parseTime=true"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		JWTSecret:   getenv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:   getenv("JWT_ISSUER", "tradepost"),
		JWTValidity: 24 * time.Hour,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
