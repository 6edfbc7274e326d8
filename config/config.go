package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var DebugMode = os.Getenv("DEBUG_MODE") == "true"

// Config holds the endpoints and timing knobs of the session engine.
// The server cancels resting orders after 10s of heartbeat silence, so the
// heartbeat interval must stay at or below half that window.
type Config struct {
	ClobRestEndpoint  string
	ClobWssEndpoint   string
	RelayerEndpoint   string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	HeartbeatInterval time.Duration
	KeepAliveInterval time.Duration
	ReconnectDelay    time.Duration
	RequestTimeout    time.Duration
	PromListenAddr    string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil && DebugMode {
		log.Printf("no .env file found, using environment: %s", err)
	}

	return &Config{
		ClobRestEndpoint:  getEnv("CLOB_REST_ENDPOINT", "https://clob.polymarket.com"),
		ClobWssEndpoint:   getEnv("CLOB_WSS_ENDPOINT", "wss://ws-subscriptions-clob.polymarket.com/ws"),
		RelayerEndpoint:   getEnv("RELAYER_ENDPOINT", "https://relayer-v2.polymarket.com"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 5*time.Second),
		KeepAliveInterval: getEnvDuration("KEEP_ALIVE_INTERVAL", 10*time.Second),
		ReconnectDelay:    getEnvDuration("RECONNECT_DELAY", 3*time.Second),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		PromListenAddr:    getEnv("PROM_LISTEN_ADDR", ":8080"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
