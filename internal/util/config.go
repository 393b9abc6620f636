package util

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultSessionTTL = 30 * 24 * time.Hour

	defaultVerifyCacheTTL = 5 * time.Second

	defaultScanTimeout = 2 * time.Minute

	TokenPartsExpected = 2
	RawVerifierLength  = 32
	JWTLeeWay          = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// TokenConfig controls the three credential windows: short-lived access
// tokens, long-lived refresh tokens and the session row itself.
// VerifyCacheTTL bounds how long a revoked access token may still verify
// when the Redis session cache is enabled.
type TokenConfig struct {
	JwtSecretKey   []byte
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	SessionTTL     time.Duration
	VerifyCacheTTL time.Duration
}

func NewTokenConfig() *TokenConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	return &TokenConfig{
		JwtSecretKey:   []byte(secret),
		AccessTTL:      parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:     parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
		SessionTTL:     parseDurationOrDefault("SESSION_TTL", defaultSessionTTL),
		VerifyCacheTTL: parseDurationOrDefault("VERIFY_CACHE_TTL", defaultVerifyCacheTTL),
	}
}

// ScannerConfig points at the external scan engine. The engine is a black
// box: it receives a URL and returns an issue list.
type ScannerConfig struct {
	EngineURL string
	Timeout   time.Duration
}

func NewScannerConfig() *ScannerConfig {
	return &ScannerConfig{
		EngineURL: os.Getenv("SCAN_ENGINE_URL"),
		Timeout:   parseDurationOrDefault("SCAN_ENGINE_TIMEOUT", defaultScanTimeout),
	}
}

func GetAlertWebhookURL() string {
	return os.Getenv("ALERT_WEBHOOK_URL")
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
