package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Chain    ChainConfig
	Matcher  MatcherConfig
	Watcher  WatcherConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// ChainConfig holds the RPC endpoint, the attestation contract and the
// backend signer identity.
type ChainConfig struct {
	RPCURL           string
	ChainID          int64
	ContractAddress  string
	SignerPrivateKey string
	// SignatureDeadline bounds how long a signed authorization stays
	// submittable.
	SignatureDeadline time.Duration
	// SubmitTimeout bounds the outbound transaction call.
	SubmitTimeout time.Duration
}

// MatcherConfig holds matcher and reaper scheduling
type MatcherConfig struct {
	Interval       time.Duration
	ReaperInterval time.Duration
}

// WatcherConfig holds chain-watcher scheduling and chunking
type WatcherConfig struct {
	WatcherID string
	Interval  time.Duration
	// StartBlock seeds the cursor on very first run (contract deploy
	// block). Zero means a missing cursor is fatal.
	StartBlock     uint64
	InitialChunk   uint64
	MinChunk       uint64
	MaxChunk       uint64
	// ConfirmWindow is the plausibility window for tying an on-chain
	// event back to an optimistic connection row.
	ConfirmWindow time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "together"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		Chain: ChainConfig{
			RPCURL:            getEnv("CHAIN_RPC_URL", "https://worldchain-mainnet.g.alchemy.com/v2/demo"),
			ChainID:           int64(getEnvAsInt("CHAIN_ID", 480)),
			ContractAddress:   getEnv("TOGETHER_CONTRACT_ADDRESS", ""),
			SignerPrivateKey:  getEnv("SIGNER_PRIVATE_KEY", ""),
			SignatureDeadline: getEnvAsDuration("SIGNATURE_DEADLINE", 10*time.Minute),
			SubmitTimeout:     getEnvAsDuration("SUBMIT_TIMEOUT", 30*time.Second),
		},
		Matcher: MatcherConfig{
			Interval:       getEnvAsDuration("MATCHER_INTERVAL", 5*time.Second),
			ReaperInterval: getEnvAsDuration("REAPER_INTERVAL", 30*time.Second),
		},
		Watcher: WatcherConfig{
			WatcherID:     getEnv("WATCHER_ID", "attestation_watcher"),
			Interval:      getEnvAsDuration("WATCHER_INTERVAL", 30*time.Second),
			StartBlock:    uint64(getEnvAsInt("WATCHER_START_BLOCK", 0)),
			InitialChunk:  uint64(getEnvAsInt("WATCHER_INITIAL_CHUNK", 500)),
			MinChunk:      uint64(getEnvAsInt("WATCHER_MIN_CHUNK", 125)),
			MaxChunk:      uint64(getEnvAsInt("WATCHER_MAX_CHUNK", 4000)),
			ConfirmWindow: getEnvAsDuration("WATCHER_CONFIRM_WINDOW", 30*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
