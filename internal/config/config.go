package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// RPC settings
	RPCUrl string

	// Pool catalog (empty = built-in fallback URL)
	CatalogURL string

	// Price benchmark endpoints
	BenchmarkPairURL  string
	BenchmarkTokenURL string
	BenchmarkPair     string

	// Feed refresh intervals
	PriceInterval   time.Duration
	BalanceInterval time.Duration
	HistoryInterval time.Duration

	// Redis settings (ledger)
	RedisAddr string

	// ClickHouse settings (swap archive, optional)
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Fee payer
	FeePayerKey string

	// API server
	APIAddr string
	APIKey  string
	DevMode bool
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl: getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),

		// Catalog
		CatalogURL: getEnv("POOL_CATALOG_URL", ""),

		// Benchmark
		BenchmarkPairURL:  getEnv("BENCHMARK_PAIR_URL", "https://api.dexscreener.com/latest/dex/pairs/solana"),
		BenchmarkTokenURL: getEnv("BENCHMARK_TOKEN_URL", "https://api.dexscreener.com/latest/dex/tokens"),
		BenchmarkPair:     getEnv("BENCHMARK_PAIR_ADDRESS", ""),

		// Feeds
		PriceInterval:   getDurationEnv("PRICE_INTERVAL", 30*time.Second),
		BalanceInterval: getDurationEnv("BALANCE_INTERVAL", 20*time.Second),
		HistoryInterval: getDurationEnv("HISTORY_INTERVAL", 45*time.Second),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "swapdesk"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		// Fee payer
		FeePayerKey: getEnv("FEE_PAYER_PRIVATE_KEY", ""),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),
	}
}

func (c *Config) Validate() error {
	if c.RPCUrl == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
