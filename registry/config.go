package registry

import (
	"os"
	"strconv"

	"github.com/CAD97/tracing/slotpool"
)

type Config struct {
	PoolCapacity  int
	LogLevel      string
	StatsdAddress string
}

func GetConfig() Config {
	return Config{
		PoolCapacity:  getEnvInt("TRACING_POOL_CAPACITY", slotpool.DefaultMaxSlots),
		LogLevel:      getEnv("TRACING_LOG_LEVEL", "disabled"),
		StatsdAddress: getEnv("TRACING_STATSD_ADDRESS", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
