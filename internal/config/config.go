package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	ListenAddr string

	DatabaseURL string
	// DatabaseDebug switches the GORM logger from silent to info.
	DatabaseDebug bool

	LogLevel string
	LogJSON  bool

	// KafkaBrokers enables mirroring of tracked events to KafkaTopic.
	// Empty disables the Kafka sink.
	KafkaBrokers []string
	KafkaTopic   string

	// InfluxURL enables writing one point per tracked event. Empty
	// disables the InfluxDB sink.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// DefaultRecentLimit is used by the dashboard when recent_limit is
	// not given on the query string.
	DefaultRecentLimit int

	HealthMessage string
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		ListenAddr:         getenv("APP_LISTEN_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("APP_DATABASE_URL"),
		DatabaseDebug:      getbool("APP_DB_DEBUG", false),
		LogLevel:           getenv("APP_LOG_LEVEL", "info"),
		LogJSON:            getbool("APP_LOG_JSON", true),
		KafkaBrokers:       splitList(os.Getenv("APP_KAFKA_BROKERS")),
		KafkaTopic:         getenv("APP_KAFKA_TOPIC", "activity-events"),
		InfluxURL:          os.Getenv("APP_INFLUX_URL"),
		InfluxToken:        os.Getenv("APP_INFLUX_TOKEN"),
		InfluxOrg:          getenv("APP_INFLUX_ORG", "activityinsight"),
		InfluxBucket:       getenv("APP_INFLUX_BUCKET", "activities"),
		DefaultRecentLimit: 10,
		HealthMessage:      getenv("APP_HEALTH_MESSAGE", "activityinsight is up"),
	}

	if v := os.Getenv("APP_DEFAULT_RECENT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 100 {
			cfg.DefaultRecentLimit = n
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
