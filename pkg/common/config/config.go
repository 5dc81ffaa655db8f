package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Mock system services
	EHRBaseURL      string
	LISBaseURL      string
	RISBaseURL      string
	PharmacyBaseURL string
	PASBaseURL      string
	BillingBaseURL  string

	// FHIR service (when running as one of the six systems)
	SystemName string
	SeedFile   string

	// Dataset layout
	DataDir string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string
	RunTopic     string

	// Agent under test
	AgentURL     string
	AgentTimeout time.Duration

	// Harness
	TaskParallelism int
	TaskTimeout     time.Duration
	MaxTurns        int

	// Scoring
	PassThreshold    float64
	RecallGate       float64
	MatchCutoff      float64
	FalseMatchWeight float64
}

func Load() *Config {
	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		EHRBaseURL:      getEnv("EHR_BASE_URL", "http://localhost:8001"),
		LISBaseURL:      getEnv("LIS_BASE_URL", "http://localhost:8002"),
		RISBaseURL:      getEnv("RIS_BASE_URL", "http://localhost:8003"),
		PharmacyBaseURL: getEnv("PHARMACY_BASE_URL", "http://localhost:8005"),
		PASBaseURL:      getEnv("PAS_BASE_URL", "http://localhost:8006"),
		BillingBaseURL:  getEnv("BILLING_BASE_URL", "http://localhost:8007"),

		SystemName: getEnv("SYSTEM_NAME", "ehr"),
		SeedFile:   getEnv("SEED_FILE", ""),

		DataDir: getEnv("DATA_DIR", "data"),

		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "hdhbench"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "hdhbench123"),
		PostgresDB:       getEnv("POSTGRES_DB", "hdhbench"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "hdh-bench"),
		RunTopic:     getEnv("RUN_TOPIC", "benchmark.runs"),

		AgentURL:     getEnv("AGENT_URL", "http://localhost:9000/task"),
		AgentTimeout: getDuration("AGENT_TIMEOUT", 10*time.Minute),

		TaskParallelism: getIntEnv("TASK_PARALLELISM", 3),
		TaskTimeout:     getDuration("TASK_TIMEOUT", 15*time.Minute),
		MaxTurns:        getIntEnv("MAX_TURNS", 20),

		PassThreshold:    getFloatEnv("PASS_THRESHOLD", 0.7),
		RecallGate:       getFloatEnv("RECALL_GATE", 0.9),
		MatchCutoff:      getFloatEnv("MATCH_CUTOFF", 0.8),
		FalseMatchWeight: getFloatEnv("FALSE_MATCH_WEIGHT", 0.5),
	}
	// A zero or negative limit would stall the task pool entirely.
	if cfg.TaskParallelism < 1 {
		cfg.TaskParallelism = 1
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ServiceURLs returns the six system base URLs keyed by system name.
func (c *Config) ServiceURLs() map[string]string {
	return map[string]string{
		"ehr":      c.EHRBaseURL,
		"lis":      c.LISBaseURL,
		"ris":      c.RISBaseURL,
		"pharmacy": c.PharmacyBaseURL,
		"pas":      c.PASBaseURL,
		"billing":  c.BillingBaseURL,
	}
}
