package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	StoreBackend     string // "csv" or "postgres"
	CSVStorePath     string
	MappingTablePath string // empty = built-in table
	SearchConfigPath string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	PagesToScrape  int

	ImageRefreshQuota int
	VisualKeys        []string

	GitHubOwner    string
	GitHubRepo     string
	GitHubWorkflow string
	GitHubToken    string

	ChromeBin string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		StoreBackend:     getEnv("STORE_BACKEND", "csv"),
		CSVStorePath:     getEnv("CSV_STORE_PATH", "./data/listings.csv"),
		MappingTablePath: getEnv("MAPPING_TABLE_PATH", ""),
		SearchConfigPath: getEnv("SEARCH_CONFIG_PATH", "./search_config.yaml"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		PagesToScrape:  getEnvInt("PAGES_TO_SCRAPE", 2),

		ImageRefreshQuota: getEnvInt("IMAGE_REFRESH_QUOTA", 25),
		VisualKeys:        getEnvList("VISUAL_KEYS", nil),

		GitHubOwner:    getEnv("GITHUB_REPO_OWNER", ""),
		GitHubRepo:     getEnv("GITHUB_REPO_NAME", ""),
		GitHubWorkflow: getEnv("GITHUB_WORKFLOW_ID", "download-images.yml"),
		GitHubToken:    getEnv("GITHUB_TOKEN", ""),

		ChromeBin: getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
