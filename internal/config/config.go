package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // GRIDPANEL_DATABASE_URL (required unless Memory)
	Memory      bool   // GRIDPANEL_MEMORY (serve from the in-memory store)
	GRPCAddr    string // GRIDPANEL_GRPC_ADDR (default ":9090")
	HTTPAddr    string // GRIDPANEL_HTTP_ADDR (default ":8080")
	NATSURL     string // GRIDPANEL_NATS_URL (optional, empty = no events)
	AuthToken   string // GRIDPANEL_AUTH_TOKEN (optional, empty = auth disabled)
	GridsFile   string // GRIDPANEL_GRIDS_FILE (default "grids.toml")

	// Session scratch store
	RedisAddr     string        // GRIDPANEL_REDIS_ADDR (optional, empty = in-memory sessions)
	RedisPassword string        // GRIDPANEL_REDIS_PASSWORD
	RedisDB       int           // GRIDPANEL_REDIS_DB (default 0)
	SessionTTL    time.Duration // GRIDPANEL_SESSION_TTL (default 24h)

	// Sync settings
	SyncInterval   time.Duration // GRIDPANEL_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // GRIDPANEL_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // GRIDPANEL_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // GRIDPANEL_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // GRIDPANEL_SYNC_S3_KEY (default "gridpanel/configs.jsonl")
	SyncGitRepo    string        // GRIDPANEL_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // GRIDPANEL_SYNC_GIT_FILE (default "gridpanel-configs.jsonl")
	SyncGitBranch  string        // GRIDPANEL_SYNC_GIT_BRANCH (default "main")
}

// Load reads the configuration from the environment. It does not check that
// a database is configured; call Validate once command-line overrides have
// been applied.
func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:    os.Getenv("GRIDPANEL_DATABASE_URL"),
		GRPCAddr:       envOrDefault("GRIDPANEL_GRPC_ADDR", ":9090"),
		HTTPAddr:       envOrDefault("GRIDPANEL_HTTP_ADDR", ":8080"),
		NATSURL:        os.Getenv("GRIDPANEL_NATS_URL"),
		AuthToken:      os.Getenv("GRIDPANEL_AUTH_TOKEN"),
		GridsFile:      envOrDefault("GRIDPANEL_GRIDS_FILE", "grids.toml"),
		RedisAddr:      os.Getenv("GRIDPANEL_REDIS_ADDR"),
		RedisPassword:  os.Getenv("GRIDPANEL_REDIS_PASSWORD"),
		SyncS3Bucket:   os.Getenv("GRIDPANEL_SYNC_S3_BUCKET"),
		SyncS3Endpoint: os.Getenv("GRIDPANEL_SYNC_S3_ENDPOINT"),
		SyncS3Region:   envOrDefault("GRIDPANEL_SYNC_S3_REGION", "us-east-1"),
		SyncS3Key:      envOrDefault("GRIDPANEL_SYNC_S3_KEY", "gridpanel/configs.jsonl"),
		SyncGitRepo:    os.Getenv("GRIDPANEL_SYNC_GIT_REPO"),
		SyncGitFile:    envOrDefault("GRIDPANEL_SYNC_GIT_FILE", "gridpanel-configs.jsonl"),
		SyncGitBranch:  envOrDefault("GRIDPANEL_SYNC_GIT_BRANCH", "main"),
	}

	if v := os.Getenv("GRIDPANEL_MEMORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("GRIDPANEL_MEMORY: %w", err)
		}
		c.Memory = b
	}

	if v := os.Getenv("GRIDPANEL_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("GRIDPANEL_REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}

	ttl, err := time.ParseDuration(envOrDefault("GRIDPANEL_SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("GRIDPANEL_SESSION_TTL: %w", err)
	}
	c.SessionTTL = ttl

	intervalStr := envOrDefault("GRIDPANEL_SYNC_INTERVAL", "3m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("GRIDPANEL_SYNC_INTERVAL: %w", err)
		}
		c.SyncInterval = d
	}

	return c, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && !c.Memory {
		return fmt.Errorf("GRIDPANEL_DATABASE_URL is required (or run with the in-memory store)")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
