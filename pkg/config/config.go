// Package config loads the service's runtime configuration from
// environment variables (spec.md §6, SPEC_FULL.md §4.13).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/symbi-labs/ticket-core/pkg/crypto"
	"github.com/symbi-labs/ticket-core/pkg/policypack"
	"gopkg.in/yaml.v3"
)

// Config holds the fully-resolved runtime configuration for the ticket
// service.
type Config struct {
	Port     string
	LogLevel string

	KVBackend   string // "memory" (default), "sqlite", "postgres", "redis"
	DatabaseURL string // sqlite path or postgres DSN, depending on KVBackend
	RedisAddr   string

	RateLimitCapacity float64
	RateLimitRPS      float64
	RetentionDays     int

	ExternalAnchorS3Bucket string
	ExternalAnchorS3Prefix string

	PolicyPacksFile string

	Keys *crypto.KeyStore
}

// Load reads Config from the environment. Missing ED25519 key material is
// not an error: KeyStore degrades to issuing UNSIGNED receipts, matching
// spec.md §4.1's "absent ⇒ UNSIGNED output" contract.
func Load() (*Config, error) {
	keys, err := crypto.LoadKeyStoreFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config: load keys: %w", err)
	}

	cfg := &Config{
		Port:                   getEnvDefault("PORT", "8080"),
		LogLevel:               getEnvDefault("LOG_LEVEL", "INFO"),
		KVBackend:              getEnvDefault("KV_BACKEND", "memory"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		ExternalAnchorS3Bucket: os.Getenv("EXTERNAL_ANCHOR_S3_BUCKET"),
		ExternalAnchorS3Prefix: getEnvDefault("EXTERNAL_ANCHOR_S3_PREFIX", "anchors/"),
		PolicyPacksFile:        os.Getenv("POLICY_PACKS_FILE"),
		Keys:                   keys,
	}

	cfg.RateLimitCapacity, err = getEnvFloatDefault("RATE_LIMIT_CAPACITY", 30)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitRPS, err = getEnvFloatDefault("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, err
	}
	cfg.RetentionDays, err = getEnvIntDefault("RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadPolicyPacks reads and parses the YAML file named by PolicyPacksFile,
// if any, into a policypack.Table. An unset PolicyPacksFile yields an
// empty table, which policypack.Table.Evaluate reports as "no matching
// pack" — callers fall back to their own scope, never an error.
func (c *Config) LoadPolicyPacks() (*policypack.Table, error) {
	if c.PolicyPacksFile == "" {
		return policypack.NewTable(nil), nil
	}
	raw, err := os.ReadFile(c.PolicyPacksFile)
	if err != nil {
		return nil, fmt.Errorf("config: read policy packs file: %w", err)
	}
	var doc struct {
		Packs []policypack.Pack `yaml:"packs"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse policy packs file: %w", err)
	}
	return policypack.NewTable(doc.Packs), nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloatDefault(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func getEnvIntDefault(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}
