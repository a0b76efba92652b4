package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Vault    VaultConfig
	Bank     BankConfig
	Fiscal   FiscalConfig

	// Classification / receipt content tables. Immutable after Load so the
	// classifier and resolver can be constructed once and shared.
	NonTargetCodes  []string
	ExcludedAccount string
	ProductTitles   map[string]string
	DefaultTitle    string
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Enabled=false runs issuance without the advisory lock; the receipts
	// unique index still prevents double issuance.
	Enabled bool
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type VaultConfig struct {
	MasterKey string
}

type BankConfig struct {
	BaseURL string
}

type FiscalConfig struct {
	BaseURL     string
	CashierName string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8041"),
			Env:  getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "fiscal"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_RECEIPT_TOPIC", "fiscal.receipts.issued"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		Vault: VaultConfig{
			MasterKey: os.Getenv("VAULT_MASTER_KEY"),
		},
		Bank: BankConfig{
			BaseURL: getEnv("BANK_API_BASE_URL", "https://acp.privatbank.ua/api"),
		},
		Fiscal: FiscalConfig{
			BaseURL:     getEnv("FISCAL_API_BASE_URL", "https://api.checkbox.ua/api/v1"),
			CashierName: getEnv("FISCAL_CASHIER_NAME", "Касир"),
		},
		NonTargetCodes:  splitCSV(getEnv("CLASSIFIER_NON_TARGET_CODES", "")),
		ExcludedAccount: getEnv("CLASSIFIER_EXCLUDED_ACCOUNT", ""),
		DefaultTitle:    getEnv("PRODUCT_DEFAULT_TITLE", ""),
	}

	if cfg.Vault.MasterKey == "" {
		return nil, fmt.Errorf("VAULT_MASTER_KEY is required")
	}

	if raw := os.Getenv("PRODUCT_TITLES"); raw != "" {
		titles := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &titles); err != nil {
			return nil, fmt.Errorf("invalid PRODUCT_TITLES: %w", err)
		}
		cfg.ProductTitles = titles
	}

	return cfg, nil
}

// DSN builds the postgres connection string for pgxpool.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
