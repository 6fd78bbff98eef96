// Package config loads the gex-ingest service's file-backed settings plus
// its environment-sourced credentials.
package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds gex-ingest's tunable settings (spec §6 configuration
// enumeration). Credentials are loaded separately via LoadCredentials.
type Config struct {
	Symbols []string `json:"symbols"`

	Ingestion IngestionConfig `json:"ingestion"`
	Greeks    GreeksConfig    `json:"greeks"`
}

// IngestionConfig holds the per-symbol stream-manager tuning knobs.
type IngestionConfig struct {
	BatchSize                int    `json:"batch_size"`
	TargetExpiration         string `json:"target_expiration"` // "today" or YYYY-MM-DD
	UnderlyingUpdateInterval int    `json:"underlying_update_interval"` // seconds
	MetricsInterval          int    `json:"metrics_interval"`           // seconds
	HeartbeatTimeout         int    `json:"heartbeat_timeout"`          // seconds
	ReconnectDelay           int    `json:"reconnect_delay"`            // seconds
	StrikeProximity          *int   `json:"strike_proximity,omitempty"`
}

// GreeksConfig parameterizes the Black-Scholes calculator and whether
// vendor-supplied Greeks are cross-checked against it.
type GreeksConfig struct {
	RiskFreeRate   float64 `json:"risk_free_rate"`
	DividendYield  float64 `json:"dividend_yield"`
	ValidateGreeks bool    `json:"validate_greeks"`
}

// Credentials holds secrets that never live in the checked-in config file:
// brokerage OAuth credentials from the environment, and database
// credentials from a separate credentials file.
type Credentials struct {
	TradeStationClientID     string
	TradeStationClientSecret string
	TradeStationRefreshToken string
	UseSandbox               bool

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
}

// Load reads and parses the configuration file, applying defaults for any
// zero-valued interval fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if cfg.Ingestion.BatchSize == 0 {
		cfg.Ingestion.BatchSize = 50
	}
	if cfg.Ingestion.TargetExpiration == "" {
		cfg.Ingestion.TargetExpiration = "today"
	}
	if cfg.Ingestion.UnderlyingUpdateInterval == 0 {
		cfg.Ingestion.UnderlyingUpdateInterval = 60
	}
	if cfg.Ingestion.MetricsInterval == 0 {
		cfg.Ingestion.MetricsInterval = 60
	}
	if cfg.Ingestion.HeartbeatTimeout == 0 {
		cfg.Ingestion.HeartbeatTimeout = 90
	}
	if cfg.Ingestion.ReconnectDelay == 0 {
		cfg.Ingestion.ReconnectDelay = 5
	}

	return &cfg, nil
}

// LoadCredentials reads brokerage credentials from the environment and
// database credentials from a separate key=value file (spec §6: "Database
// credentials loaded from a separate file").
func LoadCredentials(dbCredsPath string) (*Credentials, error) {
	creds := &Credentials{
		TradeStationClientID:     os.Getenv("TRADESTATION_CLIENT_ID"),
		TradeStationClientSecret: os.Getenv("TRADESTATION_CLIENT_SECRET"),
		TradeStationRefreshToken: os.Getenv("TRADESTATION_REFRESH_TOKEN"),
		UseSandbox:               isTruthy(os.Getenv("TRADESTATION_USE_SANDBOX")),
	}

	if creds.TradeStationClientID == "" || creds.TradeStationClientSecret == "" || creds.TradeStationRefreshToken == "" {
		return nil, fmt.Errorf("missing TRADESTATION_CLIENT_ID/CLIENT_SECRET/REFRESH_TOKEN")
	}

	kv, err := readKVFile(dbCredsPath)
	if err != nil {
		return nil, fmt.Errorf("read db credentials file: %w", err)
	}

	creds.DBHost = kv["DB_HOST"]
	creds.DBName = kv["DB_NAME"]
	creds.DBUser = kv["DB_USER"]
	creds.DBPassword = kv["DB_PASSWORD"]
	if portStr, ok := kv["DB_PORT"]; ok {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT %q: %w", portStr, err)
		}
		creds.DBPort = port
	} else {
		creds.DBPort = 5432
	}

	if creds.DBHost == "" || creds.DBName == "" || creds.DBUser == "" {
		return nil, fmt.Errorf("db credentials file missing DB_HOST/DB_NAME/DB_USER")
	}

	return creds, nil
}

// DSN builds a Postgres connection string from the loaded credentials.
func (c *Credentials) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func isTruthy(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES":
		return true
	default:
		return false
	}
}

func readKVFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	kv := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		kv[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return kv, scanner.Err()
}
