package relink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and parses a config file from the given path.
// Supported formats: JSON (.json), YAML (.yaml, .yml).
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: use .json, .yaml, or .yml", ext)
	}

	return &cfg, nil
}

// ValidateConfig validates a Config for correctness.
func ValidateConfig(cfg Config) error {
	// Default to the in-memory store when the driver is omitted, matching
	// runtime behavior.
	driver := cfg.Store.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if strings.TrimSpace(cfg.Store.DSN) == "" {
			return fmt.Errorf("postgres store requires store.dsn")
		}
	case DriverDynamoDB:
		if strings.TrimSpace(cfg.Store.Dynamo.Table) == "" {
			return fmt.Errorf("dynamodb store requires store.dynamo.table")
		}
	default:
		return fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}

	switch cfg.Audit.Driver {
	case "", "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Audit.DSN) == "" {
			return fmt.Errorf("postgres audit log requires audit.dsn")
		}
	default:
		return fmt.Errorf("unknown audit driver: %q", cfg.Audit.Driver)
	}

	return nil
}
