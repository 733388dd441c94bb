// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DatabaseConfig holds the connection settings for the hub database that
// records managed hosts and their deletion timestamps.
type DatabaseConfig struct {
	// Driver is the database/sql driver name: "postgres" for a production
	// hub, "sqlite3" for local development and tests.
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the driver-specific data source name
	// (e.g. "host=/var/cfengine/state/pg/tmp dbname=cfdb sslmode=disable").
	DSN string `json:"dsn" yaml:"dsn"`

	// RetentionDays is the minimum age, in days, of a host's deletion
	// timestamp before its key may be purged (default 30).
	RetentionDays int `json:"retention_days" yaml:"retention_days"`
}

// PurgeConfig holds settings for the external key-removal command.
type PurgeConfig struct {
	// CFKeyPath is the path to the cf-key binary (default "cf-key",
	// resolved on PATH).
	CFKeyPath string `json:"cf_key_path" yaml:"cf_key_path"`
}

// Config is the top-level configuration for a cleanup run.
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	Purge    PurgeConfig    `json:"purge" yaml:"purge"`
}

// DefaultRetentionDays is used when RetentionDays is zero or negative.
const DefaultRetentionDays = 30
