// Package domain defines the core interfaces and types for AquaHarvest.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for reference-data persistence.
// Only region overrides and subsidy schemes are stored; assessments are not.
type Repository interface {
	// Region reference overrides
	SaveRegion(ctx context.Context, region *Region) error
	GetRegion(ctx context.Context, code string) (*Region, error)
	ListRegions(ctx context.Context) ([]*Region, error)
	DeleteRegion(ctx context.Context, code string) error

	// Subsidy scheme configuration
	SaveSubsidyScheme(ctx context.Context, scheme *SubsidyScheme) error
	GetSubsidyScheme(ctx context.Context, id string) (*SubsidyScheme, error)
	ListSubsidySchemes(ctx context.Context) ([]*SubsidyScheme, error)
	DeleteSubsidyScheme(ctx context.Context, id string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
