// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveRegion upserts a reference override for a region code.
func (r *SQLRepository) SaveRegion(ctx context.Context, region *domain.Region) error {
	if region == nil || region.Code == "" {
		return fmt.Errorf("%w: region code is required", ErrInvalidInput)
	}
	if region.RainfallMM <= 0 || region.TariffPer1000L <= 0 {
		return fmt.Errorf("%w: rainfall and tariff must be positive", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO regions (code, name, rainfall_mm, tariff_per_1000l, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			rainfall_mm = excluded.rainfall_mm,
			tariff_per_1000l = excluded.tariff_per_1000l,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		region.Code, region.Name, region.RainfallMM, region.TariffPer1000L, now, now,
	)
	if err != nil {
		return err
	}

	region.Overridden = true
	region.UpdatedAt = now
	return nil
}

// GetRegion retrieves the stored override for a region code.
func (r *SQLRepository) GetRegion(ctx context.Context, code string) (*domain.Region, error) {
	query := `
		SELECT code, name, rainfall_mm, tariff_per_1000l, updated_at
		FROM regions
		WHERE code = ?
	`

	region, err := scanRegion(r.db.QueryRowContext(ctx, r.rebind(query), code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return region, nil
}

// ListRegions retrieves every stored override ordered by code.
func (r *SQLRepository) ListRegions(ctx context.Context) ([]*domain.Region, error) {
	query := `
		SELECT code, name, rainfall_mm, tariff_per_1000l, updated_at
		FROM regions
		ORDER BY code
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []*domain.Region
	for rows.Next() {
		region, err := scanRegion(rows)
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}

	return regions, rows.Err()
}

// DeleteRegion removes an override so the code falls back to the built-in
// table.
func (r *SQLRepository) DeleteRegion(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM regions WHERE code = ?`), code)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// SaveSubsidyScheme upserts a subsidy scheme.
func (r *SQLRepository) SaveSubsidyScheme(ctx context.Context, scheme *domain.SubsidyScheme) error {
	if scheme == nil || scheme.ID == "" {
		return fmt.Errorf("%w: scheme id is required", ErrInvalidInput)
	}
	if scheme.Eligibility == "" {
		return fmt.Errorf("%w: eligibility expression is required", ErrInvalidInput)
	}

	enabled := 0
	if scheme.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO subsidy_schemes (
			id, name, authority, description, percent, max_amount,
			eligibility, eligibility_text, deadline, status, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			authority = excluded.authority,
			description = excluded.description,
			percent = excluded.percent,
			max_amount = excluded.max_amount,
			eligibility = excluded.eligibility,
			eligibility_text = excluded.eligibility_text,
			deadline = excluded.deadline,
			status = excluded.status,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		scheme.ID, scheme.Name, scheme.Authority, scheme.Description,
		scheme.Percent, scheme.MaxAmount,
		scheme.Eligibility, scheme.EligibilityText, scheme.Deadline, scheme.Status,
		enabled, now, now,
	)
	if err != nil {
		return err
	}

	if scheme.CreatedAt.IsZero() {
		scheme.CreatedAt = now
	}
	scheme.UpdatedAt = now
	return nil
}

// GetSubsidyScheme retrieves an enabled scheme by ID.
func (r *SQLRepository) GetSubsidyScheme(ctx context.Context, id string) (*domain.SubsidyScheme, error) {
	query := `
		SELECT id, name, authority, description, percent, max_amount,
			   eligibility, eligibility_text, deadline, status, enabled, created_at, updated_at
		FROM subsidy_schemes
		WHERE id = ? AND enabled = 1
	`

	scheme, err := scanScheme(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return scheme, nil
}

// ListSubsidySchemes retrieves all enabled schemes ordered by name.
func (r *SQLRepository) ListSubsidySchemes(ctx context.Context) ([]*domain.SubsidyScheme, error) {
	query := `
		SELECT id, name, authority, description, percent, max_amount,
			   eligibility, eligibility_text, deadline, status, enabled, created_at, updated_at
		FROM subsidy_schemes
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schemes []*domain.SubsidyScheme
	for rows.Next() {
		scheme, err := scanScheme(rows)
		if err != nil {
			return nil, err
		}
		schemes = append(schemes, scheme)
	}

	return schemes, rows.Err()
}

// DeleteSubsidyScheme soft-deletes a scheme by setting enabled = 0.
func (r *SQLRepository) DeleteSubsidyScheme(ctx context.Context, id string) error {
	query := `
		UPDATE subsidy_schemes
		SET enabled = 0, updated_at = ?
		WHERE id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegion(row scanner) (*domain.Region, error) {
	var region domain.Region
	var name sql.NullString

	if err := row.Scan(
		&region.Code, &name, &region.RainfallMM, &region.TariffPer1000L, &region.UpdatedAt,
	); err != nil {
		return nil, err
	}

	region.Name = name.String
	region.Overridden = true
	return &region, nil
}

func scanScheme(row scanner) (*domain.SubsidyScheme, error) {
	var s domain.SubsidyScheme
	var description, eligibilityText, deadline, status sql.NullString
	var enabled int

	if err := row.Scan(
		&s.ID, &s.Name, &s.Authority, &description, &s.Percent, &s.MaxAmount,
		&s.Eligibility, &eligibilityText, &deadline, &status, &enabled,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	s.Description = description.String
	s.EligibilityText = eligibilityText.String
	s.Deadline = deadline.String
	s.Status = status.String
	s.Enabled = enabled == 1
	return &s, nil
}

func expectAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
