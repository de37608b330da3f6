package repository

// Schema definitions for the AquaHarvest database.
// Compatible with both SQLite and PostgreSQL.

// schemaRegions holds operator overrides of the built-in reference tables.
// A region with no row here resolves from the built-in table.
const schemaRegions = `
CREATE TABLE IF NOT EXISTS regions (
    code TEXT PRIMARY KEY,
    name TEXT,
    rainfall_mm REAL NOT NULL,
    tariff_per_1000l REAL NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaSubsidySchemes = `
CREATE TABLE IF NOT EXISTS subsidy_schemes (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    authority TEXT NOT NULL,
    description TEXT,
    percent REAL NOT NULL,
    max_amount INTEGER NOT NULL,
    eligibility TEXT NOT NULL,
    eligibility_text TEXT,
    deadline TEXT,
    status TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subsidy_schemes_enabled ON subsidy_schemes(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRegions,
		schemaSubsidySchemes,
	}
}
