package domain

import "time"

// Region is one row of the reference tables: annual rainfall and the
// water tariff for a region code.
type Region struct {
	Code           string    `json:"code"`
	Name           string    `json:"name,omitempty"`
	RainfallMM     float64   `json:"rainfallMm"`
	TariffPer1000L float64   `json:"tariffPer1000L"`
	Known          bool      `json:"known"`
	Overridden     bool      `json:"overridden"`
	UpdatedAt      time.Time `json:"updatedAt,omitzero"`
}

// DataSources records where the reference values for a region come from.
type DataSources struct {
	Region      string          `json:"region"`
	Rainfall    DataSourceValue `json:"rainfall"`
	Groundwater DataSourceText  `json:"groundwater"`
	WaterRates  DataSourceValue `json:"waterRates"`
}

// DataSourceValue is a numeric reference value with its provenance.
type DataSourceValue struct {
	Source      string  `json:"source"`
	LastUpdated string  `json:"lastUpdated"`
	Value       float64 `json:"value"`
}

// DataSourceText is a qualitative reference value with its provenance.
type DataSourceText struct {
	Source      string `json:"source"`
	LastUpdated string `json:"lastUpdated"`
	Status      string `json:"status"`
}
