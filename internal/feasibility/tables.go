package feasibility

import (
	"sort"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

// Annual rainfall in mm per region.
var rainfallByRegion = map[string]float64{
	"tamil-nadu":     1200,
	"karnataka":      1150,
	"kerala":         2800,
	"andhra-pradesh": 940,
	"telangana":      890,
	"maharashtra":    1100,
	"gujarat":        850,
	"rajasthan":      650,
}

// Water tariff in currency units per 1000 L per region.
var tariffByRegion = map[string]float64{
	"tamil-nadu":     15,
	"karnataka":      18,
	"kerala":         12,
	"andhra-pradesh": 14,
	"telangana":      16,
	"maharashtra":    22,
	"gujarat":        20,
	"rajasthan":      25,
}

var regionNames = map[string]string{
	"tamil-nadu":     "Tamil Nadu",
	"karnataka":      "Karnataka",
	"kerala":         "Kerala",
	"andhra-pradesh": "Andhra Pradesh",
	"telangana":      "Telangana",
	"maharashtra":    "Maharashtra",
	"gujarat":        "Gujarat",
	"rajasthan":      "Rajasthan",
}

var builtin = Tables{rainfall: rainfallByRegion, tariff: tariffByRegion}

// Tables is an immutable pair of reference tables keyed by region code.
// The zero value has no regions and resolves everything to the defaults.
type Tables struct {
	rainfall map[string]float64
	tariff   map[string]float64
}

// DefaultTables returns the built-in reference tables.
func DefaultTables() Tables {
	return builtin
}

// NewTables copies the given maps into a new Tables.
func NewTables(rainfall, tariff map[string]float64) Tables {
	return Tables{rainfall: copyMap(rainfall), tariff: copyMap(tariff)}
}

// With returns a copy of t where code resolves to the given values.
// Non-positive values leave that column at its previous value.
func (t Tables) With(code string, rainfallMM, tariffPer1000L float64) Tables {
	out := Tables{rainfall: copyMap(t.rainfall), tariff: copyMap(t.tariff)}
	if rainfallMM > 0 {
		out.rainfall[code] = rainfallMM
	}
	if tariffPer1000L > 0 {
		out.tariff[code] = tariffPer1000L
	}
	return out
}

// RainfallFor resolves annual rainfall, falling back to DefaultRainfallMM.
func (t Tables) RainfallFor(code string) float64 {
	if v, ok := t.rainfall[code]; ok && v > 0 {
		return v
	}
	return DefaultRainfallMM
}

// TariffFor resolves the water tariff, falling back to DefaultTariffPer1000L.
func (t Tables) TariffFor(code string) float64 {
	if v, ok := t.tariff[code]; ok && v > 0 {
		return v
	}
	return DefaultTariffPer1000L
}

// Has reports whether code has an entry in either table.
func (t Tables) Has(code string) bool {
	_, r := t.rainfall[code]
	_, w := t.tariff[code]
	return r || w
}

// Region resolves code into a reference row.
func (t Tables) Region(code string) domain.Region {
	return domain.Region{
		Code:           code,
		Name:           RegionName(code),
		RainfallMM:     t.RainfallFor(code),
		TariffPer1000L: t.TariffFor(code),
		Known:          t.Has(code),
	}
}

// Codes returns every region code in t, sorted.
func (t Tables) Codes() []string {
	seen := make(map[string]struct{}, len(t.rainfall))
	for code := range t.rainfall {
		seen[code] = struct{}{}
	}
	for code := range t.tariff {
		seen[code] = struct{}{}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// RegionName returns the display name of a built-in region, or "" for
// codes it does not know.
func RegionName(code string) string {
	return regionNames[code]
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
