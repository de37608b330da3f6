// Package feasibility scores a property for rainwater harvesting and
// sizes a recharge structure for it.
//
// Estimate is a pure function of its input and the reference tables: no
// clock, no randomness, no shared mutable state. It is safe to call from
// any number of goroutines.
package feasibility

import (
	"math"
	"strconv"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

// Version identifies the scoring formulas.
const Version = "feasibility-1.0"

// Fallbacks for region codes missing from the tables.
const (
	DefaultRainfallMM     = 1000.0
	DefaultTariffPer1000L = 18.0
)

const (
	runoffCoefficient    = 0.85
	collectionEfficiency = 0.90
	costPerCubicMetre    = 2500.0
	maintenanceRate      = 0.03

	minVolume = 5.0
	maxVolume = 20.0
)

// Input bounds. Values outside them are clamped before scoring.
const (
	MinRoofArea    = 10.0
	MaxRoofArea    = 10000.0
	MinOpenSpace   = 0.0
	MaxOpenSpace   = 5000.0
	MinWaterDemand = 100.0
	MaxWaterDemand = 50000.0
)

// Estimate scores input against the built-in reference tables.
func Estimate(input domain.WizardInput) domain.FeasibilityResult {
	return builtin.Estimate(input)
}

// Estimate scores input against t.
func (t Tables) Estimate(input domain.WizardInput) domain.FeasibilityResult {
	rainfall := t.RainfallFor(input.Location.State)
	tariff := t.TariffFor(input.Location.State)

	roofArea := clamp(input.Property.RoofArea, MinRoofArea, MaxRoofArea)
	openSpace := clamp(input.Property.OpenSpace, MinOpenSpace, MaxOpenSpace)
	demand := clamp(input.Requirements.WaterDemand, MinWaterDemand, MaxWaterDemand)

	rainfallScore := clamp(rainfall/1500*100, 0, 100)
	roofAreaScore := math.Min(100, roofArea/200*100)
	soilScore := soilScoreFor(input.Property.PropertyType)
	demandScore := math.Max(20, 100-float64(demand/1000*10))

	// Products are converted explicitly so the compiler cannot fuse them
	// into FMA instructions; results must match across architectures.
	weighted := float64(rainfallScore*0.30) + float64(roofAreaScore*0.25) +
		float64(soilScore*0.25) + float64(demandScore*0.20)
	score := int(roundHalfUp(weighted))

	annualHarvest := int64(roundHalfUp(roofArea * rainfall * runoffCoefficient * collectionEfficiency))

	volume := math.Min(maxVolume, math.Max(minVolume, openSpace*0.4))
	root := math.Sqrt(volume)
	dims := domain.Dimensions{
		Length: int64(roundHalfUp(root * 1.5)),
		Width:  int64(roundHalfUp(root * 1.2)),
		Depth:  int64(roundHalfUp(volume / (root * 1.8))),
		Volume: int64(roundHalfUp(volume)),
	}

	baseCost := volume * costPerCubicMetre
	costs := domain.CostBreakdown{
		Excavation: int64(roundHalfUp(baseCost * 0.35)),
		Piping:     int64(roundHalfUp(baseCost * 0.20)),
		FilterUnit: int64(roundHalfUp(baseCost * 0.30)),
		Labor:      int64(roundHalfUp(baseCost * 0.15)),
	}
	estimatedCost := costs.Total()

	annualSavings := roundHalfUp(float64(annualHarvest) / 1000 * tariff)
	maintenance := float64(float64(estimatedCost) * maintenanceRate)
	savings := domain.ProjectedSavings{
		Year1:  int64(roundHalfUp(annualSavings - maintenance)),
		Year5:  int64(roundHalfUp(float64(annualSavings*1.2) - maintenance)),
		Year10: int64(roundHalfUp(float64(annualSavings*1.8) - maintenance)),
	}

	rec := domain.Recommendation{
		StructureType: structureFor(openSpace),
		Dimensions:    dims,
		EstimatedCost: estimatedCost,
		AnnualHarvest: annualHarvest,
	}
	if savings.Year1 > 0 {
		payback := roundTenth(float64(estimatedCost) / float64(savings.Year1))
		rec.PaybackPeriod = &payback
		rec.PaybackRecoverable = true
	}

	return domain.FeasibilityResult{
		Score: score,
		Grade: GradeFor(score),
		Factors: domain.Factors{
			Rainfall: domain.Factor{
				Score:       int(roundHalfUp(rainfallScore)),
				Status:      ratingStatus(rainfallScore),
				Description: formatNumber(rainfall) + "mm annual average",
			},
			RoofArea: domain.Factor{
				Score:       int(roundHalfUp(roofAreaScore)),
				Status:      ratingStatus(roofAreaScore),
				Description: formatNumber(roofArea) + " sq.m catchment",
			},
			SoilConditions: domain.Factor{
				Score:       int(soilScore),
				Status:      soilStatus(soilScore),
				Description: string(input.Property.PropertyType) + " property type",
			},
			WaterDemand: domain.Factor{
				Score:       int(roundHalfUp(demandScore)),
				Status:      demandStatus(demandScore),
				Description: formatNumber(demand) + "L daily requirement",
			},
		},
		Recommendations:  rec,
		CostBreakdown:    costs,
		ProjectedSavings: savings,
	}
}

// GradeFor maps an overall score onto its grade.
func GradeFor(score int) domain.Grade {
	switch {
	case score >= 80:
		return domain.GradeExcellent
	case score >= 65:
		return domain.GradeGood
	case score >= 50:
		return domain.GradeFair
	default:
		return domain.GradePoor
	}
}

func soilScoreFor(pt domain.PropertyType) float64 {
	switch pt {
	case domain.PropertyResidential:
		return 75
	case domain.PropertyCommercial:
		return 65
	default:
		return 70
	}
}

func structureFor(openSpace float64) domain.StructureType {
	switch {
	case openSpace > 20:
		return domain.StructureRechargePit
	case openSpace > 5:
		return domain.StructureRechargeTrench
	default:
		return domain.StructureInjectionWell
	}
}

// ratingStatus labels the rainfall and roof-area factors.
func ratingStatus(score float64) string {
	switch {
	case score >= 75:
		return "Excellent"
	case score >= 50:
		return "Good"
	default:
		return "Fair"
	}
}

func soilStatus(score float64) string {
	if score >= 75 {
		return "Suitable"
	}
	return "Moderate"
}

// demandStatus is inverted: a high score means low demand.
func demandStatus(score float64) string {
	switch {
	case score >= 75:
		return "Low"
	case score >= 50:
		return "Moderate"
	default:
		return "High"
	}
}

// roundHalfUp rounds to the nearest integer with ties toward +Inf, so
// -2.5 becomes -2. math.Round would give -3.
func roundHalfUp(x float64) float64 {
	f := math.Floor(x)
	if x-f >= 0.5 {
		return f + 1
	}
	return f
}

// roundTenth rounds to one decimal place, ties toward the larger value.
func roundTenth(x float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 1, 64), 64)
	scaled := x * 10
	if scaled-math.Floor(scaled) == 0.5 && scaled/10 == x {
		v = math.Ceil(scaled) / 10
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
