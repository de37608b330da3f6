package domain

// Grade is the qualitative band of an overall feasibility score.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
)

// StructureType is the recommended recharge structure.
type StructureType string

const (
	StructureRechargePit    StructureType = "Recharge Pit"
	StructureRechargeTrench StructureType = "Recharge Trench"
	StructureInjectionWell  StructureType = "Injection Well"
)

// FeasibilityResult is the full output of one estimate. It is a value:
// nothing in it is shared with the input or with other results.
type FeasibilityResult struct {
	Score            int              `json:"score"`
	Grade            Grade            `json:"grade"`
	Factors          Factors          `json:"factors"`
	Recommendations  Recommendation   `json:"recommendations"`
	CostBreakdown    CostBreakdown    `json:"costBreakdown"`
	ProjectedSavings ProjectedSavings `json:"projectedSavings"`
}

// Factors holds the four weighted sub-scores.
type Factors struct {
	Rainfall       Factor `json:"rainfall"`
	RoofArea       Factor `json:"roofArea"`
	SoilConditions Factor `json:"soilConditions"`
	WaterDemand    Factor `json:"waterDemand"`
}

// Factor is one sub-score with its label and a description that embeds
// the raw value it was computed from.
type Factor struct {
	Score       int    `json:"score"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

// Recommendation describes the suggested recharge structure.
//
// PaybackPeriod is nil when first-year net savings are zero or negative:
// the installation cost is then not recoverable within the projection
// horizon and PaybackRecoverable is false.
type Recommendation struct {
	StructureType      StructureType `json:"structureType"`
	Dimensions         Dimensions    `json:"dimensions"`
	EstimatedCost      int64         `json:"estimatedCost"`
	AnnualHarvest      int64         `json:"annualHarvest"`
	PaybackPeriod      *float64      `json:"paybackPeriod"`
	PaybackRecoverable bool          `json:"paybackRecoverable"`
}

// Dimensions are in metres (volume in cubic metres). Each is rounded on
// its own, so Length*Width*Depth need not equal Volume.
type Dimensions struct {
	Length int64 `json:"length"`
	Width  int64 `json:"width"`
	Depth  int64 `json:"depth"`
	Volume int64 `json:"volume"`
}

// CostBreakdown splits the installation cost. The estimated cost is
// always the sum of these parts.
type CostBreakdown struct {
	Excavation int64 `json:"excavation"`
	Piping     int64 `json:"piping"`
	FilterUnit int64 `json:"filterUnit"`
	Labor      int64 `json:"labor"`
}

// Total sums the four components.
func (c CostBreakdown) Total() int64 {
	return c.Excavation + c.Piping + c.FilterUnit + c.Labor
}

// ProjectedSavings are net annual savings after maintenance.
type ProjectedSavings struct {
	Year1  int64 `json:"year1"`
	Year5  int64 `json:"year5"`
	Year10 int64 `json:"year10"`
}
