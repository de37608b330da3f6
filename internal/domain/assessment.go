package domain

// Assessment wraps a feasibility result with the region it was computed
// against and the subsidies that apply. Assessments are returned to the
// caller and published on the bus; they are never stored.
type Assessment struct {
	ID        string             `json:"id"`
	Input     WizardInput        `json:"input"`
	Result    FeasibilityResult  `json:"result"`
	Region    Region             `json:"region"`
	Subsidies []SubsidyMatch     `json:"subsidies"`
	NetCost   int64              `json:"netCost"`
	Metadata  AssessmentMetadata `json:"metadata"`
}

// AssessmentMetadata contains processing information.
type AssessmentMetadata struct {
	TraceID          string `json:"traceId,omitempty"`
	RegionMs         int64  `json:"regionMs"`
	EstimateMs       int64  `json:"estimateMs"`
	SubsidyMs        int64  `json:"subsidyMs"`
	TotalMs          int64  `json:"totalMs"`
	SchemesChecked   int    `json:"schemesChecked"`
	EstimatorVersion string `json:"estimatorVersion"`
}

// BestSubsidy returns the largest applicable subsidy amount.
func (a *Assessment) BestSubsidy() int64 {
	var best int64
	for _, s := range a.Subsidies {
		if s.Amount > best {
			best = s.Amount
		}
	}
	return best
}
