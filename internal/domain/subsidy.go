package domain

import "time"

// SubsidyScheme is a government incentive that can offset installation
// cost. Eligibility is a CEL expression evaluated against the intake
// record and the feasibility result.
type SubsidyScheme struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Authority       string  `json:"authority"`
	Description     string  `json:"description,omitempty"`
	Percent         float64 `json:"percent"`   // share of estimated cost, 0-100
	MaxAmount       int64   `json:"maxAmount"` // cap in currency units
	Eligibility     string  `json:"eligibility"`
	EligibilityText string  `json:"eligibilityText,omitempty"`
	Deadline        string  `json:"deadline,omitempty"`
	Status          string  `json:"status,omitempty"`
	Enabled         bool    `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// SubsidyMatch is a scheme the applicant qualifies for.
type SubsidyMatch struct {
	SchemeID  string  `json:"schemeId"`
	Name      string  `json:"name"`
	Authority string  `json:"authority"`
	Percent   float64 `json:"percent"`
	Amount    int64   `json:"amount"`
}

// Scheme statuses shown to applicants.
const (
	SchemeAvailable  = "Available"
	SchemeActive     = "Active"
	SchemeProcessing = "Processing"
)
