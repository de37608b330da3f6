package subsidies

import (
	"context"
	"fmt"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

// BuiltinSchemes returns the schemes seeded into an empty store.
func BuiltinSchemes() []*domain.SubsidyScheme {
	return []*domain.SubsidyScheme{
		{
			ID:              "pm-kusum",
			Name:            "PM-KUSUM Scheme",
			Authority:       "Ministry of New & Renewable Energy",
			Description:     "Subsidies for solar water pumping systems integrated with rainwater harvesting",
			Percent:         30,
			MaxAmount:       150000,
			Eligibility:     `property_type != "residential"`,
			EligibilityText: "Farmers and water user associations",
			Deadline:        "March 2025",
			Status:          domain.SchemeAvailable,
			Enabled:         true,
		},
		{
			ID:              "mgnrega",
			Name:            "MGNREGA Water Conservation",
			Authority:       "Ministry of Rural Development",
			Description:     "Complete funding for community rainwater harvesting structures",
			Percent:         100,
			MaxAmount:       75000,
			Eligibility:     `current_source != "municipal" && budget <= 50000.0`,
			EligibilityText: "Rural households below poverty line",
			Deadline:        "Ongoing",
			Status:          domain.SchemeActive,
			Enabled:         true,
		},
		{
			ID:              "tn-rwh",
			Name:            "State RWH Incentive (Tamil Nadu)",
			Authority:       "Tamil Nadu Water Supply Department",
			Description:     "State subsidy for residential rooftop rainwater harvesting systems",
			Percent:         50,
			MaxAmount:       25000,
			Eligibility:     `state == "tamil-nadu" && property_type == "residential"`,
			EligibilityText: "Urban residential buildings",
			Deadline:        "December 2024",
			Status:          domain.SchemeAvailable,
			Enabled:         true,
		},
		{
			ID:              "amrut",
			Name:            "Atal Mission for Rejuvenation",
			Authority:       "Ministry of Housing & Urban Affairs",
			Description:     "Support for urban water harvesting and groundwater recharge projects",
			Percent:         35,
			MaxAmount:       200000,
			Eligibility:     `property_type in ["institutional", "commercial"]`,
			EligibilityText: "Urban local bodies and institutions",
			Deadline:        "February 2025",
			Status:          domain.SchemeProcessing,
			Enabled:         true,
		},
	}
}

// EnsureSchemes seeds the built-in schemes when repo holds no enabled
// scheme, and returns the enabled schemes.
func EnsureSchemes(ctx context.Context, repo domain.Repository) ([]*domain.SubsidyScheme, error) {
	schemes, err := repo.ListSubsidySchemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subsidy schemes: %w", err)
	}
	if len(schemes) > 0 {
		return schemes, nil
	}

	for _, s := range BuiltinSchemes() {
		if err := repo.SaveSubsidyScheme(ctx, s); err != nil {
			return nil, fmt.Errorf("failed to seed scheme %s: %w", s.ID, err)
		}
	}
	return repo.ListSubsidySchemes(ctx)
}
