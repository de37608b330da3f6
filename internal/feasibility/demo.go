package feasibility

import "github.com/SaiAnoop/aqua-harvestPro/internal/domain"

// DemoInput returns the fixed sample record used to preview the
// estimator without collecting real input.
func DemoInput() domain.WizardInput {
	return domain.WizardInput{
		Location: domain.Location{
			City:    "Chennai",
			State:   "tamil-nadu",
			Pincode: "600001",
		},
		Property: domain.Property{
			RoofArea:     180,
			PropertyType: domain.PropertyResidential,
			OpenSpace:    50,
			Floors:       2,
		},
		Requirements: domain.Requirements{
			WaterDemand:   500,
			CurrentSource: domain.SourceMunicipal,
			Budget:        45000,
		},
	}
}
