package domain

// PropertyType classifies the building the harvesting system serves.
type PropertyType string

const (
	PropertyResidential   PropertyType = "residential"
	PropertyCommercial    PropertyType = "commercial"
	PropertyIndustrial    PropertyType = "industrial"
	PropertyInstitutional PropertyType = "institutional"
)

// WaterSource is the property's current supply.
type WaterSource string

const (
	SourceMunicipal WaterSource = "municipal"
	SourceBorewell  WaterSource = "borewell"
	SourceTanker    WaterSource = "tanker"
	SourceMixed     WaterSource = "mixed"
)

// WizardInput is the record assembled by the three-step intake flow.
// JSON names match the web client's form model; State is the region code
// used for the rainfall and tariff lookups.
type WizardInput struct {
	Location     Location     `json:"location"`
	Property     Property     `json:"property"`
	Requirements Requirements `json:"requirements"`
}

// Location is step one of the intake flow.
type Location struct {
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Pincode string `json:"pincode" validate:"pincode"`
}

// Property is step two of the intake flow.
type Property struct {
	RoofArea     float64      `json:"roofArea" validate:"min=10,max=10000"`
	PropertyType PropertyType `json:"propertyType" validate:"oneof=residential commercial industrial institutional"`
	OpenSpace    float64      `json:"openSpace" validate:"min=0,max=5000"`
	Floors       int          `json:"floors" validate:"min=1,max=10"`
}

// Requirements is step three of the intake flow.
type Requirements struct {
	WaterDemand   float64     `json:"waterDemand" validate:"min=100,max=50000"`
	CurrentSource WaterSource `json:"currentSource" validate:"oneof=municipal borewell tanker mixed"`
	Budget        float64     `json:"budget" validate:"min=5000,max=1000000"`
}
