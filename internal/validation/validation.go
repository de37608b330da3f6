// Package validation checks intake records field by field before they are
// scored. The estimator itself never validates; it clamps.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

// ErrUnknownStep is returned by ParseStep for names outside the intake flow.
var ErrUnknownStep = errors.New("unknown intake step")

// Step is one page of the intake flow.
type Step string

const (
	StepLocation     Step = "location"
	StepProperty     Step = "property"
	StepRequirements Step = "requirements"
)

// Steps returns the intake steps in the order they are presented.
func Steps() []Step {
	return []Step{StepLocation, StepProperty, StepRequirements}
}

// ParseStep resolves a step name.
func ParseStep(name string) (Step, error) {
	for _, s := range Steps() {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

// FieldErrors maps a dotted field path (e.g. "property.roofArea") to the
// message shown next to that field. One message per field.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	paths := make([]string, 0, len(fe))
	for p := range fe {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		parts = append(parts, p+": "+fe[p])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var pincodeRegex = regexp.MustCompile(`^\d{6}$`)

// messages is keyed by field path, then by the failing tag.
var messages = map[string]map[string]string{
	"location.city":    {"required": "City is required"},
	"location.state":   {"required": "State is required"},
	"location.pincode": {"pincode": "Valid 6-digit pincode required"},
	"property.roofArea": {
		"min": "Minimum 10 sq.m roof area required",
		"max": "Maximum 10,000 sq.m allowed",
	},
	"property.propertyType": {"oneof": "Property type is required"},
	"property.openSpace": {
		"min": "Open space cannot be negative",
		"max": "Maximum 5,000 sq.m allowed",
	},
	"property.floors": {
		"min": "Minimum 1 floor",
		"max": "Maximum 10 floors",
	},
	"requirements.waterDemand": {
		"min": "Minimum 100L daily demand",
		"max": "Maximum 50,000L daily demand",
	},
	"requirements.currentSource": {"oneof": "Current water source is required"},
	"requirements.budget": {
		"min": "Minimum ₹5,000 budget required",
		"max": "Maximum ₹10,00,000 budget",
	},
}

// Validator wraps a configured go-playground validator and turns its
// errors into FieldErrors.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the intake rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("pincode", pincodeValidator)
	return &Validator{validate: v}
}

// Validate checks the whole record. It returns nil when every field passes.
func (v *Validator) Validate(in domain.WizardInput) FieldErrors {
	return v.collect("", v.validate.Struct(in))
}

// ValidateStep checks only the fields belonging to step.
func (v *Validator) ValidateStep(step Step, in domain.WizardInput) FieldErrors {
	var err error
	switch step {
	case StepLocation:
		err = v.validate.Struct(in.Location)
	case StepProperty:
		err = v.validate.Struct(in.Property)
	case StepRequirements:
		err = v.validate.Struct(in.Requirements)
	default:
		return FieldErrors{string(step): ErrUnknownStep.Error()}
	}
	return v.collect(string(step), err)
}

// collect converts validator errors into FieldErrors. Namespaces come back
// as "<Type>.<json path>"; the type segment is replaced with prefix.
func (v *Validator) collect(prefix string, err error) FieldErrors {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		if prefix != "" {
			path = prefix + "." + path
		}
		if _, seen := out[path]; seen {
			continue
		}
		out[path] = messageFor(path, fe.Tag())
	}
	return out
}

func messageFor(path, tag string) string {
	if msg, ok := messages[path][tag]; ok {
		return msg
	}
	return fmt.Sprintf("%s failed %s", path, tag)
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func pincodeValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return pincodeRegex.MatchString(val)
}
