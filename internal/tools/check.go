package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"budgetpulse/internal/budget"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// "year" accepts a four-digit year or the projection's unknown marker
	_ = v.RegisterValidation("year", func(fl validator.FieldLevel) bool {
		return validYear(fl.Field().String())
	})
	return v
}

func validYear(s string) bool {
	if s == budget.UnknownYear {
		return true
	}
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Outcome tells whether a producer's output was used as is
type Outcome struct {
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

func fallback(err error) Outcome {
	return Outcome{Fallback: true, Reason: err.Error()}
}

type itemSchema struct {
	Name            string   `json:"name" validate:"required"`
	Amount          *float64 `json:"amount" validate:"required"`
	ProjectedAmount *float64 `json:"projected_amount" validate:"required"`
}

type indicatorSchema struct {
	Year string   `json:"year" validate:"omitempty,year"`
	Rate *float64 `json:"rate" validate:"required_with=Year"`
}

type projectionSchema struct {
	Revenue     []itemSchema    `json:"projected_revenue" validate:"required,dive"`
	Expenditure []itemSchema    `json:"projected_expenditure" validate:"required,dive"`
	Inflation   indicatorSchema `json:"projected_inflation"`
	GDPGrowth   indicatorSchema `json:"projected_gdp_growth"`
}

type riskSchema struct {
	Level string   `json:"risk_level" validate:"required,oneof=low medium high unknown"`
	Score *float64 `json:"risk_score" validate:"required,gte=0,lte=1"`
}

type slabSchema struct {
	Slab  int    `json:"slab" validate:"min=1,max=3"`
	Range string `json:"range" validate:"required"`
	Rate  string `json:"rate" validate:"required,oneof=10% 20% 30%"`
}

var slabRates = []string{"10%", "20%", "30%"}

// decodeStrict unmarshals data into v, rejecting unknown fields, and runs
// the validate tags
func decodeStrict(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty output")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed output: %w", err)
	}
	if err := validateAny(v); err != nil {
		return err
	}
	return nil
}

func validateAny(v any) error {
	var err error
	if rv := reflect.Indirect(reflect.ValueOf(v)); rv.Kind() == reflect.Slice {
		err = validate.Var(rv.Interface(), "dive")
	} else {
		err = validate.Struct(v)
	}
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("field %s failed %s validation", fe.Namespace(), fe.Tag())
	}
	return err
}

// CheckProjection accepts a projection produced outside the engine when it
// matches the projection schema, and recomputes it from dataset otherwise
func CheckProjection(produced []byte, dataset budget.RawDataset) (budget.Projection, Outcome) {
	var schema projectionSchema
	if err := decodeStrict(produced, &schema); err != nil {
		return budget.Project(dataset), fallback(err)
	}

	var p budget.Projection
	if err := json.Unmarshal(produced, &p); err != nil {
		return budget.Project(dataset), fallback(err)
	}
	return p, Outcome{}
}

// CheckRisk accepts a produced risk assessment when it matches the schema
// and its level agrees with its score. Otherwise it scores projection.
func CheckRisk(produced []byte, projection budget.Projection) (budget.RiskAssessment, Outcome) {
	var schema riskSchema
	if err := decodeLoose(produced, &schema); err != nil {
		return budget.AssessRisk(projection), fallback(err)
	}

	level := budget.RiskLevel(schema.Level)
	if level != budget.RiskUnknown {
		if want := budget.CategorizeScore(*schema.Score); want != level {
			err := fmt.Errorf("risk level %s does not match score %g (%s)", level, *schema.Score, want)
			return budget.AssessRisk(projection), fallback(err)
		}
	}

	var a budget.RiskAssessment
	if err := json.Unmarshal(produced, &a); err != nil {
		return budget.AssessRisk(projection), fallback(err)
	}
	return a, Outcome{}
}

// CheckTaxSlabs accepts produced tax slabs when they form the three
// ordered brackets, or none. Otherwise it derives them from projection.
func CheckTaxSlabs(produced []byte, projection budget.Projection) ([]budget.TaxSlab, Outcome) {
	var schema []slabSchema
	if err := decodeLoose(produced, &schema); err != nil {
		return budget.GenerateTaxSlabs(projection), fallback(err)
	}

	if len(schema) != 0 && len(schema) != len(slabRates) {
		err := fmt.Errorf("expected %d tax slabs, got %d", len(slabRates), len(schema))
		return budget.GenerateTaxSlabs(projection), fallback(err)
	}
	for i, s := range schema {
		if s.Slab != i+1 || s.Rate != slabRates[i] {
			err := fmt.Errorf("tax slab %d out of order", i+1)
			return budget.GenerateTaxSlabs(projection), fallback(err)
		}
	}

	var slabs []budget.TaxSlab
	if err := json.Unmarshal(produced, &slabs); err != nil {
		return budget.GenerateTaxSlabs(projection), fallback(err)
	}
	return slabs, Outcome{}
}

// decodeLoose is decodeStrict without the unknown field check, for outputs
// that carry optional detail beyond the schema
func decodeLoose(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty output")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed output: %w", err)
	}
	return validateAny(v)
}
