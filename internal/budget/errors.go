package budget

import (
	"errors"
	"fmt"
)

// ErrInvalidDataset is matched by every ValidationError via errors.Is
var ErrInvalidDataset = errors.New("invalid dataset")

// Validation failure reasons
const (
	ReasonMissingSection = "missing_section"
	ReasonNotList        = "not_list"
	ReasonNotObject      = "not_object"
	ReasonMissingField   = "missing_field"
	ReasonWrongType      = "wrong_type"
)

// ValidationError describes the first schema violation found in a dataset
type ValidationError struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrInvalidDataset) true for validation errors
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDataset
}

func missingSection(section string) *ValidationError {
	return &ValidationError{
		Section: section,
		Index:   -1,
		Field:   section,
		Reason:  ReasonMissingSection,
		Message: fmt.Sprintf("missing required field '%s'", section),
	}
}

func notList(section string) *ValidationError {
	return &ValidationError{
		Section: section,
		Index:   -1,
		Field:   section,
		Reason:  ReasonNotList,
		Message: fmt.Sprintf("field '%s' should be a list", section),
	}
}

func notObject(section string, index int) *ValidationError {
	return &ValidationError{
		Section: section,
		Index:   index,
		Reason:  ReasonNotObject,
		Message: fmt.Sprintf("item %d in '%s' is not a JSON object", index, section),
	}
}

func missingField(section string, index int, field string) *ValidationError {
	return &ValidationError{
		Section: section,
		Index:   index,
		Field:   field,
		Reason:  ReasonMissingField,
		Message: fmt.Sprintf("missing field '%s' in item %d of '%s'", field, index, section),
	}
}

func wrongType(section string, index int, field, want string) *ValidationError {
	return &ValidationError{
		Section: section,
		Index:   index,
		Field:   field,
		Reason:  ReasonWrongType,
		Message: fmt.Sprintf("field '%s' in item %d of '%s' must be %s", field, index, section, want),
	}
}

// InsufficientDataError reports a rate series with fewer than two usable
// points. It is informational: Project falls back to the mean and never fails.
type InsufficientDataError struct {
	Section     string
	ValidPoints int
}

// Error implements the error interface
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for regression in '%s': %d valid point(s), using mean", e.Section, e.ValidPoints)
}
