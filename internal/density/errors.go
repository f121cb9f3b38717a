package density

import (
	"errors"
	"fmt"
)

// EmptyInputError reports a FeatureSet with no usable geometry.
type EmptyInputError struct {
	Reason string
}

func (e *EmptyInputError) Error() string {
	if e.Reason == "" {
		return "density: empty input"
	}
	return "density: empty input: " + e.Reason
}

// InvalidParameterError reports a spacing, radius or K that is out of range.
type InvalidParameterError struct {
	Param string
	Value float64
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("density: invalid %s: %v", e.Param, e.Value)
}

// ProjectionMismatchError reports features and grid carried in different
// coordinate frames, or a frame that is not planar.
type ProjectionMismatchError struct {
	Features Frame
	Grid     Frame
}

func (e *ProjectionMismatchError) Error() string {
	if e.Features == e.Grid {
		return fmt.Sprintf("density: frame %s is not a planar projected frame", e.Features)
	}
	return fmt.Sprintf("density: projection mismatch: features in %s, grid in %s", e.Features, e.Grid)
}

func invalidParam(name string, v float64) *InvalidParameterError {
	return &InvalidParameterError{Param: name, Value: v}
}

// IsEmptyInput returns true if err (or any error in its chain) is an EmptyInputError.
func IsEmptyInput(err error) bool {
	var e *EmptyInputError
	return errors.As(err, &e)
}

// IsInvalidParameter returns true if err (or any error in its chain) is an InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var e *InvalidParameterError
	return errors.As(err, &e)
}

// IsProjectionMismatch returns true if err (or any error in its chain) is a ProjectionMismatchError.
func IsProjectionMismatch(err error) bool {
	var e *ProjectionMismatchError
	return errors.As(err, &e)
}
