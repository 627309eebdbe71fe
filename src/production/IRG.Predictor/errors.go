package predictor

import (
	"errors"
	"fmt"
)

// ErrModelNotTrained is returned when a forecast is requested without a fitted model.
var ErrModelNotTrained = errors.New("model not trained")

var errNullStatus = errors.New("relay status is null")

// DataFormatError describes one input row that was excluded from the feature set.
type DataFormatError struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("row %d: invalid %s %q: %s", e.Row, e.Column, e.Value, e.Reason)
}

// InsufficientDataError is returned when the usable rows cannot support a train/test split.
type InsufficientDataError struct {
	Rows    int `json:"rows"`
	MinRows int `json:"min_rows"`
	Classes int `json:"classes"`
}

func (e *InsufficientDataError) Error() string {
	if e.Rows < e.MinRows {
		return fmt.Sprintf("insufficient training data: %d usable rows, need at least %d", e.Rows, e.MinRows)
	}
	return fmt.Sprintf("insufficient training data: relay status has %d distinct value(s), need 2", e.Classes)
}
