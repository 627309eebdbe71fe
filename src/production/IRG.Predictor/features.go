package predictor

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
)

const (
	ColumnCollectedAt = "DATA_HORA_COLETA"
	ColumnValue       = "VALOR_COLETA"
	ColumnRelayStatus = "STATUS_RELE"
)

// Cell is a raw table cell. JSON strings, numbers and booleans are all accepted;
// null becomes the empty cell.
type Cell string

func (c *Cell) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*c = ""
	case s == "true":
		*c = "1"
	case s == "false":
		*c = "0"
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*c = Cell(str)
	default:
		*c = Cell(s)
	}
	return nil
}

// Observation is one row of the input table
type Observation struct {
	CollectedAt Cell `json:"DATA_HORA_COLETA"`
	Value       Cell `json:"VALOR_COLETA"`
	RelayStatus Cell `json:"STATUS_RELE"`
}

// ObservationsFromReadings renders stored readings as input rows. Timestamps are
// rendered in loc when it is set, so calendar features follow the local day.
func ObservationsFromReadings(readings []irgmodels.Reading, loc *time.Location) []Observation {
	out := make([]Observation, 0, len(readings))
	for _, r := range readings {
		obs := Observation{
			Value: Cell(strconv.FormatFloat(r.Value, 'f', -1, 64)),
		}
		if !r.CollectedAt.IsZero() {
			ts := r.CollectedAt
			if loc != nil {
				ts = ts.In(loc)
			}
			obs.CollectedAt = Cell(ts.Format(time.RFC3339Nano))
		}
		if r.RelayStatus != nil {
			obs.RelayStatus = Cell(strconv.Itoa(*r.RelayStatus))
		}
		out = append(out, obs)
	}
	return out
}

const numFeatures = 4

// FeatureVector holds the calendar components of a timestamp and the sensor value.
type FeatureVector struct {
	Day   int     `json:"day"`
	Month int     `json:"month"`
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// NewFeatureVector builds the features for a calendar date and a sensor value
func NewFeatureVector(t time.Time, value float64) FeatureVector {
	return FeatureVector{
		Day:   t.Day(),
		Month: int(t.Month()),
		Year:  t.Year(),
		Value: value,
	}
}

func (f FeatureVector) row() [numFeatures]float64 {
	return [numFeatures]float64{float64(f.Day), float64(f.Month), float64(f.Year), f.Value}
}

// Extraction is the result of ExtractFeatures. Features[i] is labelled by Labels[i]
// and came from input row Rows[i].
type Extraction struct {
	Features []FeatureVector
	Labels   []int
	Rows     []int
	Excluded []*DataFormatError
}

// ExtractFeatures derives one FeatureVector per usable row. Rows with an unparseable
// timestamp or value, or a missing/non-binary relay status, are excluded and reported.
// Timestamps without a zone are read in loc (UTC when nil).
func ExtractFeatures(rows []Observation, loc *time.Location) Extraction {
	ex := Extraction{
		Features: make([]FeatureVector, 0, len(rows)),
		Labels:   make([]int, 0, len(rows)),
		Rows:     make([]int, 0, len(rows)),
	}
	for i, obs := range rows {
		ts, err := irgmodels.ParseCollectedAt(string(obs.CollectedAt), loc)
		if err != nil {
			ex.Excluded = append(ex.Excluded, &DataFormatError{Row: i, Column: ColumnCollectedAt, Value: string(obs.CollectedAt), Reason: err.Error()})
			continue
		}
		value, err := irgmodels.ParseValue(string(obs.Value))
		if err != nil {
			ex.Excluded = append(ex.Excluded, &DataFormatError{Row: i, Column: ColumnValue, Value: string(obs.Value), Reason: err.Error()})
			continue
		}
		status, err := irgmodels.ParseRelayStatus(string(obs.RelayStatus))
		if err == nil && status == nil {
			err = errNullStatus
		}
		if err != nil {
			ex.Excluded = append(ex.Excluded, &DataFormatError{Row: i, Column: ColumnRelayStatus, Value: string(obs.RelayStatus), Reason: err.Error()})
			continue
		}

		ex.Features = append(ex.Features, NewFeatureVector(ts, value))
		ex.Labels = append(ex.Labels, *status)
		ex.Rows = append(ex.Rows, i)
	}
	return ex
}
