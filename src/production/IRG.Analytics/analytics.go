// Package analytics turns stored readings and weather series into chart data.
package analytics

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
)

const (
	DefaultXSensor = "Temperatura"
	DefaultYSensor = "Umidade"
)

// SensorSummary aggregates the readings of one sensor
type SensorSummary struct {
	Sensor    string    `json:"sensor"`
	Count     int       `json:"count"`
	Mean      float64   `json:"mean"`
	Median    float64   `json:"median"`
	StdDev    float64   `json:"std_dev"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	RelayOn   int       `json:"relay_on"`
	RelayOff  int       `json:"relay_off"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SeriesPoint is one value of a time series
type SeriesPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// PairPoint holds the values of two variables at the same instant
type PairPoint struct {
	Time time.Time `json:"time"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// Correlation is a paired series with its Pearson coefficient. Pearson is nil
// with fewer than two pairs or when either side is constant.
type Correlation struct {
	X       string      `json:"x"`
	Y       string      `json:"y"`
	Pairs   []PairPoint `json:"pairs"`
	Pearson *float64    `json:"pearson,omitempty"`
}

// SensorSummaries returns one summary per sensor, sorted by sensor name
func SensorSummaries(readings []irgmodels.Reading) []SensorSummary {
	groups := make(map[string][]irgmodels.Reading)
	for _, r := range readings {
		groups[r.SensorName] = append(groups[r.SensorName], r)
	}

	out := make([]SensorSummary, 0, len(groups))
	for sensor, rs := range groups {
		values := make(stats.Float64Data, 0, len(rs))
		s := SensorSummary{Sensor: sensor, Count: len(rs), FirstSeen: rs[0].CollectedAt, LastSeen: rs[0].CollectedAt}
		for _, r := range rs {
			values = append(values, r.Value)
			if r.CollectedAt.Before(s.FirstSeen) {
				s.FirstSeen = r.CollectedAt
			}
			if r.CollectedAt.After(s.LastSeen) {
				s.LastSeen = r.CollectedAt
			}
			if r.RelayStatus != nil {
				if *r.RelayStatus == irgmodels.RelayOn {
					s.RelayOn++
				} else {
					s.RelayOff++
				}
			}
		}
		// values is never empty here, so the errors can only be nil
		s.Mean, _ = values.Mean()
		s.Median, _ = values.Median()
		s.StdDev, _ = values.StandardDeviation()
		s.Min, _ = values.Min()
		s.Max, _ = values.Max()
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Sensor < out[j].Sensor })
	return out
}

// SensorSeries returns the readings of one sensor in chronological order
func SensorSeries(readings []irgmodels.Reading, sensor string) []SeriesPoint {
	out := make([]SeriesPoint, 0)
	for _, r := range readings {
		if r.SensorName == sensor {
			out = append(out, SeriesPoint{Time: r.CollectedAt, Value: r.Value})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Correlate pivots the readings by timestamp, averaging duplicates, and pairs
// the xSensor and ySensor values recorded at the same instant.
func Correlate(readings []irgmodels.Reading, xSensor, ySensor string) Correlation {
	if xSensor == "" {
		xSensor = DefaultXSensor
	}
	if ySensor == "" {
		ySensor = DefaultYSensor
	}

	type cellAgg struct {
		sum float64
		n   int
	}
	type rowAgg struct {
		t    time.Time
		x, y cellAgg
	}
	pivot := make(map[int64]*rowAgg)
	for _, r := range readings {
		var target func(*rowAgg) *cellAgg
		switch r.SensorName {
		case xSensor:
			target = func(a *rowAgg) *cellAgg { return &a.x }
		case ySensor:
			target = func(a *rowAgg) *cellAgg { return &a.y }
		default:
			continue
		}
		key := r.CollectedAt.UnixNano()
		row, ok := pivot[key]
		if !ok {
			row = &rowAgg{t: r.CollectedAt}
			pivot[key] = row
		}
		c := target(row)
		c.sum += r.Value
		c.n++
	}

	pairs := make([]PairPoint, 0, len(pivot))
	for _, row := range pivot {
		if row.x.n == 0 || row.y.n == 0 {
			continue
		}
		pairs = append(pairs, PairPoint{Time: row.t, X: row.x.sum / float64(row.x.n), Y: row.y.sum / float64(row.y.n)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Time.Before(pairs[j].Time) })

	return Correlation{X: xSensor, Y: ySensor, Pairs: pairs, Pearson: pearson(pairs)}
}

// WeatherCorrelation pairs temperature and humidity of a weather series
func WeatherCorrelation(series *irgmodels.WeatherSeries) Correlation {
	c := Correlation{X: "temperature_c", Y: "relative_humidity", Pairs: make([]PairPoint, 0)}
	if series == nil {
		return c
	}
	for _, p := range series.Points {
		c.Pairs = append(c.Pairs, PairPoint{Time: p.Time, X: p.TemperatureC, Y: p.RelativeHumidity})
	}
	sort.SliceStable(c.Pairs, func(i, j int) bool { return c.Pairs[i].Time.Before(c.Pairs[j].Time) })
	c.Pearson = pearson(c.Pairs)
	return c
}

func pearson(pairs []PairPoint) *float64 {
	if len(pairs) < 2 {
		return nil
	}
	xs := make(stats.Float64Data, len(pairs))
	ys := make(stats.Float64Data, len(pairs))
	for i, p := range pairs {
		xs[i], ys[i] = p.X, p.Y
	}
	sx, _ := xs.StandardDeviation()
	sy, _ := ys.StandardDeviation()
	if sx == 0 || sy == 0 {
		return nil
	}
	r, err := stats.Pearson(xs, ys)
	if err != nil {
		return nil
	}
	return &r
}
