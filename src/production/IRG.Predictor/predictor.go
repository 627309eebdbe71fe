// Package predictor learns the irrigation relay status from the calendar date and
// sensor value of historical readings, and labels the coming days with it.
//
// The pipeline is extract -> split -> fit -> score -> forecast. Every call takes
// its full input and returns fresh results; nothing is kept between calls.
package predictor

import (
	"encoding/json"
	"math/rand"
	"time"
)

// Options configures training
type Options struct {
	Seed            int64
	TestFraction    float64
	MinRows         int
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	// Location is used for timestamps that carry no zone.
	Location *time.Location
}

// DefaultOptions mirrors the reference model: seed 42, 80/20 split, 100 fully grown trees.
func DefaultOptions() Options {
	return Options{
		Seed:            42,
		TestFraction:    0.2,
		MinRows:         10,
		Trees:           100,
		MinSamplesSplit: 2,
		Location:        time.UTC,
	}
}

// TrainedModel is a fitted relay-status classifier. It is never persisted.
type TrainedModel struct {
	forest *forest
}

// Predict classifies one feature vector
func (m *TrainedModel) Predict(fv FeatureVector) (int, error) {
	if m == nil || m.forest == nil || len(m.forest.trees) == 0 {
		return 0, ErrModelNotTrained
	}
	return m.forest.predict(fv.row()), nil
}

// TrainingReport summarises one training call
type TrainingReport struct {
	Accuracy     float64            `json:"accuracy"`
	InputRows    int                `json:"input_rows"`
	UsableRows   int                `json:"usable_rows"`
	TrainRows    int                `json:"train_rows"`
	TestRows     int                `json:"test_rows"`
	RelayOnRows  int                `json:"relay_on_rows"`
	RelayOffRows int                `json:"relay_off_rows"`
	Seed         int64              `json:"seed"`
	Trees        int                `json:"trees"`
	Excluded     []*DataFormatError `json:"excluded,omitempty"`
}

// Train extracts features from rows and fits a model on them.
// Excluded rows are listed in the report; on InsufficientDataError they are
// returned alongside the error through the partial report.
func Train(rows []Observation, opts Options) (*TrainedModel, *TrainingReport, error) {
	ex := ExtractFeatures(rows, opts.Location)
	model, report, err := Fit(ex.Features, ex.Labels, opts)
	if report == nil {
		report = &TrainingReport{UsableRows: len(ex.Features), Seed: opts.Seed, Trees: opts.Trees}
	}
	report.InputRows = len(rows)
	report.Excluded = ex.Excluded
	if err != nil {
		return nil, report, err
	}
	return model, report, nil
}

// Fit trains on already extracted features. labels[i] must be 0 or 1.
func Fit(features []FeatureVector, labels []int, opts Options) (*TrainedModel, *TrainingReport, error) {
	on := 0
	for _, l := range labels {
		on += l
	}
	off := len(labels) - on
	classes := 0
	if on > 0 {
		classes++
	}
	if off > 0 {
		classes++
	}

	minRows := opts.MinRows
	if minRows < 2 {
		minRows = 2
	}
	if len(features) < minRows || classes < 2 {
		return nil, nil, &InsufficientDataError{Rows: len(features), MinRows: minRows, Classes: classes}
	}

	trainIdx, testIdx := trainTestSplit(len(features), opts.TestFraction, opts.Seed)

	x := make([]featureRow, len(trainIdx))
	y := make([]int, len(trainIdx))
	for k, i := range trainIdx {
		x[k] = features[i].row()
		y[k] = labels[i]
	}

	trees := opts.Trees
	if trees < 1 {
		trees = 1
	}
	minSplit := opts.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	f := fitForest(x, y, forestParams{
		trees:           trees,
		maxDepth:        opts.MaxDepth,
		minSamplesSplit: minSplit,
	}, opts.Seed)

	correct := 0
	for _, i := range testIdx {
		if f.predict(features[i].row()) == labels[i] {
			correct++
		}
	}

	report := &TrainingReport{
		Accuracy:     float64(correct) / float64(len(testIdx)),
		UsableRows:   len(features),
		TrainRows:    len(trainIdx),
		TestRows:     len(testIdx),
		RelayOnRows:  on,
		RelayOffRows: off,
		Seed:         opts.Seed,
		Trees:        trees,
	}
	return &TrainedModel{forest: f}, report, nil
}

// ForecastDays is the forecast horizon after the reference date; a forecast
// covers ForecastDays+1 calendar days.
const ForecastDays = 7

// ForecastOptions configures the synthetic forward forecast
type ForecastOptions struct {
	ValueMin float64
	ValueMax float64
	// Rand draws the synthetic sensor values. When nil a source seeded with Seed
	// is used, or a time-seeded one when Seed is 0.
	Rand     *rand.Rand
	Seed     int64
}

// DefaultForecastOptions draws values in [10, 50).
func DefaultForecastOptions() ForecastOptions {
	return ForecastOptions{ValueMin: 10, ValueMax: 50}
}

// ForecastRow is the predicted relay status for one calendar day
type ForecastRow struct {
	Date            time.Time `json:"date"`
	SensorValue     float64   `json:"sensor_value"`
	PredictedStatus int       `json:"predicted_status"`
}

// MarshalJSON renders the date as YYYY-MM-DD
func (r ForecastRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date            string  `json:"date"`
		SensorValue     float64 `json:"sensor_value"`
		PredictedStatus int     `json:"predicted_status"`
	}{r.Date.Format("2006-01-02"), r.SensorValue, r.PredictedStatus})
}

// Forecast labels every calendar day from now through now+ForecastDays, in
// now's location, with a sensor value drawn uniformly from [ValueMin, ValueMax).
// The values are noise, not a measured or forecast quantity.
func Forecast(model *TrainedModel, now time.Time, opts ForecastOptions) ([]ForecastRow, error) {
	if model == nil || model.forest == nil || len(model.forest.trees) == 0 {
		return nil, ErrModelNotTrained
	}
	rng := opts.Rand
	if rng == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	span := opts.ValueMax - opts.ValueMin

	y, m, d := now.Date()
	rows := make([]ForecastRow, 0, ForecastDays+1)
	for i := 0; i <= ForecastDays; i++ {
		// calendar arithmetic in UTC has no DST gaps
		civil := time.Date(y, m, d+i, 0, 0, 0, 0, time.UTC)
		value := opts.ValueMin + rng.Float64()*span
		status, err := model.Predict(NewFeatureVector(civil, value))
		if err != nil {
			return nil, err
		}
		rows = append(rows, ForecastRow{Date: startOfDay(civil, now.Location()), SensorValue: value, PredictedStatus: status})
	}
	return rows, nil
}

// startOfDay returns the first instant of civil's calendar date in loc. When
// midnight falls in a DST gap the day starts later.
func startOfDay(civil time.Time, loc *time.Location) time.Time {
	y, m, d := civil.Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	for {
		ty, tm, td := t.Date()
		if ty == y && tm == m && td == d {
			return t
		}
		t = t.Add(time.Hour)
	}
}

// LabelPredictor runs the whole pipeline with fixed settings. It holds no state
// besides its configuration and is safe for concurrent use.
type LabelPredictor struct {
	train    Options
	forecast ForecastOptions
}

// NewLabelPredictor creates a predictor. forecast.Rand is ignored; each run gets
// its own source, seeded with the request's ForecastSeed or else forecast.Seed.
func NewLabelPredictor(train Options, forecast ForecastOptions) *LabelPredictor {
	forecast.Rand = nil
	return &LabelPredictor{train: train, forecast: forecast}
}

// RunRequest carries the per-call parameters
type RunRequest struct {
	Rows          []Observation
	ReferenceDate time.Time
	// Seed overrides the training seed when non-nil
	Seed *int64
	// ForecastSeed seeds the synthetic values; 0 falls back to the predictor's seed
	ForecastSeed int64
}

// Result bundles the model handle, its training report and the forecast
type Result struct {
	Model    *TrainedModel   `json:"-"`
	Report   *TrainingReport `json:"training"`
	Forecast []ForecastRow   `json:"forecast"`
}

// Run trains on req.Rows and forecasts from req.ReferenceDate.
func (p *LabelPredictor) Run(req RunRequest) (*Result, error) {
	opts := p.train
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	model, report, err := Train(req.Rows, opts)
	if err != nil {
		return &Result{Report: report}, err
	}

	fopts := p.forecast
	if req.ForecastSeed != 0 {
		fopts.Seed = req.ForecastSeed
	}
	rows, err := Forecast(model, req.ReferenceDate, fopts)
	if err != nil {
		return &Result{Model: model, Report: report}, err
	}
	return &Result{Model: model, Report: report, Forecast: rows}, nil
}
