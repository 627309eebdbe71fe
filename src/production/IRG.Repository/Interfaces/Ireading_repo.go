package interfaces

import (
	"context"
	"errors"
	"time"

	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
)

var (
	ErrReadingNotFound = errors.New("reading not found")
	ErrReadingExists   = errors.New("reading already exists")
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// ReadingQueryParams represents parameters for reading queries
type ReadingQueryParams struct {
	Sensor string
	From   *time.Time
	To     *time.Time
	Limit  int
	Page   int
}

// Normalize applies the default page size and clamps the page bounds
func (p ReadingQueryParams) Normalize() ReadingQueryParams {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

// Offset is the number of rows skipped before the current page
func (p ReadingQueryParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ReadingQueryResult represents the result of a reading query with pagination
type ReadingQueryResult struct {
	Items    []irgmodels.Reading `json:"items"`
	Page     int                 `json:"page"`
	Limit    int                 `json:"limit"`
	NextPage *int                `json:"next_page,omitempty"`
	Total    int64               `json:"total"`
}

// NewReadingQueryResult sets NextPage when a full page was returned
func NewReadingQueryResult(items []irgmodels.Reading, p ReadingQueryParams, total int64) *ReadingQueryResult {
	if items == nil {
		items = []irgmodels.Reading{}
	}
	res := &ReadingQueryResult{Items: items, Page: p.Page, Limit: p.Limit, Total: total}
	if len(items) == p.Limit && int64(p.Offset()+len(items)) < total {
		next := p.Page + 1
		res.NextPage = &next
	}
	return res
}

type ReadingRepository interface {
	// CreateReading stores one reading. A zero ID is generated and written back.
	CreateReading(ctx context.Context, reading *irgmodels.Reading) error
	// CreateReadings stores all readings in one transaction and returns the count.
	CreateReadings(ctx context.Context, readings []irgmodels.Reading) (int, error)

	GetReading(ctx context.Context, id int64) (*irgmodels.Reading, error)
	ListReadings(ctx context.Context, params ReadingQueryParams) (*ReadingQueryResult, error)
	// AllReadings returns every reading in chronological order
	AllReadings(ctx context.Context) ([]irgmodels.Reading, error)

	UpdateReadingValue(ctx context.Context, id int64, value float64) error
	DeleteReading(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
}
