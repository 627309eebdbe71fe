package interfaces

import (
	"context"
	"errors"

	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
)

var ErrSnapshotNotFound = errors.New("weather snapshot not found")

// WeatherRepository caches fetched weather series per location
type WeatherRepository interface {
	SaveSnapshot(ctx context.Context, series irgmodels.WeatherSeries) error
	LatestSnapshot(ctx context.Context, latitude, longitude float64) (*irgmodels.WeatherSeries, error)
}
