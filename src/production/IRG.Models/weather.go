package irgmodels

import "time"

// WeatherPoint is one hourly sample from the weather provider
type WeatherPoint struct {
	Time             time.Time `bson:"time" json:"time"`
	TemperatureC     float64   `bson:"temperature_c" json:"temperature_c"`
	RelativeHumidity float64   `bson:"relative_humidity" json:"relative_humidity"`
}

// WeatherSeries is an hourly forecast for one location
type WeatherSeries struct {
	Latitude  float64        `bson:"latitude" json:"latitude"`
	Longitude float64        `bson:"longitude" json:"longitude"`
	Timezone  string         `bson:"timezone" json:"timezone"`
	Source    string         `bson:"source" json:"source"`
	FetchedAt time.Time      `bson:"fetched_at" json:"fetched_at"`
	Points    []WeatherPoint `bson:"points" json:"points"`
}
