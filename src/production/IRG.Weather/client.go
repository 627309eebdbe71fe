// Package weather fetches hourly temperature and humidity from Open-Meteo and
// caches the series in MongoDB.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
	resilience "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Resilience"
)

const (
	SourceOpenMeteo = "open-meteo"

	hourlyTemperature = "temperature_2m"
	hourlyHumidity    = "relative_humidity_2m"
)

// Query selects the location of a forecast
type Query struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Fetcher retrieves a weather series
type Fetcher interface {
	Fetch(ctx context.Context, q Query) (*irgmodels.WeatherSeries, error)
}

// Client talks to the Open-Meteo forecast API
type Client struct {
	baseURL    string
	httpClient *http.Client
	retrier    *resilience.Retrier
	now        func() time.Time
}

// NewClient creates a client. retrier may be nil for a single attempt.
func NewClient(baseURL string, timeout time.Duration, retrier *resilience.Retrier) *Client {
	if retrier == nil {
		retrier = resilience.NewRetrier(0, 0, nil)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retrier,
		now:        time.Now,
	}
}

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m"`
		Humidity    []*float64 `json:"relative_humidity_2m"`
	} `json:"hourly"`
}

// Fetch downloads the hourly series. The returned series carries the requested
// coordinates, not the grid point Open-Meteo snapped them to.
func (c *Client) Fetch(ctx context.Context, q Query) (*irgmodels.WeatherSeries, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	params.Set("hourly", hourlyTemperature+","+hourlyHumidity)
	if q.Timezone != "" {
		params.Set("timezone", q.Timezone)
	}
	endpoint := c.baseURL + "/v1/forecast?" + params.Encode()

	var body forecastResponse
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "irrigation-api-service")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("weather request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("weather API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return resilience.Permanent(err)
			}
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode weather response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return c.toSeries(q, body)
}

func (c *Client) toSeries(q Query, body forecastResponse) (*irgmodels.WeatherSeries, error) {
	h := body.Hourly
	if len(h.Temperature) != len(h.Time) || len(h.Humidity) != len(h.Time) {
		return nil, fmt.Errorf("weather response has mismatched hourly arrays: %d times, %d temperatures, %d humidities",
			len(h.Time), len(h.Temperature), len(h.Humidity))
	}

	tz := body.Timezone
	if tz == "" {
		tz = q.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	series := &irgmodels.WeatherSeries{
		Latitude:  q.Latitude,
		Longitude: q.Longitude,
		Timezone:  tz,
		Source:    SourceOpenMeteo,
		FetchedAt: c.now().UTC(),
		Points:    make([]irgmodels.WeatherPoint, 0, len(h.Time)),
	}
	for i, raw := range h.Time {
		if h.Temperature[i] == nil || h.Humidity[i] == nil {
			continue
		}
		ts, err := time.ParseInLocation("2006-01-02T15:04", raw, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid hourly time %q: %w", raw, err)
		}
		series.Points = append(series.Points, irgmodels.WeatherPoint{
			Time:             ts,
			TemperatureC:     *h.Temperature[i],
			RelativeHumidity: *h.Humidity[i],
		})
	}
	return series, nil
}
