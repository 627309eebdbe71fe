package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
	resilience "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Resilience"
)

const sampleForecast = `{
	"latitude": -23.5,
	"longitude": -46.625,
	"timezone": "UTC",
	"hourly": {
		"time": ["2024-03-01T00:00", "2024-03-01T01:00", "2024-03-01T02:00"],
		"temperature_2m": [22.1, null, 21.4],
		"relative_humidity_2m": [80, 82, 85]
	}
}`

func TestClientFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("latitude") != "-23.5505" || q.Get("hourly") != "temperature_2m,relative_humidity_2m" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 5*time.Second, nil)
	series, err := c.Fetch(context.Background(), Query{Latitude: -23.5505, Longitude: -46.6333, Timezone: "UTC"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if series.Latitude != -23.5505 {
		t.Fatalf("expected requested latitude, got %v", series.Latitude)
	}
	if len(series.Points) != 2 {
		t.Fatalf("expected null sample to be skipped, got %d points", len(series.Points))
	}
	p := series.Points[1]
	if p.TemperatureC != 21.4 || p.RelativeHumidity != 85 {
		t.Fatalf("unexpected point %+v", p)
	}
	if want := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC); !p.Time.Equal(want) {
		t.Fatalf("expected %s, got %s", want, p.Time)
	}
}

func TestClientMismatchedArrays(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hourly":{"time":["2024-03-01T00:00"],"temperature_2m":[],"relative_humidity_2m":[1]}}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, time.Second, nil).Fetch(context.Background(), Query{}); err == nil {
		t.Fatalf("expected error for mismatched arrays")
	}
}

func TestClientRetriesServerErrorsOnly(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sampleForecast))
	}))
	defer srv.Close()

	retrier := resilience.NewRetrier(2, time.Millisecond, resilience.NewCircuitBreaker(5, time.Minute))
	if _, err := NewClient(srv.URL, time.Second, retrier).Fetch(context.Background(), Query{}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}

	atomic.StoreInt32(&calls, 0)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "invalid latitude", http.StatusBadRequest)
	}))
	defer bad.Close()

	if _, err := NewClient(bad.URL, time.Second, retrier).Fetch(context.Background(), Query{}); err == nil {
		t.Fatalf("expected error for 400")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls)
	}
}

type fakeFetcher struct {
	series *irgmodels.WeatherSeries
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context, q Query) (*irgmodels.WeatherSeries, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.series, nil
}

type memoryRepo struct {
	snapshots []irgmodels.WeatherSeries
}

func (m *memoryRepo) SaveSnapshot(ctx context.Context, series irgmodels.WeatherSeries) error {
	m.snapshots = append(m.snapshots, series)
	return nil
}

func (m *memoryRepo) LatestSnapshot(ctx context.Context, lat, lon float64) (*irgmodels.WeatherSeries, error) {
	if len(m.snapshots) == 0 {
		return nil, interfaces.ErrSnapshotNotFound
	}
	s := m.snapshots[len(m.snapshots)-1]
	return &s, nil
}

func TestServiceCacheAndFallback(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{series: &irgmodels.WeatherSeries{FetchedAt: now, Source: SourceOpenMeteo}}
	repo := &memoryRepo{}
	svc := NewService(fetcher, repo, Query{}, 30*time.Minute, nil)
	svc.now = func() time.Time { return now }

	snap, err := svc.Current(context.Background(), false)
	if err != nil || snap.Cached {
		t.Fatalf("expected a fresh fetch, got %+v, %v", snap, err)
	}
	if len(repo.snapshots) != 1 {
		t.Fatalf("expected snapshot to be cached")
	}

	now = now.Add(10 * time.Minute)
	snap, err = svc.Current(context.Background(), false)
	if err != nil || !snap.Cached || snap.Stale {
		t.Fatalf("expected cached snapshot, got %+v, %v", snap, err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected no new fetch within TTL, got %d calls", fetcher.calls)
	}

	if _, err := svc.Current(context.Background(), true); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("refresh must bypass the cache")
	}

	now = now.Add(time.Hour)
	fetcher.err = errors.New("offline")
	snap, err = svc.Current(context.Background(), false)
	if err != nil || !snap.Stale {
		t.Fatalf("expected stale snapshot, got %+v, %v", snap, err)
	}

	empty := NewService(fetcher, nil, Query{}, time.Minute, nil)
	if _, err := empty.Current(context.Background(), false); err == nil {
		t.Fatalf("expected error without cache")
	}
}
