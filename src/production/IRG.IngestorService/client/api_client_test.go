package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCreateReadingsPostsBatch(t *testing.T) {
	t.Parallel()

	var got CreateReadingsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/readings/batch" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(CreateReadingsResponse{Success: true, Inserted: len(got.Readings)})
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", 0, time.Millisecond)
	n, err := c.CreateReadings(context.Background(), []ReadingPayload{
		{Sensor: "Umidade", Value: 41.5},
		{Sensor: "Temperatura", Value: 22},
	})
	if err != nil {
		t.Fatalf("CreateReadings failed: %v", err)
	}
	if n != 2 || len(got.Readings) != 2 || got.Readings[0].Sensor != "Umidade" {
		t.Fatalf("unexpected result: n=%d body=%+v", n, got)
	}
}

func TestCreateReadingsRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"inserted":1}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, 3, time.Millisecond)
	n, err := c.CreateReadings(context.Background(), []ReadingPayload{{Sensor: "Umidade", Value: 1}})
	if err != nil {
		t.Fatalf("CreateReadings failed: %v", err)
	}
	if n != 1 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected success on the third call, got n=%d calls=%d", n, calls)
	}
}

func TestCreateReadingsDoesNotRetryRejections(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"sensor is required"}`))
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL, 3, time.Millisecond)
	if _, err := c.CreateReadings(context.Background(), []ReadingPayload{{Value: 1}}); err == nil {
		t.Fatalf("expected error for rejected batch")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if state := c.GetCircuitBreakerStatus()["state"]; state != "closed" {
		t.Fatalf("expected closed breaker after a rejection, got %v", state)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/live" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewAPIClient(srv.URL, 0, 0).Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}
