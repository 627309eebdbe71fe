package irgingestor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	config "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Config"
	"gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.IngestorService/client"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
)

func TestSensorFromTopic(t *testing.T) {
	t.Parallel()

	sensor, err := SensorFromTopic("irrigation/sensors/Umidade")
	if err != nil || sensor != "Umidade" {
		t.Fatalf("expected Umidade, got %q (%v)", sensor, err)
	}
	for _, topic := range []string{"irrigation/sensors", "irrigation/sensors/", "sensors/pi/1/x", "irrigation/actuators/Rele", "irrigation/sensors/a/b"} {
		if _, err := SensorFromTopic(topic); !errors.Is(err, ErrInvalidTopic) {
			t.Fatalf("expected ErrInvalidTopic for %q, got %v", topic, err)
		}
	}
}

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	received := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	r, err := DecodeMessage("Umidade", []byte(`{"valor_coleta": 35.5, "status_rele": 1, "motivo_acionamento": "solo seco"}`), received)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if r.Sensor != "Umidade" || r.Value != 35.5 || r.RelayStatus == nil || *r.RelayStatus != 1 {
		t.Fatalf("unexpected reading: %+v", r)
	}
	if r.CollectedAt != "2024-03-01T10:00:00Z" {
		t.Fatalf("expected receive time as timestamp, got %s", r.CollectedAt)
	}

	r, err = DecodeMessage("Umidade", []byte(`{"valor_coleta": 12, "data_hora_coleta": "02/03/2024 08:30"}`), received)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if r.CollectedAt != "2024-03-02T08:30:00Z" {
		t.Fatalf("unexpected timestamp: %s", r.CollectedAt)
	}

	for _, payload := range []string{`not json`, `{}`, `{"valor_coleta": 1, "status_rele": 2}`, `{"valor_coleta": 1, "data_hora_coleta": "ontem"}`} {
		if _, err := DecodeMessage("Umidade", []byte(payload), received); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("expected ErrInvalidPayload for %s, got %v", payload, err)
		}
	}
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]client.ReadingPayload
}

func (s *recordingSink) CreateReadings(ctx context.Context, readings []client.ReadingPayload) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]client.ReadingPayload(nil), readings...))
	return len(readings), nil
}

func (s *recordingSink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.batches))
	for i, b := range s.batches {
		out[i] = len(b)
	}
	return out
}

func TestBatchWriterFlushesBySizeAndOnStop(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	cfg := &config.IngestorConfig{Batch: config.BatchConfig{Size: 2, Window: time.Hour}}
	ing := New(cfg, sink, logger.Nop())
	ing.startWriter(context.Background())

	ing.handle("irrigation/sensors/Umidade", []byte(`{"valor_coleta": 1}`))
	ing.handle("irrigation/sensors/Umidade", []byte(`{"valor_coleta": 2}`))
	ing.handle("irrigation/sensors/Temperatura", []byte(`{"valor_coleta": 3}`))
	ing.handle("bad/topic", []byte(`{"valor_coleta": 4}`))
	ing.handle("irrigation/sensors/Umidade", []byte(`{}`))

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.sizes()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ing.Stop()

	sizes := sink.sizes()
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Fatalf("expected batches of 2 and 1, got %v", sizes)
	}
}

func TestBatchWriterFlushesOnWindow(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	cfg := &config.IngestorConfig{Batch: config.BatchConfig{Size: 100, Window: 20 * time.Millisecond}}
	ing := New(cfg, sink, logger.Nop())
	ing.startWriter(context.Background())
	defer ing.Stop()

	ing.handle("irrigation/sensors/Umidade", []byte(`{"valor_coleta": 1}`))

	deadline := time.Now().Add(2 * time.Second)
	for len(sink.sizes()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sizes := sink.sizes(); len(sizes) != 1 || sizes[0] != 1 {
		t.Fatalf("expected one window flush, got %v", sizes)
	}
}
