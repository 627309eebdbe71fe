package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	importer "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Importer"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
	predictor "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Predictor"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
	weather "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Weather"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memRepo is an in-memory ReadingRepository
type memRepo struct {
	mu     sync.Mutex
	rows   map[int64]irgmodels.Reading
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[int64]irgmodels.Reading), nextID: 1}
}

func (m *memRepo) Ping(ctx context.Context) error { return nil }

func (m *memRepo) insert(r *irgmodels.Reading) error {
	if r.ID == 0 {
		r.ID = m.nextID
	}
	if _, ok := m.rows[r.ID]; ok {
		return interfaces.ErrReadingExists
	}
	m.rows[r.ID] = *r
	if r.ID >= m.nextID {
		m.nextID = r.ID + 1
	}
	return nil
}

func (m *memRepo) CreateReading(ctx context.Context, r *irgmodels.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(r)
}

func (m *memRepo) CreateReadings(ctx context.Context, rs []irgmodels.Reading) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range rs {
		if err := m.insert(&rs[i]); err != nil {
			return 0, err
		}
	}
	return len(rs), nil
}

func (m *memRepo) GetReading(ctx context.Context, id int64) (*irgmodels.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, interfaces.ErrReadingNotFound
	}
	return &r, nil
}

func (m *memRepo) ListReadings(ctx context.Context, p interfaces.ReadingQueryParams) (*interfaces.ReadingQueryResult, error) {
	all, _ := m.AllReadings(ctx)
	p = p.Normalize()
	var items []irgmodels.Reading
	for _, r := range all {
		if p.Sensor == "" || r.SensorName == p.Sensor {
			items = append(items, r)
		}
	}
	total := int64(len(items))
	if p.Offset() < len(items) {
		items = items[p.Offset():]
	} else {
		items = nil
	}
	if len(items) > p.Limit {
		items = items[:p.Limit]
	}
	return interfaces.NewReadingQueryResult(items, p, total), nil
}

func (m *memRepo) AllReadings(ctx context.Context) ([]irgmodels.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]irgmodels.Reading, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedAt.Before(out[j].CollectedAt) })
	return out, nil
}

func (m *memRepo) UpdateReadingValue(ctx context.Context, id int64, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return interfaces.ErrReadingNotFound
	}
	r.Value = v
	m.rows[id] = r
	return nil
}

func (m *memRepo) DeleteReading(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return interfaces.ErrReadingNotFound
	}
	delete(m.rows, id)
	return nil
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// trainingRows builds 20 readings over two months where low values switch the relay on
func trainingRows() []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, 20)
	for i := 0; i < 20; i++ {
		value := 5 + float64(i*55)/19
		status := 0
		if value < 30 {
			status = 1
		}
		rows = append(rows, map[string]interface{}{
			"sensor":           "Umidade",
			"valor_coleta":     value,
			"data_hora_coleta": time.Date(2024, 3, 1+i*3, 8, 0, 0, 0, time.UTC).Format(time.RFC3339),
			"status_rele":      status,
		})
	}
	return rows
}

func TestReadingLifecycle(t *testing.T) {
	t.Parallel()

	router := gin.New()
	NewReadingController(newMemRepo(), time.UTC, logger.Nop()).RegisterRoutes(router)

	w := doJSON(t, router, http.MethodPost, "/readings", map[string]interface{}{
		"id_coleta": 7, "sensor": "Umidade", "valor_coleta": 33.3, "data_hora_coleta": "01/03/2024 08:00", "status_rele": 1,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/readings", map[string]interface{}{
		"id_coleta": 7, "sensor": "Umidade", "valor_coleta": 1,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate id, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/readings", map[string]interface{}{
		"sensor": "Umidade", "valor_coleta": 1, "status_rele": 3,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/readings/7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got irgmodels.Reading
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode reading: %v", err)
	}
	if got.CollectedAt.Day() != 1 || got.CollectedAt.Month() != time.March {
		t.Fatalf("expected day-first date, got %s", got.CollectedAt)
	}

	w = doJSON(t, router, http.MethodPatch, "/readings/7", map[string]interface{}{"valor_coleta": -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative value, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodPatch, "/readings/7", map[string]interface{}{"valor_coleta": 12})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for update, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/readings/7", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/readings/7", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/readings/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", w.Code)
	}
}

func TestReadingBatchAndList(t *testing.T) {
	t.Parallel()

	router := gin.New()
	NewReadingController(newMemRepo(), time.UTC, logger.Nop()).RegisterRoutes(router)

	w := doJSON(t, router, http.MethodPost, "/readings/batch", map[string]interface{}{"readings": trainingRows()})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/readings/batch", map[string]interface{}{"readings": []map[string]interface{}{
		{"sensor": "Umidade", "valor_coleta": 1},
		{"sensor": "", "valor_coleta": 1},
	}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid batch row, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/readings?sensor=Umidade&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res interfaces.ReadingQueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if res.Total != 20 || len(res.Items) != 5 || res.NextPage == nil {
		t.Fatalf("unexpected page: total %d, items %d", res.Total, len(res.Items))
	}

	w = doJSON(t, router, http.MethodGet, "/readings?from=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid from, got %d", w.Code)
	}
}

func newPredictionRouter(repo interfaces.ReadingRepository) *gin.Engine {
	router := gin.New()
	p := predictor.NewLabelPredictor(predictor.DefaultOptions(), predictor.DefaultForecastOptions())
	NewPredictionController(repo, p, time.UTC, logger.Nop()).RegisterRoutes(router)
	return router
}

func TestForecastInlineRows(t *testing.T) {
	t.Parallel()

	rows := make([]map[string]interface{}, 0, 20)
	for _, r := range trainingRows() {
		rows = append(rows, map[string]interface{}{
			"DATA_HORA_COLETA": r["data_hora_coleta"],
			"VALOR_COLETA":     r["valor_coleta"],
			"STATUS_RELE":      r["status_rele"],
		})
	}
	rows = append(rows, map[string]interface{}{"DATA_HORA_COLETA": "garbage", "VALOR_COLETA": 1, "STATUS_RELE": 1})

	router := newPredictionRouter(newMemRepo())
	w := doJSON(t, router, http.MethodPost, "/predictions/forecast", map[string]interface{}{
		"rows": rows, "reference_date": "2024-03-01", "forecast_seed": 11,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Source   string `json:"source"`
		Training struct {
			TrainRows int                         `json:"train_rows"`
			TestRows  int                         `json:"test_rows"`
			Excluded  []predictor.DataFormatError `json:"excluded"`
		} `json:"training"`
		Forecast []struct {
			Date            string  `json:"date"`
			SensorValue     float64 `json:"sensor_value"`
			PredictedStatus int     `json:"predicted_status"`
		} `json:"forecast"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Source != "request" || resp.Training.TrainRows != 16 || resp.Training.TestRows != 4 {
		t.Fatalf("unexpected training summary: %+v", resp.Training)
	}
	if len(resp.Training.Excluded) != 1 || resp.Training.Excluded[0].Row != 20 {
		t.Fatalf("expected the garbage row to be excluded, got %+v", resp.Training.Excluded)
	}
	if len(resp.Forecast) != 8 || resp.Forecast[0].Date != "2024-03-01" || resp.Forecast[7].Date != "2024-03-08" {
		t.Fatalf("unexpected forecast dates: %+v", resp.Forecast)
	}
}

func TestForecastFromDatabase(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	for _, r := range trainingRows() {
		ts, _ := time.Parse(time.RFC3339, r["data_hora_coleta"].(string))
		rd := irgmodels.Reading{SensorName: "Umidade", Value: r["valor_coleta"].(float64), CollectedAt: ts, RelayStatus: irgmodels.IntPtr(r["status_rele"].(int))}
		if err := repo.CreateReading(context.Background(), &rd); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	router := newPredictionRouter(repo)
	req := httptest.NewRequest(http.MethodPost, "/predictions/forecast", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Source   string            `json:"source"`
		Forecast []json.RawMessage `json:"forecast"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Source != "database" || len(resp.Forecast) != 8 {
		t.Fatalf("unexpected response: source %s, %d forecast rows", resp.Source, len(resp.Forecast))
	}
}

func TestForecastInsufficientData(t *testing.T) {
	t.Parallel()

	router := newPredictionRouter(newMemRepo())
	rows := []map[string]interface{}{}
	for i := 1; i <= 5; i++ {
		rows = append(rows, map[string]interface{}{"DATA_HORA_COLETA": fmt.Sprintf("2024-01-0%d", i), "VALOR_COLETA": 20, "STATUS_RELE": 0})
	}
	rows = append(rows, map[string]interface{}{"DATA_HORA_COLETA": "not a date", "VALOR_COLETA": 20, "STATUS_RELE": 0})
	w := doJSON(t, router, http.MethodPost, "/predictions/forecast", map[string]interface{}{"rows": rows})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Error    string `json:"error"`
		Training struct {
			InputRows int               `json:"input_rows"`
			Excluded  []json.RawMessage `json:"excluded"`
		} `json:"training"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Error == "" || body.Training.InputRows != 6 {
		t.Fatalf("expected error and training report for 6 rows, got %s", w.Body.String())
	}
	if len(body.Training.Excluded) != 1 {
		t.Fatalf("expected 1 excluded row in report, got %d", len(body.Training.Excluded))
	}

	w = doJSON(t, router, http.MethodPost, "/predictions/forecast", map[string]interface{}{"reference_date": "March"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid reference date, got %d", w.Code)
	}
}

func multipartFile(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close failed: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestImportPreviewAndCommit(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	router := gin.New()
	NewImportController(importer.New(importer.Options{}), repo, 1<<20, 5, logger.Nop()).RegisterRoutes(router)

	csvData := "SENSOR,VALOR_COLETA,DATA_HORA_COLETA,STATUS_RELE\n" +
		"Umidade,10,2024-03-01 08:00:00,1\n" +
		"Umidade,20,2024-03-02 08:00:00,0\n" +
		"Umidade,x,2024-03-03 08:00:00,0\n"

	body, ctype := multipartFile(t, "dados.csv", csvData)
	req := httptest.NewRequest(http.MethodPost, "/imports/preview?rows=1", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var preview struct {
		Accepted int                    `json:"accepted_count"`
		Preview  []irgmodels.Reading    `json:"preview"`
		Rejected []importer.RejectedRow `json:"rejected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &preview); err != nil {
		t.Fatalf("failed to decode preview: %v", err)
	}
	if preview.Accepted != 2 || len(preview.Preview) != 1 || len(preview.Rejected) != 1 {
		t.Fatalf("unexpected preview: %+v", preview)
	}
	if all, _ := repo.AllReadings(context.Background()); len(all) != 0 {
		t.Fatalf("preview must not store readings")
	}

	body, ctype = multipartFile(t, "dados.csv", csvData)
	req = httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", ctype)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if all, _ := repo.AllReadings(context.Background()); len(all) != 2 {
		t.Fatalf("expected 2 stored readings, got %d", len(all))
	}

	body, ctype = multipartFile(t, "dados.pdf", csvData)
	req = httptest.NewRequest(http.MethodPost, "/imports", body)
	req.Header.Set("Content-Type", ctype)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", w.Code)
	}
}

type fakeWeather struct {
	snap *weather.Snapshot
	err  error
}

func (f fakeWeather) Current(ctx context.Context, refresh bool) (*weather.Snapshot, error) {
	return f.snap, f.err
}

func TestWeatherEndpoints(t *testing.T) {
	t.Parallel()

	series := &irgmodels.WeatherSeries{Points: []irgmodels.WeatherPoint{
		{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), TemperatureC: 20, RelativeHumidity: 90},
		{Time: time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC), TemperatureC: 25, RelativeHumidity: 70},
	}}
	router := gin.New()
	NewWeatherController(fakeWeather{snap: &weather.Snapshot{Series: series}}, logger.Nop()).RegisterRoutes(router)

	if w := doJSON(t, router, http.MethodGet, "/weather", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/weather?refresh=maybe", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid refresh, got %d", w.Code)
	}
	w := doJSON(t, router, http.MethodGet, "/weather/correlation", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	down := gin.New()
	NewWeatherController(fakeWeather{err: errors.New("offline")}, logger.Nop()).RegisterRoutes(down)
	if w := doJSON(t, down, http.MethodGet, "/weather", nil); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, r := range []irgmodels.Reading{
		{SensorName: "Temperatura", Value: 20, CollectedAt: at},
		{SensorName: "Umidade", Value: 80, CollectedAt: at},
		{SensorName: "Temperatura", Value: 30, CollectedAt: at.Add(time.Hour)},
		{SensorName: "Umidade", Value: 60, CollectedAt: at.Add(time.Hour)},
	} {
		r.ID = int64(i + 1)
		_ = repo.CreateReading(context.Background(), &r)
	}

	router := gin.New()
	NewAnalyticsController(repo, logger.Nop()).RegisterRoutes(router)

	w := doJSON(t, router, http.MethodGet, "/analytics/sensors", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/analytics/sensors/Umidade/series", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/analytics/sensors/Chuva/series", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sensor, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/analytics/correlation", nil)
	var corr struct {
		Pairs   []json.RawMessage `json:"pairs"`
		Pearson *float64          `json:"pearson"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &corr); err != nil {
		t.Fatalf("failed to decode correlation: %v", err)
	}
	if len(corr.Pairs) != 2 || corr.Pearson == nil {
		t.Fatalf("unexpected correlation: %s", w.Body.String())
	}
}

type fakeHealth map[string]interface{}

func (f fakeHealth) GetHealthStatus(ctx context.Context) map[string]interface{} { return f }

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	router := gin.New()
	NewHealthController(fakeHealth{"status": "error"}, newMemRepo(), logger.Nop()).RegisterRoutes(router)

	if w := doJSON(t, router, http.MethodGet, "/health/live", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for live, got %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/health/ready", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for ready, got %d", w.Code)
	}
	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("irrigation_readings_total 0")) {
		t.Fatalf("unexpected metrics: %s", w.Body.String())
	}
	for _, want := range []string{"# TYPE irrigation_readings_total gauge", "irrigation_api_up 1", "# TYPE irrigation_api_uptime_seconds gauge"} {
		if !bytes.Contains(w.Body.Bytes(), []byte(want)) {
			t.Fatalf("metrics missing %q: %s", want, w.Body.String())
		}
	}
}

type failingListRepo struct {
	*memRepo
}

func (f failingListRepo) ListReadings(ctx context.Context, p interfaces.ReadingQueryParams) (*interfaces.ReadingQueryResult, error) {
	return nil, errors.New("database unavailable")
}

func TestMetricsReadingCount(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	for i := 1; i <= 3; i++ {
		rd := irgmodels.Reading{SensorName: "Umidade", Value: float64(i), CollectedAt: time.Date(2024, 3, i, 9, 0, 0, 0, time.UTC)}
		if err := repo.CreateReading(context.Background(), &rd); err != nil {
			t.Fatalf("CreateReading failed: %v", err)
		}
	}
	router := gin.New()
	NewHealthController(fakeHealth{"status": "ok"}, repo, logger.Nop()).RegisterRoutes(router)
	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("irrigation_readings_total 3")) {
		t.Fatalf("expected 3 readings in metrics: %s", w.Body.String())
	}

	router = gin.New()
	NewHealthController(fakeHealth{"status": "ok"}, failingListRepo{newMemRepo()}, logger.Nop()).RegisterRoutes(router)
	w = doJSON(t, router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 when the count fails, got %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("irrigation_readings_total")) || !bytes.Contains(w.Body.Bytes(), []byte("irrigation_api_up 1")) {
		t.Fatalf("expected only process gauges when the count fails: %s", w.Body.String())
	}
}
