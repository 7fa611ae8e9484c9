package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"airq-service/internal/analytics"
	"airq-service/internal/cache"
	"airq-service/internal/catalog"
	"airq-service/internal/config"
	"airq-service/internal/logging"
	"airq-service/internal/models"
)

func newTestServer(t *testing.T, store Store) *Server {
	t.Helper()
	reg, err := catalog.NewRegistry("en")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	s, err := NewServer(Options{
		Catalogs:  reg,
		Store:     store,
		Tracker:   analytics.NewTracker(50, 2.0),
		QueueSize: 16,
		Logger:    logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func newRedisStore(t *testing.T) *cache.RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisClient(context.Background(), cache.Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func do(t *testing.T, s *Server, method, target string, body interface{}, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

var comfortableRoom = models.RawInputs{Temperature: 22, Humidity: 45, CO2: 600, Area: 100, Occupancy: 10}

func TestHealthWithoutRedis(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	decode(t, rec, &body)
	if body["status"] != "healthy" || body["redis"] != "disabled" {
		t.Fatalf("unexpected health %v", body)
	}
}

func TestAnalysisReturnsScore(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/analysis", comfortableRoom, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res models.AnalysisResult
	decode(t, rec, &res)
	if !res.Success || math.Abs(res.Score-0.45) > 1e-9 || res.Level != analytics.LevelModerate {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Category != "Moderate" {
		t.Fatalf("expected English label, got %q", res.Category)
	}
}

func TestAnalysisInvalidInputs(t *testing.T) {
	s := newTestServer(t, nil)
	in := comfortableRoom
	in.CO2 = 250
	rec := do(t, s, http.MethodPost, "/analysis", in, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var res models.AnalysisResult
	decode(t, rec, &res)
	if res.Success || res.Score != 0 || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "CO2") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAnalysisBadBody(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/analysis", "{not json", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAnalysisLocaleSelection(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		target string
		header map[string]string
		want   string
	}{
		{"query", "/analysis?lang=tr", nil, "Orta"},
		{"header", "/analysis", map[string]string{"Accept-Language": "tr-TR,tr;q=0.9"}, "Orta"},
		{"query wins", "/analysis?lang=en", map[string]string{"Accept-Language": "tr"}, "Moderate"},
		{"unsupported", "/analysis", map[string]string{"Accept-Language": "ja"}, "Moderate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, comfortableRoom, tt.header)
			var res models.AnalysisResult
			decode(t, rec, &res)
			if res.Category != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, res.Category)
			}
		})
	}
}

func TestAnalysisFeedsRecent(t *testing.T) {
	s := newTestServer(t, newRedisStore(t))

	for i := 0; i < 3; i++ {
		if rec := do(t, s, http.MethodPost, "/analysis?device_id=room-1", comfortableRoom, nil); rec.Code != http.StatusOK {
			t.Fatalf("analysis %d: status %d", i, rec.Code)
		}
	}

	rec := do(t, s, http.MethodGet, "/analysis/recent?limit=2", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []models.AnalysisRecord
	decode(t, rec, &records)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].DeviceID != "room-1" || records[0].Locale != "en" || records[0].ID == "" {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestRecentWithoutRedis(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/analysis/recent", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRecentRejectsBadLimit(t *testing.T) {
	s := newTestServer(t, newRedisStore(t))
	if rec := do(t, s, http.MethodGet, "/analysis/recent?limit=-3", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestImprovement(t *testing.T) {
	s := newTestServer(t, nil)
	crowded := models.RawInputs{Temperature: 22, Humidity: 45, CO2: 600, Area: 100, Occupancy: 10}

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"explicit deltas", improvementRequest{Inputs: crowded, Deltas: models.Deltas{models.MetricAreaPerPerson: 10}}, http.StatusOK},
		{"suggested deltas", improvementRequest{Inputs: models.RawInputs{Temperature: 10, Humidity: 45, CO2: 2000, Area: 100, Occupancy: 10}}, http.StatusOK},
		{"unknown metric", map[string]interface{}{"inputs": crowded, "deltas": map[string]float64{"noise": 1}}, http.StatusBadRequest},
		{"unreachable target", improvementRequest{Inputs: crowded, Deltas: models.Deltas{models.MetricAreaPerPerson: -10}}, http.StatusBadRequest},
		{"negative target", improvementRequest{Inputs: crowded, Deltas: models.Deltas{models.MetricAreaPerPerson: -50}}, http.StatusOK},
		{"invalid inputs", improvementRequest{Inputs: models.RawInputs{Temperature: 99, Humidity: 45, CO2: 600, Area: 100}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/analysis/improvement", tt.body, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestImprovementSuggestsDeltas(t *testing.T) {
	s := newTestServer(t, nil)
	cold := models.RawInputs{Temperature: 10, Humidity: 45, CO2: 2000, Area: 100, Occupancy: 10}

	rec := do(t, s, http.MethodPost, "/analysis/improvement", improvementRequest{Inputs: cold}, nil)
	var p models.Prediction
	decode(t, rec, &p)
	if len(p.Applied) == 0 {
		t.Fatalf("expected suggested deltas to be applied")
	}
	if p.ImprovedScore <= p.CurrentScore {
		t.Fatalf("expected an improvement, got %.3f -> %.3f", p.CurrentScore, p.ImprovedScore)
	}
}

func TestIngestUpdatesTracker(t *testing.T) {
	store := newRedisStore(t)
	s := newTestServer(t, store)

	reading := models.Reading{DeviceID: "room-7", Inputs: comfortableRoom}
	rec := do(t, s, http.MethodPost, "/readings", reading, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var ack map[string]string
	decode(t, rec, &ack)
	if ack["id"] == "" {
		t.Fatalf("expected a generated id, got %v", ack)
	}

	invalid := models.Reading{DeviceID: "room-7", Inputs: models.RawInputs{Temperature: 22, Humidity: 45, CO2: 100, Area: 100}}
	if rec := do(t, s, http.MethodPost, "/readings", invalid, nil); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	// Drain the queue so the worker has seen both readings.
	s.Close()

	rec = do(t, s, http.MethodGet, "/analytics/current", nil, nil)
	var stats models.ScoreStats
	decode(t, rec, &stats)
	if stats.TotalReadings != 2 || stats.TotalInvalid != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if math.Abs(stats.CurrentScore-0.45) > 1e-9 {
		t.Fatalf("expected current score 0.45, got %v", stats.CurrentScore)
	}

	records, err := store.RecentAnalyses(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentAnalyses: %v", err)
	}
	if len(records) != 1 || records[0].ID != ack["id"] || records[0].DeviceID != "room-7" {
		t.Fatalf("expected only the valid reading to be stored, got %+v", records)
	}
}

func TestDropsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/analytics/drops", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var drops []models.ScoreEvent
	decode(t, rec, &drops)
	if len(drops) != 0 {
		t.Fatalf("expected no drops, got %d", len(drops))
	}

	if rec := do(t, s, http.MethodGet, "/analytics/drops?limit=abc", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReferenceIsLocalized(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/reference?lang=tr", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ref struct {
		Locale string `json:"locale"`
		Ranges map[string]struct {
			Inverse bool    `json:"inverse"`
			Max     float64 `json:"max"`
			Unit    string  `json:"unit"`
		} `json:"ranges"`
		Bands []struct {
			Level string `json:"level"`
			Label string `json:"label"`
		} `json:"bands"`
		Rules []analytics.Rule `json:"rules"`
	}
	decode(t, rec, &ref)

	if ref.Locale != "tr" {
		t.Fatalf("expected tr, got %s", ref.Locale)
	}
	if co2 := ref.Ranges["co2"]; !co2.Inverse || co2.Unit != "ppm" {
		t.Fatalf("unexpected co2 range %+v", co2)
	}
	if ref.Ranges["temperature"].Inverse {
		t.Fatalf("temperature must not be inverted")
	}
	if len(ref.Bands) == 0 || ref.Bands[0].Label != "Mükemmel" {
		t.Fatalf("unexpected bands %+v", ref.Bands)
	}
	for _, r := range ref.Rules {
		if len(r.Actions) == 0 {
			t.Fatalf("rule %s/%s has no actions", r.Metric, r.Condition)
		}
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodPost, "/analysis", comfortableRoom, nil)

	rec := do(t, s, http.MethodGet, "/metrics/prometheus", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"airq_analyses_total", "http_requests_total", `endpoint="/analysis"`} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodOptions, "/analysis", nil, map[string]string{
		"Origin":                        "https://dashboard.example",
		"Access-Control-Request-Method": "POST",
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS headers, got %v", rec.Header())
	}
}

func TestRunDrainsWorkerWhenListenFails(t *testing.T) {
	s := newTestServer(t, nil)

	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		t.Fatalf("split %s: %v", l.Addr(), err)
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Run(config.ServerConfig{Port: port, ShutdownTimeout: time.Second}) }()

	select {
	case err := <-errc:
		if err == nil {
			t.Fatalf("expected an error for a port in use")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return for a port in use")
	}

	select {
	case _, ok := <-s.readings:
		if ok {
			t.Fatalf("expected the ingest queue to be closed")
		}
	default:
		t.Fatalf("expected the ingest queue to be closed")
	}
}
