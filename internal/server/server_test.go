package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/cache"
)

func newTestServer(t *testing.T) (*httptest.Server, *api.InMemoryTransport, *cache.Manager) {
	t.Helper()
	transport := api.NewInMemoryTransport()
	manager := cache.NewManager(api.NewOrdoAPI(transport), cache.NewMemoryStore())
	ts := httptest.NewServer(New(manager, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, transport, manager
}

func doRequest(t *testing.T, method, url string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(method, url, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestYearEndpoint(t *testing.T) {
	ts, transport, _ := newTestServer(t)
	transport.SeedYear(2024)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/year/2024")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var data map[string]map[string]interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(data) != 366 {
		t.Errorf("Expected 366 days, got %d", len(data))
	}
}

func TestYearEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		setup  func(tr *api.InMemoryTransport)
		status int
	}{
		{"bad year", "/api/year/24", nil, http.StatusBadRequest},
		{"unreachable", "/api/year/2024", func(tr *api.InMemoryTransport) { tr.SetProbeError(errors.New("down")) }, http.StatusBadGateway},
		{"no data", "/api/year/2024", nil, http.StatusNotFound},
		{"bad month", "/api/month/2024/13", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, transport, _ := newTestServer(t)
			if tt.setup != nil {
				tt.setup(transport)
			}
			resp, body := doRequest(t, http.MethodGet, ts.URL+tt.path)
			if resp.StatusCode != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, resp.StatusCode, body)
			}
			if !strings.Contains(body, `"error"`) {
				t.Errorf("Expected JSON error body, got %s", body)
			}
		})
	}
}

func TestMonthEndpoint(t *testing.T) {
	ts, transport, _ := newTestServer(t)
	transport.SeedYear(2024)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/month/2024/2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	var month api.MonthResponse
	json.Unmarshal([]byte(body), &month)
	if len(month.Days) != 29 {
		t.Errorf("Expected 29 February days, got %d", len(month.Days))
	}
	if month.Days[0].DateKey() != "2024-02-01" {
		t.Errorf("Expected days in order, first was %s", month.Days[0].DateKey())
	}
}

func TestDaysEndpointUsesCacheOnly(t *testing.T) {
	ts, transport, manager := newTestServer(t)
	transport.SeedYear(2024)

	_, body := doRequest(t, http.MethodGet, ts.URL+"/api/days/2024?dates=2024-01-01,2024-01-02")
	if strings.TrimSpace(body) != "{}" {
		t.Errorf("Expected empty slice before load, got %s", body)
	}
	if transport.RequestsMade() != 0 {
		t.Errorf("Expected no API requests, got %d", transport.RequestsMade())
	}

	manager.GetYear(testContext(t), 2024)

	_, body = doRequest(t, http.MethodGet, ts.URL+"/api/days/2024?dates=2024-01-01,%202024-01-02,2025-01-01")
	var data map[string]interface{}
	json.Unmarshal([]byte(body), &data)
	if len(data) != 2 {
		t.Errorf("Expected 2 cached days, got %d: %s", len(data), body)
	}
}

func TestCacheEndpoints(t *testing.T) {
	ts, transport, manager := newTestServer(t)
	transport.SeedYear(2023)
	transport.SeedYear(2024)
	manager.GetYear(testContext(t), 2023)
	manager.GetYear(testContext(t), 2024)

	_, body := doRequest(t, http.MethodGet, ts.URL+"/api/cache")
	var info cache.CacheInfo
	json.Unmarshal([]byte(body), &info)
	if info.Count != 2 || info.Backend != "memory" {
		t.Errorf("Unexpected cache info %+v", info)
	}

	resp, _ := doRequest(t, http.MethodDelete, ts.URL+"/api/cache/2023")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
	if years := manager.Info().Years; len(years) != 1 || years[0] != 2024 {
		t.Errorf("Expected [2024] after year clear, got %v", years)
	}

	doRequest(t, http.MethodDelete, ts.URL+"/api/cache")
	if manager.Info().Count != 0 {
		t.Error("Expected empty cache after clear")
	}
}

func TestYearICSEndpoint(t *testing.T) {
	ts, transport, _ := newTestServer(t)
	transport.Seed(api.DayRecord{"date": "2024-12-25", "feast_name": "Nativity of Our Lord"})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/year/2024/ics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Expected text/calendar, got %s", ct)
	}
	if !strings.Contains(body, "SUMMARY:Nativity of Our Lord") {
		t.Errorf("Expected event in calendar, got:\n%s", body)
	}
}

func TestRefresher(t *testing.T) {
	if _, err := NewRefresher(nil, "not a schedule", 1); err == nil {
		t.Error("Expected invalid schedule to be rejected")
	}

	transport := api.NewInMemoryTransport()
	transport.SeedYear(2024)
	manager := cache.NewManager(api.NewOrdoAPI(transport), cache.NewMemoryStore())

	r, err := NewRefresher(manager, "0 3 * * *", 2)
	if err != nil {
		t.Fatalf("NewRefresher failed: %v", err)
	}
	r.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	if err := r.RunOnce(testContext(t)); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if years := manager.Info().Years; len(years) != 3 || years[0] != 2023 || years[2] != 2025 {
		t.Errorf("Expected 2023-2025 warmed, got %v", years)
	}
	if r.Runs() != 1 {
		t.Errorf("Expected 1 run, got %d", r.Runs())
	}

	// Second run only hits the cache
	before := transport.MonthRequests()
	r.RunOnce(testContext(t))
	if transport.MonthRequests() != before {
		t.Errorf("Expected fresh years to be served from cache, got %d new month requests", transport.MonthRequests()-before)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Errorf("Expected second Start to be a no-op, got %v", err)
	}
	r.Stop()
	r.Stop()
}

func TestRefresherStartRejectsBadSchedule(t *testing.T) {
	manager := cache.NewManager(api.NewOrdoAPI(api.NewInMemoryTransport()), cache.NewMemoryStore())
	r := &Refresher{manager: manager, spec: "every tuesday", now: time.Now}

	if err := r.Start(); err == nil {
		t.Fatal("Expected Start to fail for an unparsable schedule")
	}
	r.Stop()

	if err := New(manager, r).Start(testContext(t), "127.0.0.1:0"); err == nil {
		t.Error("Expected server Start to fail when the refresher cannot be scheduled")
	}
}
