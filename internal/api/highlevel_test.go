package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name     string
		fixtures map[string]Fixture
		wantErr  bool
	}{
		{"ok", map[string]Fixture{"": {Body: `{"status":"ok"}`}}, false},
		{"server error", map[string]Fixture{"": {Status: 503, Body: "down"}}, true},
		{"not json", map[string]Fixture{"": {Body: "<html>hi</html>"}}, true},
		{"missing", map[string]Fixture{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := NewOrdoAPI(NewMockTransport(tt.fixtures))
			err := api.Probe(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Probe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsConnectivityError(err) {
				t.Errorf("Expected ConnectivityError, got %T", err)
			}
		})
	}
}

func TestProbeCancelledIsNotConnectivityError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer ts.Close()
	api := NewOrdoAPIForURL(ts.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := api.Probe(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if IsConnectivityError(err) {
		t.Errorf("Expected cancellation not to be reported as a connectivity error, got %v", err)
	}
}

func TestFetchMonth(t *testing.T) {
	tests := []struct {
		name      string
		fixture   Fixture
		wantDays  int
		wantErr   bool
		malformed bool
	}{
		{"two days", Fixture{Body: `{"days":[{"date":"2024-03-01"},{"date":"2024-03-02","feast_name":"X"}]}`}, 2, false, false},
		{"empty month", Fixture{Body: `{"days":[]}`}, 0, false, false},
		{"missing days", Fixture{Body: `{"month":3}`}, 0, true, true},
		{"null days", Fixture{Body: `{"days":null}`}, 0, true, true},
		{"not json", Fixture{Body: `nope`}, 0, true, true},
		{"http 500", Fixture{Status: 500, Body: "boom"}, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockTransport(map[string]Fixture{"month/2024/3": tt.fixture})
			api := NewOrdoAPI(mock)

			resp, err := api.FetchMonth(context.Background(), 2024, time.March)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FetchMonth() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.malformed && !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("Expected ErrMalformedResponse, got %v", err)
			}
			if err == nil && len(resp.Days) != tt.wantDays {
				t.Errorf("Expected %d days, got %d", tt.wantDays, len(resp.Days))
			}
			if paths := mock.Paths(); len(paths) != 1 || paths[0] != "month/2024/3" {
				t.Errorf("Unexpected request paths %v", paths)
			}
		})
	}
}

func TestFetchMonthTimeout(t *testing.T) {
	transport := NewInMemoryTransport()
	transport.SeedYear(2024)
	release := transport.Hold()
	defer release()

	api := NewOrdoAPI(transport)
	api.SetMonthTimeout(20 * time.Millisecond)

	start := time.Now()
	_, err := api.FetchMonth(context.Background(), 2024, time.January)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Timeout took too long: %v", time.Since(start))
	}
}

func TestInMemoryTransportMonth(t *testing.T) {
	transport := NewInMemoryTransport()
	transport.Seed(
		DayRecord{"date": "2024-02-28", "feast_name": "A"},
		DayRecord{"date_str": "2024-02-29", "feast_name": "B"},
		DayRecord{"date": "2024-03-01", "feast_name": "C"},
	)
	api := NewOrdoAPI(transport)

	resp, err := api.FetchMonth(context.Background(), 2024, time.February)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(resp.Days) != 2 {
		t.Errorf("Expected 2 February days, got %d", len(resp.Days))
	}

	transport.FailMonth(2024, time.March, &StatusError{StatusCode: http.StatusBadGateway, Message: "bad gateway"})
	if _, err := api.FetchMonth(context.Background(), 2024, time.March); err == nil {
		t.Error("Expected failure for March")
	}
	if transport.MonthRequests() != 2 {
		t.Errorf("Expected 2 month requests, got %d", transport.MonthRequests())
	}
}

func TestDayRecordAccessors(t *testing.T) {
	rec := DayRecord{"date_str": "2024-12-25", "feast_name": "Nativity", "is_holy_day": true, "rank": 1}

	if rec.DateKey() != "2024-12-25" {
		t.Errorf("Expected date_str fallback, got %q", rec.DateKey())
	}
	if rec.String("feast_name") != "Nativity" {
		t.Errorf("Unexpected feast_name %q", rec.String("feast_name"))
	}
	if rec.String("rank") != "" {
		t.Error("Expected non-string field to read as empty")
	}
	if !rec.Bool("is_holy_day") || rec.Bool("is_fast_day") {
		t.Error("Unexpected boolean accessors")
	}
}
