package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/colthorp/ordo-cli-go/internal/core"
)

// InMemoryTransport is a lightweight simulation of the ordo API.
// Implements "/" and "month/{year}/{month}", sufficient for unit testing cache logic.
// Safe for concurrent use.
type InMemoryTransport struct {
	mu         sync.Mutex
	days       map[string]DayRecord
	failures   map[string]error
	probeErr   error
	gate       chan struct{}
	RequestLog []RequestLogEntry
}

// RequestLogEntry records a request made to the transport.
type RequestLogEntry struct {
	Path string
	At   time.Time
}

// NewInMemoryTransport creates a new in-memory transport for testing.
func NewInMemoryTransport() *InMemoryTransport {
	return &InMemoryTransport{
		days:       make(map[string]DayRecord),
		failures:   make(map[string]error),
		RequestLog: make([]RequestLogEntry, 0),
	}
}

// Seed adds one or more day records to the in-memory store.
func (t *InMemoryTransport) Seed(records ...DayRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range records {
		if key := rec.DateKey(); key != "" {
			t.days[key] = rec
		}
	}
}

// SeedYear adds a generated record for every day of year.
func (t *InMemoryTransport) SeedYear(year int) {
	for m := time.January; m <= time.December; m++ {
		for _, key := range core.MonthDateKeys(year, m) {
			t.Seed(DayRecord{
				"date":              key,
				"feast_name":        "Feria " + key,
				"liturgical_season": "Ordinary Time",
				"liturgical_color":  "green",
			})
		}
	}
}

// FailMonth makes requests for the given month return err.
// A nil err clears the failure.
func (t *InMemoryTransport) FailMonth(year int, month time.Month, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := monthPath(year, int(month))
	if err == nil {
		delete(t.failures, key)
		return
	}
	t.failures[key] = err
}

// SetProbeError makes the root probe fail with err (nil restores it).
func (t *InMemoryTransport) SetProbeError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.probeErr = err
}

// Hold blocks month requests until the returned release func is called.
func (t *InMemoryTransport) Hold() (release func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	gate := make(chan struct{})
	t.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			if t.gate == gate {
				t.gate = nil
			}
			t.mu.Unlock()
			close(gate)
		})
	}
}

// RequestsMade returns the number of requests made to this transport.
func (t *InMemoryTransport) RequestsMade() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.RequestLog)
}

// MonthRequests returns the number of month requests made.
func (t *InMemoryTransport) MonthRequests() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, entry := range t.RequestLog {
		if strings.HasPrefix(entry.Path, "month/") {
			n++
		}
	}
	return n
}

// Reset clears all stored days, failures and recorded requests.
func (t *InMemoryTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.days = make(map[string]DayRecord)
	t.failures = make(map[string]error)
	t.probeErr = nil
	t.RequestLog = make([]RequestLogEntry, 0)
}

// Get simulates a low-level ordo API request.
func (t *InMemoryTransport) Get(ctx context.Context, path string) ([]byte, error) {
	path = strings.TrimLeft(path, "/")

	t.mu.Lock()
	// Track the call for assertions in unit tests
	t.RequestLog = append(t.RequestLog, RequestLogEntry{Path: path, At: time.Now()})
	gate := t.gate
	probeErr := t.probeErr
	failure := t.failures[path]
	t.mu.Unlock()

	if path == "" {
		if probeErr != nil {
			return nil, probeErr
		}
		return []byte(`{"status":"ok","service":"ordo"}`), nil
	}

	year, month, ok := parseMonthPath(path)
	if !ok {
		return nil, &StatusError{StatusCode: http.StatusNotFound, Message: "not found"}
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}

	t.mu.Lock()
	days := make([]DayRecord, 0)
	for _, key := range core.MonthDateKeys(year, month) {
		if rec, ok := t.days[key]; ok {
			days = append(days, rec)
		}
	}
	t.mu.Unlock()

	return json.Marshal(MonthResponse{Year: year, Month: int(month), Days: days})
}

func monthPath(year, month int) string {
	return fmt.Sprintf("month/%d/%d", year, month)
}

// parseMonthPath extracts year and month from "month/{year}/{month}".
func parseMonthPath(path string) (int, time.Month, bool) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != "month" {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(parts[2])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// Fixture is a canned response for MockTransport.
type Fixture struct {
	Status int
	Body   string
}

// MockTransport is a fixture-driven fake suitable for deterministic unit tests.
// Unknown paths answer 404.
type MockTransport struct {
	mu         sync.Mutex
	Fixtures   map[string]Fixture
	RequestLog []RequestLogEntry
}

// NewMockTransport creates a new mock transport with the given fixtures.
func NewMockTransport(fixtures map[string]Fixture) *MockTransport {
	return &MockTransport{
		Fixtures:   fixtures,
		RequestLog: make([]RequestLogEntry, 0),
	}
}

// Get serves the fixture registered for path.
func (t *MockTransport) Get(ctx context.Context, path string) ([]byte, error) {
	path = strings.TrimLeft(path, "/")

	t.mu.Lock()
	t.RequestLog = append(t.RequestLog, RequestLogEntry{Path: path, At: time.Now()})
	fx, ok := t.Fixtures[path]
	t.mu.Unlock()

	if !ok {
		return nil, &StatusError{StatusCode: http.StatusNotFound, Message: "no fixture for " + path}
	}
	status := fx.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{StatusCode: status, Message: fx.Body}
	}
	return []byte(fx.Body), nil
}

// Paths returns the requested paths in order.
func (t *MockTransport) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	paths := make([]string, 0, len(t.RequestLog))
	for _, entry := range t.RequestLog {
		paths = append(paths, entry.Path)
	}
	return paths
}
