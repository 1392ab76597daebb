package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/cache"
)

func testYear() cache.YearMapping {
	return cache.YearMapping{
		"2024-03-19": {"date": "2024-03-19", "feast_name": "St. Joseph", "liturgical_season": "Lent", "liturgical_color": "white", "feast_rank": "Duplex I classis"},
		"2024-03-20": {"date": "2024-03-20", "liturgical_season": "Lent"},
		"2024-12-25": {"date": "2024-12-25", "feast_name": "Nativity of Our Lord", "is_holy_day": true},
	}
}

func TestBuildICS(t *testing.T) {
	stamp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cal := BuildICS(2024, testYear(), ICSOptions{Stamp: stamp})

	events := cal.Events()
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	first := events[0]
	if got := first.GetProperty(ical.ComponentPropertySummary).Value; got != "St. Joseph" {
		t.Errorf("Expected summary St. Joseph, got %s", got)
	}
	if got := first.GetProperty(ical.ComponentPropertyUniqueId).Value; got != "2024-03-19@ordo" {
		t.Errorf("Expected uid 2024-03-19@ordo, got %s", got)
	}
	if got := first.GetProperty(ical.ComponentPropertyDtStart).Value; got != "20240319" {
		t.Errorf("Expected all-day start 20240319, got %s", got)
	}
	if got := first.GetProperty(ical.ComponentPropertyDtEnd).Value; got != "20240320" {
		t.Errorf("Expected exclusive end 20240320, got %s", got)
	}
	desc := first.GetProperty(ical.ComponentPropertyDescription).Value
	if !strings.Contains(desc, "Rank: Duplex I classis") || !strings.Contains(desc, "Color: white") {
		t.Errorf("Unexpected description %q", desc)
	}

	// Season is the title fallback
	if got := events[1].GetProperty(ical.ComponentPropertySummary).Value; got != "Lent" {
		t.Errorf("Expected season fallback title, got %s", got)
	}
}

func TestBuildICSMonthFilter(t *testing.T) {
	cal := BuildICS(2024, testYear(), ICSOptions{Month: time.December})

	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("Expected 1 December event, got %d", len(events))
	}
	if got := events[0].GetProperty(ical.ComponentPropertySummary).Value; got != "Nativity of Our Lord" {
		t.Errorf("Unexpected summary %s", got)
	}
}

func TestWriteICSParsesBack(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteICS(&buf, 2024, testYear(), ICSOptions{Name: "Test Ordo"}); err != nil {
		t.Fatalf("WriteICS failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "METHOD:PUBLISH", "X-WR-CALNAME:Test Ordo", "DTSTART;VALUE=DATE:20241225"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output", want)
		}
	}

	cal, err := ical.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("Expected output to parse: %v", err)
	}
	if len(cal.Events()) != 3 {
		t.Errorf("Expected 3 events after parse, got %d", len(cal.Events()))
	}
}

func TestBuildICSEmpty(t *testing.T) {
	cal := BuildICS(2024, cache.YearMapping{}, ICSOptions{})
	if len(cal.Events()) != 0 {
		t.Errorf("Expected no events, got %d", len(cal.Events()))
	}
	// Records without data still produce a calendar shell
	cal = BuildICS(2024, cache.YearMapping{"bad-key": api.DayRecord{}}, ICSOptions{})
	if len(cal.Events()) != 0 {
		t.Errorf("Expected unparsable keys to be skipped, got %d", len(cal.Events()))
	}
}
