package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/cache"
	"github.com/colthorp/ordo-cli-go/internal/ordo"
)

func TestStreamDaysOrdered(t *testing.T) {
	m := cache.YearMapping{
		"2024-12-25": {"date": "2024-12-25", "feast_name": "Christmas"},
		"2024-01-01": {"date": "2024-01-01", "feast_name": "Circumcision"},
	}

	var buf bytes.Buffer
	StreamDays(&buf, m)

	var out []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Expected valid JSON, got %v: %s", err, buf.String())
	}
	if len(out) != 2 || out[0]["date"] != "2024-01-01" {
		t.Errorf("Expected records in date order, got %v", out)
	}
}

func TestStreamDaysEmpty(t *testing.T) {
	var buf bytes.Buffer
	StreamDays(&buf, cache.YearMapping{})
	if buf.String() != "[]\n" {
		t.Errorf("Expected [], got %q", buf.String())
	}
}

func TestPrintMonthGrid(t *testing.T) {
	records := map[string]api.DayRecord{
		"2024-03-19": {"date": "2024-03-19", "feast_name": "St. Joseph, Spouse of the BVM", "liturgical_color": "white"},
		"2024-03-25": {"date": "2024-03-25", "feast_name": "Annunciation"},
	}
	lookup := func(key string) api.DayRecord { return records[key] }

	var buf bytes.Buffer
	PrintMonthGrid(&buf, ordo.MonthGrid(2024, time.March, false), lookup, Options{})
	out := buf.String()

	if !strings.Contains(out, "March 2024") {
		t.Errorf("Expected title, got:\n%s", out)
	}
	if !strings.Contains(out, "Annunciation") {
		t.Errorf("Expected Annunciation in grid, got:\n%s", out)
	}
	if !strings.Contains(out, "St. Joseph, …") {
		t.Errorf("Expected truncated feast name, got:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("Expected no ANSI codes when color is disabled")
	}
	// title + header + two lines per week
	if lines := strings.Count(out, "\n"); lines != 2+2*ordo.GridWeeks {
		t.Errorf("Expected %d lines, got %d", 2+2*ordo.GridWeeks, lines)
	}
}

func TestPrintMonthGridColor(t *testing.T) {
	lookup := func(key string) api.DayRecord {
		if key == "2024-03-19" {
			return api.DayRecord{"feast_name": "St. Joseph", "liturgical_color": "red"}
		}
		return nil
	}

	var buf bytes.Buffer
	PrintMonthGrid(&buf, ordo.MonthGrid(2024, time.March, false), lookup, Options{Color: true})

	if !strings.Contains(buf.String(), "\x1b[31mSt. Joseph") {
		t.Errorf("Expected red ANSI feast, got:\n%q", buf.String())
	}
}

func TestPrintDay(t *testing.T) {
	rec := api.DayRecord{
		"feast_name":        "St. Joseph",
		"liturgical_season": "Lent",
		"feast_rank":        "Duplex I classis",
		"liturgical_color":  "white",
		"is_holy_day":       true,
		"commemorations":    []interface{}{map[string]interface{}{"name": "Feria"}},
	}
	date := time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		opts    Options
		want    []string
		notWant []string
	}{
		{
			name: "all sections",
			opts: Options{ShowRanks: true, ShowColors: true, ShowCommemorations: true},
			want: []string{"Tuesday, March 19, 2024", "Feast:   St. Joseph", "Season:  Lent", "Rank:", "Color:   white", "Holy Day", "Commemoration: Feria"},
		},
		{
			name:    "hidden sections",
			opts:    Options{},
			want:    []string{"Feast:   St. Joseph"},
			notWant: []string{"Rank:", "Color:", "Commemorations:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			PrintDay(&buf, date, rec, tt.opts)
			out := buf.String()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("Expected %q in output:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("Did not expect %q in output:\n%s", s, out)
				}
			}
		})
	}
}

func TestPrintDayNoData(t *testing.T) {
	var buf bytes.Buffer
	PrintDay(&buf, time.Date(2024, 3, 19, 0, 0, 0, 0, time.UTC), nil, Options{})
	if !strings.Contains(buf.String(), "No liturgical data") {
		t.Errorf("Expected no-data message, got %q", buf.String())
	}
}

func TestPrintYearSummary(t *testing.T) {
	m := cache.YearMapping{}
	for d := 1; d <= 31; d++ {
		key := time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		m[key] = api.DayRecord{"date": key}
	}

	var buf bytes.Buffer
	PrintYearSummary(&buf, 2024, m)
	out := buf.String()

	if !strings.Contains(out, "2024: 31 days") {
		t.Errorf("Expected day count, got:\n%s", out)
	}
	if !strings.Contains(out, "March     31/31\n") {
		t.Errorf("Expected complete March, got:\n%s", out)
	}
	if !strings.Contains(out, "February   0/29  (incomplete)") {
		t.Errorf("Expected incomplete February, got:\n%s", out)
	}
}

func TestPrintCacheInfo(t *testing.T) {
	var buf bytes.Buffer
	PrintCacheInfo(&buf, cache.CacheInfo{
		Years:      []int{2024},
		Count:      1,
		TotalDays:  366,
		DaysByYear: map[int]int{2024: 366},
		Backend:    "sqlite",
	})
	out := buf.String()
	if !strings.Contains(out, "sqlite") || !strings.Contains(out, "2024  366 days") {
		t.Errorf("Unexpected cache info:\n%s", out)
	}
}
