// Package ordo turns cached day records into display-ready values.
package ordo

import (
	"strings"

	"github.com/colthorp/ordo-cli-go/internal/api"
)

// Colors
const (
	HexRed    = "#dc3545"
	HexWhite  = "#f8f9fa"
	HexGreen  = "#28a745"
	HexPurple = "#6f42c1"
	HexRose   = "#e83e8c"
	HexGold   = "#ffc107"
	HexNoData = "#6c757d"
)

// Commemoration is a secondary observance on a day.
type Commemoration struct {
	Name string `json:"name"`
	Rank string `json:"rank,omitempty"`
}

// Event is the display summary of one day.
type Event struct {
	Date           string          `json:"date"`
	Title          string          `json:"title"`
	Color          string          `json:"color"`
	ColorName      string          `json:"color_name,omitempty"`
	Season         string          `json:"season,omitempty"`
	Rank           string          `json:"rank,omitempty"`
	Observances    []string        `json:"observances,omitempty"`
	Commemorations []Commemoration `json:"commemorations,omitempty"`
	Epistle        string          `json:"epistle,omitempty"`
	Gospel         string          `json:"gospel,omitempty"`
	HasData        bool            `json:"has_data"`
}

// Summarize builds the Event for dateKey. A nil record yields a "No Data" event.
func Summarize(dateKey string, rec api.DayRecord) Event {
	if rec == nil {
		return Event{Date: dateKey, Title: "No Data", Color: HexNoData}
	}

	ev := Event{
		Date:      dateKey,
		Title:     "Ordo Data",
		Color:     ColorHex(rec),
		ColorName: ColorClass(rec.String("liturgical_color")),
		Season:    rec.String("liturgical_season"),
		Rank:      rec.String("feast_rank"),
		HasData:   true,
	}

	for _, field := range []string{"feast_name", "liturgical_season", "saint_of_day"} {
		if v := rec.String(field); v != "" {
			ev.Title = v
			break
		}
	}

	ev.Observances = Observances(rec)
	ev.Commemorations = Commemorations(rec)
	ev.Epistle, ev.Gospel = readings(rec)
	return ev
}

// ColorHex returns the display color for a day: the liturgical color when
// known, else a color derived from the season, else green.
func ColorHex(rec api.DayRecord) string {
	switch strings.ToLower(rec.String("liturgical_color")) {
	case "red":
		return HexRed
	case "white":
		return HexWhite
	case "green":
		return HexGreen
	case "purple", "violet":
		return HexPurple
	case "rose", "pink":
		return HexRose
	case "gold":
		return HexGold
	}

	season := strings.ToLower(rec.String("liturgical_season"))
	switch {
	case strings.Contains(season, "advent"), strings.Contains(season, "lent"):
		return HexPurple
	case strings.Contains(season, "christmas"), strings.Contains(season, "easter"):
		return HexWhite
	}
	return HexGreen
}

// ColorClass normalizes a liturgical color name, or returns "" when unknown.
func ColorClass(color string) string {
	switch strings.ToLower(strings.TrimSpace(color)) {
	case "white":
		return "white"
	case "red":
		return "red"
	case "green":
		return "green"
	case "purple", "violet":
		return "purple"
	case "black":
		return "black"
	case "rose", "pink":
		return "rose"
	case "gold", "yellow":
		return "gold"
	}
	return ""
}

// Observances lists the special-day flags set on a record.
func Observances(rec api.DayRecord) []string {
	var out []string
	if rec.Bool("is_sunday") {
		out = append(out, "Sunday")
	}
	if rec.Bool("is_holy_day") {
		out = append(out, "Holy Day")
	}
	if rec.Bool("is_fast_day") {
		out = append(out, "Fast Day")
	}
	if rec.Bool("is_ember_day") {
		out = append(out, "Ember Day")
	}
	return out
}

// Commemorations extracts the commemorations list. Entries without a name are skipped.
func Commemorations(rec api.DayRecord) []Commemoration {
	list, ok := rec["commemorations"].([]interface{})
	if !ok {
		return nil
	}
	var out []Commemoration
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		rank, _ := m["rank"].(string)
		out = append(out, Commemoration{Name: name, Rank: rank})
	}
	return out
}

func readings(rec api.DayRecord) (epistle, gospel string) {
	proper, ok := rec["mass_proper"].(map[string]interface{})
	if !ok {
		return "", ""
	}
	return reference(proper["epistle"]), reference(proper["gospel"])
}

func reference(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	ref, _ := m["reference"].(string)
	return ref
}
