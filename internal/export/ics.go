// Package export renders cached ordo data in calendar interchange formats.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/cache"
	"github.com/colthorp/ordo-cli-go/internal/core"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
	"github.com/colthorp/ordo-cli-go/internal/ordo"
)

const productID = "-//ordo-cli//Liturgical Ordo//EN"

// ICSOptions selects what goes into the calendar.
type ICSOptions struct {
	Name string
	// Month limits the export to one month; zero means the whole year.
	Month time.Month
	// Stamp is the DTSTAMP for every event. Zero means now.
	Stamp time.Time
}

// BuildICS builds a calendar with one all-day event per cached day of year.
func BuildICS(year int, data cache.YearMapping, opts ICSOptions) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("Liturgical Ordo %d", year)
	}
	cal.SetXWRCalName(name)
	cal.SetCalscale("GREGORIAN")

	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	count := 0
	for _, key := range sortedKeys(data) {
		day, err := time.Parse(core.APIDateFmt, key)
		if err != nil {
			continue
		}
		if opts.Month != 0 && day.Month() != opts.Month {
			continue
		}
		addDay(cal, key, day, data[key], stamp)
		count++
	}

	appLog.Debug("built ics", "year", year, "events", count)
	return cal
}

// WriteICS serializes the calendar for year to w.
func WriteICS(w io.Writer, year int, data cache.YearMapping, opts ICSOptions) error {
	return BuildICS(year, data, opts).SerializeTo(w)
}

func addDay(cal *ical.Calendar, key string, day time.Time, rec api.DayRecord, stamp time.Time) {
	ev := ordo.Summarize(key, rec)

	event := cal.AddEvent(key + "@ordo")
	event.SetDtStampTime(stamp)
	event.SetAllDayStartAt(day)
	event.SetAllDayEndAt(day.AddDate(0, 0, 1))
	event.SetSummary(ev.Title)
	event.SetTimeTransparency(ical.TransparencyTransparent)
	if desc := description(ev); desc != "" {
		event.SetDescription(desc)
	}
	if ev.ColorName != "" {
		event.SetColor(ev.ColorName)
	}
	if ev.Season != "" {
		event.AddCategory(ev.Season)
	}
}

func description(ev ordo.Event) string {
	var lines []string
	if ev.Season != "" {
		lines = append(lines, "Season: "+ev.Season)
	}
	if ev.Rank != "" {
		lines = append(lines, "Rank: "+ev.Rank)
	}
	if ev.ColorName != "" {
		lines = append(lines, "Color: "+ev.ColorName)
	}
	if len(ev.Observances) > 0 {
		lines = append(lines, "Observances: "+strings.Join(ev.Observances, ", "))
	}
	for _, c := range ev.Commemorations {
		lines = append(lines, "Commemoration: "+c.Name)
	}
	if ev.Epistle != "" {
		lines = append(lines, "Epistle: "+ev.Epistle)
	}
	if ev.Gospel != "" {
		lines = append(lines, "Gospel: "+ev.Gospel)
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(m cache.YearMapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
