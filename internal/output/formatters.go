// Package output provides output formatting utilities for the ordo CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/cache"
	"github.com/colthorp/ordo-cli-go/internal/core"
	"github.com/colthorp/ordo-cli-go/internal/ordo"
)

// Options controls text rendering.
type Options struct {
	Color              bool // ANSI liturgical colors
	ShowRanks          bool
	ShowColors         bool
	ShowCommemorations bool
}

// ColorEnabled reports whether f is a terminal and NO_COLOR is unset.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

var ansiCodes = map[string]string{
	"red":    "31",
	"green":  "32",
	"gold":   "33",
	"purple": "35",
	"rose":   "95",
	"white":  "97",
	"black":  "90",
}

func paint(s, colorName string, enabled bool) string {
	code, ok := ansiCodes[colorName]
	if !enabled || !ok {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func dim(s string, enabled bool) string {
	if !enabled {
		return s
	}
	return "\x1b[2m" + s + "\x1b[0m"
}

// SortedKeys returns the mapping's date keys in calendar order.
func SortedKeys(m cache.YearMapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StreamDays writes the mapping's records as a compact JSON array in date order.
func StreamDays(w io.Writer, m cache.YearMapping) {
	fmt.Fprint(w, "[")
	first := true
	for _, key := range SortedKeys(m) {
		data, err := json.Marshal(m[key])
		if err != nil {
			continue
		}
		if !first {
			fmt.Fprint(w, ",")
		}
		w.Write(data)
		first = false
	}
	fmt.Fprintln(w, "]")
}

// PrintJSON prints a single item as formatted JSON.
func PrintJSON(item interface{}) {
	WriteJSON(os.Stdout, item)
}

// WriteJSON writes item as indented JSON to w.
func WriteJSON(w io.Writer, item interface{}) {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(data))
}

const cellWidth = 14

// PrintMonthGrid renders a month grid. lookup returns the record for a date
// key, or nil when none is cached.
func PrintMonthGrid(w io.Writer, g ordo.Grid, lookup func(key string) api.DayRecord, opts Options) {
	title := fmt.Sprintf("%s %d", g.Month, g.Year)
	width := cellWidth * 7
	pad := (width - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", pad), title)

	var header strings.Builder
	for _, name := range g.Weekdays() {
		header.WriteString(fit(name, cellWidth))
	}
	fmt.Fprintln(w, strings.TrimRight(header.String(), " "))

	for _, week := range g.Weeks {
		var days, feasts strings.Builder
		for _, c := range week {
			rec := lookup(c.Key)
			num := fit(fmt.Sprintf("%2d", c.Date.Day()), cellWidth)
			label := ""
			if rec != nil {
				label = ordo.Summarize(c.Key, rec).Title
			}
			label = fit(truncate(label, cellWidth-1), cellWidth)

			if !c.InMonth {
				days.WriteString(dim(num, opts.Color))
				feasts.WriteString(dim(label, opts.Color))
				continue
			}
			colorName := ""
			if rec != nil {
				colorName = ordo.ColorClass(rec.String("liturgical_color"))
			}
			days.WriteString(num)
			feasts.WriteString(paint(label, colorName, opts.Color))
		}
		fmt.Fprintln(w, strings.TrimRight(days.String(), " "))
		fmt.Fprintln(w, strings.TrimRight(feasts.String(), " "))
	}
}

// PrintDay renders the detail view of one day.
func PrintDay(w io.Writer, date time.Time, rec api.DayRecord, opts Options) {
	fmt.Fprintln(w, date.Format("Monday, January 2, 2006"))

	if rec == nil {
		fmt.Fprintln(w, "No liturgical data is available for this date.")
		return
	}

	ev := ordo.Summarize(core.FormatDate(date), rec)
	colorName := ordo.ColorClass(rec.String("liturgical_color"))

	if feast := rec.String("feast_name"); feast != "" {
		fmt.Fprintf(w, "  Feast:   %s\n", paint(feast, colorName, opts.Color))
	}
	if ev.Season != "" {
		fmt.Fprintf(w, "  Season:  %s\n", ev.Season)
	}
	if opts.ShowRanks && ev.Rank != "" {
		fmt.Fprintf(w, "  Rank:    %s\n", ev.Rank)
	}
	if opts.ShowColors {
		if c := rec.String("liturgical_color"); c != "" {
			fmt.Fprintf(w, "  Color:   %s\n", paint(c, colorName, opts.Color))
		}
	}
	if len(ev.Observances) > 0 {
		fmt.Fprintf(w, "  Observes: %s\n", strings.Join(ev.Observances, ", "))
	}
	if opts.ShowCommemorations && len(ev.Commemorations) > 0 {
		fmt.Fprintln(w, "  Commemorations:")
		for _, c := range ev.Commemorations {
			rank := c.Rank
			if rank == "" {
				rank = "Commemoration"
			}
			fmt.Fprintf(w, "    %s: %s\n", rank, c.Name)
		}
	}
	if ev.Epistle != "" {
		fmt.Fprintf(w, "  Epistle: %s\n", ev.Epistle)
	}
	if ev.Gospel != "" {
		fmt.Fprintf(w, "  Gospel:  %s\n", ev.Gospel)
	}
}

// PrintYearSummary prints the day count and per-month coverage of a year.
func PrintYearSummary(w io.Writer, year int, m cache.YearMapping) {
	counts := make(map[time.Month]int)
	for key := range m {
		if t, err := time.Parse(core.APIDateFmt, key); err == nil {
			counts[t.Month()]++
		}
	}

	fmt.Fprintf(w, "%d: %d days\n", year, len(m))
	for mo := time.January; mo <= time.December; mo++ {
		total := core.DaysInMonth(year, mo)
		marker := ""
		if counts[mo] < total {
			marker = "  (incomplete)"
		}
		fmt.Fprintf(w, "  %-9s %2d/%2d%s\n", mo, counts[mo], total, marker)
	}
}

// PrintCacheInfo prints a human-readable cache summary.
func PrintCacheInfo(w io.Writer, info cache.CacheInfo) {
	fmt.Fprintf(w, "Backend:   %s\n", info.Backend)
	fmt.Fprintf(w, "Years:     %d\n", info.Count)
	fmt.Fprintf(w, "Total days: %d\n", info.TotalDays)
	for _, y := range info.Years {
		fmt.Fprintf(w, "  %d  %d days\n", y, info.DaysByYear[y])
	}
	if info.Pending > 0 {
		fmt.Fprintf(w, "Pending:   %d\n", info.Pending)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func fit(s string, n int) string {
	pad := n - len([]rune(s))
	if pad <= 0 {
		return s
	}
	return s + strings.Repeat(" ", pad)
}
