package ordo

import (
	"time"

	"github.com/colthorp/ordo-cli-go/internal/core"
)

// GridWeeks is the fixed number of rows in a month grid.
const GridWeeks = 6

// Cell is one day of a month grid.
type Cell struct {
	Date    time.Time
	Key     string
	InMonth bool
}

// Grid is a month laid out as GridWeeks rows of seven days.
type Grid struct {
	Year   int
	Month  time.Month
	Monday bool
	Weeks  [GridWeeks][7]Cell
}

// MonthGrid lays out month starting weeks on Sunday, or Monday when mondayFirst.
// Leading and trailing cells come from the adjacent months.
func MonthGrid(year int, month time.Month, mondayFirst bool) Grid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(first.Weekday())
	if mondayFirst {
		offset = (offset + 6) % 7
	}
	start := first.AddDate(0, 0, -offset)

	g := Grid{Year: year, Month: month, Monday: mondayFirst}
	for w := 0; w < GridWeeks; w++ {
		for d := 0; d < 7; d++ {
			date := start.AddDate(0, 0, w*7+d)
			g.Weeks[w][d] = Cell{
				Date:    date,
				Key:     core.FormatDate(date),
				InMonth: date.Month() == month,
			}
		}
	}
	return g
}

// Keys returns every date key in the grid, grouped by year.
func (g Grid) Keys() map[int][]string {
	out := make(map[int][]string)
	for _, week := range g.Weeks {
		for _, c := range week {
			out[c.Date.Year()] = append(out[c.Date.Year()], c.Key)
		}
	}
	return out
}

// Weekdays returns abbreviated weekday headers in grid order.
func (g Grid) Weekdays() []string {
	names := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	if g.Monday {
		return append(names[1:], names[0])
	}
	return names
}

// YearsNeeded lists the years a month grid can touch: the year itself plus
// the previous year for January and the next year for December.
func YearsNeeded(year int, month time.Month) []int {
	years := []int{year}
	if month == time.January {
		years = append([]int{year - 1}, years...)
	}
	if month == time.December {
		years = append(years, year+1)
	}
	return years
}
