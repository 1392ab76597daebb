package core

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Eprint writes msg to stderr when verbose is true.
func Eprint(msg string, verbose bool) {
	if verbose {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// ProgressPrint writes msg to stderr unless quiet is true.
func ProgressPrint(msg string, quiet bool) {
	if !quiet {
		fmt.Fprintln(os.Stderr, msg)
	}
}

// ParseDate parses a YYYY-MM-DD string into a time.Time (date only, at midnight UTC).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(APIDateFmt, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date '%s' (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// ParseYear parses a four digit year.
func ParseYear(s string) (int, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid year '%s' (expected YYYY)", s)
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1 {
		return 0, fmt.Errorf("invalid year '%s' (expected YYYY)", s)
	}
	return year, nil
}

// ParseDateSpec returns a concrete date for flexible spec strings.
// Supports:
// 1. Exact YYYY-MM-DD
// 2. today, tomorrow, yesterday
// 3. Relative forms like d-7, d+3 (days), w-2 (weeks), m+1 (months)
func ParseDateSpec(spec string, now time.Time) (time.Time, error) {
	today := DateOnly(now)

	if t, err := time.Parse(APIDateFmt, spec); err == nil {
		return t, nil
	}

	switch strings.ToLower(spec) {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	relRegex := regexp.MustCompile(`^([dwmy])([+-])(\d+)$`)
	if matches := relRegex.FindStringSubmatch(strings.ToLower(spec)); matches != nil {
		num, _ := strconv.Atoi(matches[3])
		if matches[2] == "-" {
			num = -num
		}

		switch matches[1] {
		case "d":
			return today.AddDate(0, 0, num), nil
		case "w":
			return today.AddDate(0, 0, num*7), nil
		case "m":
			return today.AddDate(0, num, 0), nil
		case "y":
			return today.AddDate(num, 0, 0), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date specification: '%s'", spec)
}

// ParseMonthSpec converts a month spec into (year, month).
// Supports YYYY-MM, this-month, next-month, last-month and an empty spec
// (current month).
func ParseMonthSpec(spec string, now time.Time) (int, time.Month, error) {
	if t, err := time.Parse(APIMonthFmt, spec); err == nil {
		return t.Year(), t.Month(), nil
	}

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	switch strings.ToLower(spec) {
	case "", "this-month":
		return first.Year(), first.Month(), nil
	case "next-month":
		next := first.AddDate(0, 1, 0)
		return next.Year(), next.Month(), nil
	case "last-month":
		prev := first.AddDate(0, -1, 0)
		return prev.Year(), prev.Month(), nil
	}

	return 0, 0, fmt.Errorf("invalid month specification: '%s' (expected YYYY-MM)", spec)
}

// DateOnly returns a time.Time with only the date portion (midnight UTC).
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate formats a time.Time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(APIDateFmt)
}

// DateKey builds the YYYY-MM-DD key for a calendar day.
func DateKey(year int, month time.Month, day int) string {
	return FormatDate(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateKeyYear returns the year a YYYY-MM-DD key belongs to.
// ok is false when the key is not a valid calendar date.
func DateKeyYear(key string) (year int, ok bool) {
	t, err := time.Parse(APIDateFmt, key)
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthDateKeys returns every date key in the given month, in order.
func MonthDateKeys(year int, month time.Month) []string {
	n := DaysInMonth(year, month)
	keys := make([]string, 0, n)
	for d := 1; d <= n; d++ {
		keys = append(keys, DateKey(year, month, d))
	}
	return keys
}
