package cache

import (
	"context"
	"sync"
	"time"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/core"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
)

type monthResult struct {
	days []api.DayRecord
	err  error
}

// fetchYear requests all twelve months concurrently and merges the ones that
// succeed. Failed months are returned for reporting and contribute no keys.
// Only cancellation of ctx is an error; the partial result is then discarded.
func (m *Manager) fetchYear(ctx context.Context, year int) (YearMapping, []time.Month, error) {
	var results [core.MonthsPerYear]monthResult
	var wg sync.WaitGroup

	for i := 0; i < core.MonthsPerYear; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			month := time.Month(idx + 1)
			resp, err := m.source.FetchMonth(ctx, year, month)
			if err != nil {
				results[idx].err = err
				return
			}
			results[idx].days = resp.Days
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	data := make(YearMapping)
	var failed []time.Month
	for i, res := range results {
		month := time.Month(i + 1)
		if res.err != nil {
			appLog.Warn("month fetch failed", "year", year, "month", int(month), "err", res.err)
			failed = append(failed, month)
			continue
		}
		mergeMonth(data, year, res.days)
	}
	return data, failed, nil
}

// mergeMonth adds each record under its date key.
// Records without a date, or dated outside year, are dropped.
func mergeMonth(into YearMapping, year int, days []api.DayRecord) {
	for _, rec := range days {
		key := rec.DateKey()
		if y, ok := core.DateKeyYear(key); !ok || y != year {
			if key != "" {
				appLog.Debug("dropping record outside year", "year", year, "date", key)
			}
			continue
		}
		into[key] = rec
	}
}
