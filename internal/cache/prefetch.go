package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/colthorp/ordo-cli-go/internal/core"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
)

// YearResult is the outcome of loading one year in a batch.
type YearResult struct {
	Year int
	Data YearMapping
	Err  error
}

// GetYears loads several years with at most parallel fetch cycles running
// at once. Results are ordered by year; duplicate years are loaded once.
func (m *Manager) GetYears(ctx context.Context, years []int, parallel int) []YearResult {
	if parallel <= 0 {
		parallel = core.PrefetchMaxWorkers
	}

	unique := uniqueYears(years)
	results := make([]YearResult, len(unique))

	if len(unique) == 1 {
		data, err := m.GetYear(ctx, unique[0])
		results[0] = YearResult{Year: unique[0], Data: data, Err: err}
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, parallel)

	for i, year := range unique {
		wg.Add(1)
		go func(idx, y int) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				results[idx] = YearResult{Year: y, Err: ctx.Err()}
				return
			}
			defer func() { <-semaphore }()

			data, err := m.GetYear(ctx, y)
			results[idx] = YearResult{Year: y, Data: data, Err: err}
		}(i, year)
	}

	wg.Wait()
	return results
}

// Prefetch warms the cache for years and returns the first error seen.
// Years that fail are logged; the others stay cached.
func (m *Manager) Prefetch(ctx context.Context, years []int, parallel int) error {
	var firstErr error
	for _, res := range m.GetYears(ctx, years, parallel) {
		if res.Err != nil {
			appLog.Error("prefetch failed", res.Err, "year", res.Year)
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		appLog.Debug("prefetched year", "year", res.Year, "days", len(res.Data))
	}
	return firstErr
}

func uniqueYears(years []int) []int {
	seen := make(map[int]bool, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Ints(out)
	return out
}

// MergeResults combines batch results into one mapping.
// The first failed year's error is returned and the merge is abandoned.
func MergeResults(results []YearResult) (YearMapping, error) {
	merged := make(YearMapping)
	for _, res := range results {
		if res.Err != nil {
			return nil, res.Err
		}
		for k, v := range res.Data {
			merged[k] = v
		}
	}
	return merged, nil
}
