// Package aggregator derives timing and throughput figures from finished orders.
// Everything here is pure computation over values handed in by the caller.
package aggregator

import (
	"time"

	"github.com/mselser95/execution-harness/pkg/types"
)

// Sample is one tracked order as seen by the aggregator.
type Sample struct {
	ResponseTime time.Duration  // Submission to terminal status
	Completed    bool           // Reached a terminal status
	Confirmed    bool           // Terminal status was confirmed
	Statuses     []types.Status // Every status observed
}

// Summary is the aggregate over a set of samples.
type Summary struct {
	Total             int                  `json:"total"`
	Completed         int                  `json:"completed"`
	Confirmed         int                  `json:"confirmed"`
	Failed            int                  `json:"failed"`
	AvgResponse       time.Duration        `json:"avg_response_ns"`
	MinResponse       time.Duration        `json:"min_response_ns"`
	MaxResponse       time.Duration        `json:"max_response_ns"`
	RequestsPerMinute float64              `json:"requests_per_minute"`
	SuccessRate       float64              `json:"success_rate"`
	StatusCounts      map[types.Status]int `json:"status_counts"`
	Elapsed           time.Duration        `json:"elapsed_ns"`
}

// Summarize aggregates samples observed over elapsed wall-clock time.
// Response times are taken from completed samples only. Empty input or zero
// elapsed time yields zero rates instead of dividing by zero.
func Summarize(samples []Sample, elapsed time.Duration) Summary {
	summary := Summary{
		Total:        len(samples),
		StatusCounts: make(map[types.Status]int),
		Elapsed:      elapsed,
	}

	var total time.Duration
	for _, s := range samples {
		for _, status := range s.Statuses {
			summary.StatusCounts[status]++
		}

		if !s.Completed {
			continue
		}

		summary.Completed++
		if s.Confirmed {
			summary.Confirmed++
		} else {
			summary.Failed++
		}

		total += s.ResponseTime
		if summary.Completed == 1 || s.ResponseTime < summary.MinResponse {
			summary.MinResponse = s.ResponseTime
		}
		if s.ResponseTime > summary.MaxResponse {
			summary.MaxResponse = s.ResponseTime
		}
	}

	if summary.Completed > 0 {
		summary.AvgResponse = total / time.Duration(summary.Completed)
	}

	summary.RequestsPerMinute = RequestsPerMinute(summary.Completed, elapsed)

	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Confirmed) / float64(summary.Total)
	}

	return summary
}

// RequestsPerMinute is completed / (elapsedMs / 60000), zero when elapsed is not positive.
func RequestsPerMinute(completed int, elapsed time.Duration) float64 {
	elapsedMs := float64(elapsed) / float64(time.Millisecond)
	if elapsedMs <= 0 {
		return 0
	}
	return float64(completed) / (elapsedMs / 60000)
}

// Totals is the pass/fail tally of a suite.
type Totals struct {
	Total          int     `json:"total"`
	Passed         int     `json:"passed"`
	Failed         int     `json:"failed"`
	SuccessPercent float64 `json:"success_percent"`
}

// Tally counts passed and failed entries.
func Tally(passed []bool) Totals {
	totals := Totals{Total: len(passed)}
	for _, ok := range passed {
		if ok {
			totals.Passed++
		} else {
			totals.Failed++
		}
	}

	if totals.Total > 0 {
		totals.SuccessPercent = float64(totals.Passed) / float64(totals.Total) * 100
	}

	return totals
}

// Ratio returns part/whole, zero when whole is zero.
func Ratio(part int, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
