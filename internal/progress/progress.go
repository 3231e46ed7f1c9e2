// Package progress implements the Progress/ETA (C5) pure derived values:
// percentage, average task duration, and estimated time remaining.
//
// Grounded on original_source/src/results/db.rs's ProgressData::percentage();
// never cached long-term per spec.md §4.5, so these stay pure functions
// with no store dependency.
package progress

import "time"

// Percentage returns 100*completed/total, or 0 when total is 0.
func Percentage(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(completed) / float64(total)
}

// AvgTaskSeconds returns the average wall-clock seconds per completed
// package since startedAt, or (0, false) if undefined (no start time, or
// nothing completed yet).
func AvgTaskSeconds(startedAt *time.Time, now time.Time, completed int) (float64, bool) {
	if startedAt == nil || completed <= 0 {
		return 0, false
	}
	elapsed := now.Sub(*startedAt).Seconds()
	return elapsed / float64(completed), true
}

// ETASeconds returns the estimated remaining seconds given an average
// task duration and the remaining package count, or (0, false) if
// avgTaskSeconds is undefined or nothing remains.
func ETASeconds(avgTaskSeconds float64, avgDefined bool, completed, total int) (float64, bool) {
	if !avgDefined {
		return 0, false
	}
	remaining := total - completed
	if remaining <= 0 {
		return 0, false
	}
	return avgTaskSeconds * float64(remaining), true
}
