package ui

import (
	"fmt"

	"github.com/law-makers/shopscrape/pkg/models"
)

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Convenience helper to build styled strings. Keep minimal so tests can use constants directly.
func Bold(s string) string {
	return ColorBold + s + ColorReset
}

func Success(s string) string {
	return ColorGreen + s + ColorReset
}

func Info(s string) string {
	return ColorDim + ColorYellow + s + ColorReset
}

func Error(s string) string {
	return ColorRed + s + ColorReset
}

// Summary renders run tallies on one line, red when anything failed
func Summary(s models.RunSummary) string {
	line := fmt.Sprintf("found %d, scraped %d/%d", s.TotalFound, s.TotalSuccessful, s.TotalAttempted)
	if s.TotalFailed > 0 {
		return Success(line) + ", " + Error(fmt.Sprintf("%d failed", s.TotalFailed))
	}
	return Success(line)
}

// Pool renders pool occupancy
func Pool(s models.PoolStats) string {
	return fmt.Sprintf("%s %d/%d browsers (%d available, %d busy)",
		Bold("pool"), s.Total, s.MaxCapacity, s.Available, s.Busy)
}
