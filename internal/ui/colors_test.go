package ui

import (
	"strings"
	"testing"

	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestSummary(t *testing.T) {
	ok := Summary(models.RunSummary{TotalFound: 20, TotalAttempted: 5, TotalSuccessful: 5})
	assert.Contains(t, ok, "found 20, scraped 5/5")
	assert.NotContains(t, ok, ColorRed)

	failed := Summary(models.RunSummary{TotalFound: 20, TotalAttempted: 5, TotalSuccessful: 3, TotalFailed: 2})
	assert.Contains(t, failed, "2 failed")
	assert.True(t, strings.Contains(failed, ColorRed))
}

func TestPool(t *testing.T) {
	s := Pool(models.PoolStats{Total: 2, Available: 1, Busy: 1, MaxCapacity: 5})
	assert.Contains(t, s, "2/5 browsers (1 available, 1 busy)")
}
