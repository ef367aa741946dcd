package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/law-makers/shopscrape/internal/scraper"
	"github.com/spf13/cobra"

	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProducts(t *testing.T) {
	products := []*models.Product{{Name: "Midi dress", ProductURL: "https://www.asos.com/x/prd/1"}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeProducts(&buf, products, "JSON"))
		var out []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "Midi dress", out[0]["name"])
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeProducts(&buf, products, "csv"))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Len(t, lines, 2)
		assert.Contains(t, lines[1], "Midi dress")
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, writeProducts(&bytes.Buffer{}, products, "xml"))
	})
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"scrape", "search"},
		{"scrape", "category"},
		{"serve"},
		{"categories"},
		{"pool", "info"},
		{"pool", "check"},
		{"credentials", "set"},
		{"db", "init"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestCategoriesCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CI", "true")
	t.Setenv("HOME", t.TempDir())

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"categories", "men.shoes"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	out := buf.String()
	assert.Contains(t, out, "men.shoes.trainers")
	assert.NotContains(t, out, "women.")
}

func partialResult() *scraper.Result {
	return &scraper.Result{
		Products: []*models.Product{{Name: "Wool coat", ProductURL: "https://www.asos.com/x/prd/7"}},
		Summary:  models.RunSummary{TotalFound: 300, TotalAttempted: 10, TotalSuccessful: 1, TotalFailed: 9},
	}
}

func TestFinishScrapeWritesPartialResults(t *testing.T) {
	scrapeOutput, scrapeFormat = "", "json"

	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := finishScrape(cmd, partialResult(), context.DeadlineExceeded)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var products []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &products))
	require.Len(t, products, 1)
	assert.Equal(t, "Wool coat", products[0]["name"])
	assert.Contains(t, errOut.String(), "found 300")
}

func TestFinishScrapeSavesPartialResultsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coats.csv")
	scrapeOutput, scrapeFormat = path, "json"
	t.Cleanup(func() { scrapeOutput = "" })

	cmd := &cobra.Command{}
	cmd.SetErr(&bytes.Buffer{})

	err := finishScrape(cmd, partialResult(), context.Canceled)
	require.ErrorIs(t, err, context.Canceled)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "Wool coat")
}

func TestFinishScrapeNothingToWrite(t *testing.T) {
	scrapeOutput, scrapeFormat = "", "json"
	boom := errors.New("product discovery failed")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	assert.ErrorIs(t, finishScrape(cmd, &scraper.Result{}, boom), boom)
	assert.ErrorIs(t, finishScrape(cmd, nil, boom), boom)
	assert.Empty(t, out.String())
}
