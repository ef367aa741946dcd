// internal/engine/batch/partition.go
package batch

import "github.com/law-makers/shopscrape/pkg/models"

// Partition splits items into consecutive batches of size n. The last batch
// may be shorter. n < 1 is treated as 1.
func Partition(items []models.WorkItem, n int) [][]models.WorkItem {
	if n < 1 {
		n = 1
	}
	batches := make([][]models.WorkItem, 0, (len(items)+n-1)/n)
	for start := 0; start < len(items); start += n {
		end := min(start+n, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}
