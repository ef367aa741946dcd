// internal/engine/batch/concurrency.go
package batch

import "github.com/rs/zerolog/log"

// EffectiveConcurrency clamps a requested concurrency to [1, limit].
// limit <= 0 means no upper bound.
func EffectiveConcurrency(requested, limit int) int {
	n := max(requested, 1)
	if limit > 0 && n > limit {
		log.Debug().Int("requested", requested).Int("limit", limit).Msg("Concurrency capped")
		n = limit
	}
	return n
}
