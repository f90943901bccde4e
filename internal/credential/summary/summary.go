// Package summary derives the plaintext disclosure digest from an assessment
// report: a coarse performance band plus highlight bullets. The digest is the
// only part of a report ever returned without payment, so it must never carry
// raw scores.
package summary

import (
	"fmt"
	"sort"

	"credvault/internal/credential/models"
	dErrors "credvault/pkg/domain-errors"
)

const (
	bandAThreshold = 75
	bandBThreshold = 60
	maxBullets     = 3
)

// Summarize maps per-dimension scores (0-100) and optional highlight hints
// to a Summary. The band comes from the mean score: A at 75 and above, B at
// 60 and above, C otherwise. Bullets prefer caller hints, then fill from the
// strongest dimensions, capped at three.
func Summarize(scores map[string]float64, hints []string) (*models.Summary, error) {
	if len(scores) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one score is required")
	}
	for dim, score := range scores {
		if score < 0 || score > 100 {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("score for %q out of range: %v", dim, score))
		}
	}

	var total float64
	for _, score := range scores {
		total += score
	}
	avg := total / float64(len(scores))

	band := "C"
	switch {
	case avg >= bandAThreshold:
		band = "A"
	case avg >= bandBThreshold:
		band = "B"
	}

	bullets := make([]string, 0, maxBullets)
	for _, hint := range hints {
		if hint == "" || len(bullets) == maxBullets {
			continue
		}
		bullets = append(bullets, hint)
	}
	for _, dim := range strongestDimensions(scores) {
		if len(bullets) == maxBullets {
			break
		}
		bullets = append(bullets, describeStrength(dim, scores[dim]))
	}

	return &models.Summary{Band: band, Bullets: bullets}, nil
}

// strongestDimensions orders dimension names by score descending, name
// ascending for ties so output is deterministic.
func strongestDimensions(scores map[string]float64) []string {
	dims := make([]string, 0, len(scores))
	for dim := range scores {
		dims = append(dims, dim)
	}
	sort.Slice(dims, func(i, j int) bool {
		if scores[dims[i]] != scores[dims[j]] {
			return scores[dims[i]] > scores[dims[j]]
		}
		return dims[i] < dims[j]
	})
	return dims
}

func describeStrength(dim string, score float64) string {
	switch {
	case score >= bandAThreshold:
		return fmt.Sprintf("Strong performance in %s", dim)
	case score >= bandBThreshold:
		return fmt.Sprintf("Solid performance in %s", dim)
	default:
		return fmt.Sprintf("Developing skills in %s", dim)
	}
}
