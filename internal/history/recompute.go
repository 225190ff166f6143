// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

package history

import (
	"math"
	"sort"

	"github.com/tomtom215/pinboard/internal/models"
)

// Recompute derives a day's summary and value histogram from its changes.
// It is a pure function of its input and is the only place either value
// is produced.
func Recompute(changes []models.Change) (models.Summary, []models.ValueGroup) {
	if len(changes) == 0 {
		return models.Summary{}, []models.ValueGroup{}
	}

	var (
		sum    float64
		minVal = changes[0].Value
		maxVal = changes[0].Value
		counts = make(map[float64]int, len(changes))
	)
	for _, c := range changes {
		sum += c.Value
		minVal = math.Min(minVal, c.Value)
		maxVal = math.Max(maxVal, c.Value)
		counts[c.Value]++
	}

	groups := make([]models.ValueGroup, 0, len(counts))
	for v, n := range counts {
		groups = append(groups, models.ValueGroup{Value: v, Count: n})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })

	return models.Summary{
		AvgValue: roundTo2(sum / float64(len(changes))),
		MinValue: minVal,
		MaxValue: maxVal,
		Count:    len(changes),
	}, groups
}

func roundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// apply recomputes the derived fields of r in place.
func apply(r *models.DateRecord) {
	r.Summary, r.ValueGroups = Recompute(r.Changes)
}
