package features

import (
	"sort"

	"PortfolioLens/internal/model"
)

// ConcentrationStats describes how concentrated a set of positions is.
type ConcentrationStats struct {
	Top1Pct    float64 `json:"top_1_position_pct"`
	Top5Pct    float64 `json:"top_5_positions_pct"`
	Count      int     `json:"n_positions"`
	Herfindahl float64 `json:"herfindahl_index"`
}

// Concentration computes position concentration from raw weights. Weights are
// normalized to sum to 1; zero and negative weights are ignored.
func Concentration(weights []float64) ConcentrationStats {
	pos := make([]float64, 0, len(weights))
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			pos = append(pos, w)
			total += w
		}
	}
	if len(pos) == 0 {
		return ConcentrationStats{}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(pos)))

	stats := ConcentrationStats{Count: len(pos)}
	for i, w := range pos {
		share := w / total
		if i == 0 {
			stats.Top1Pct = share
		}
		if i < 5 {
			stats.Top5Pct += share
		}
		stats.Herfindahl += share * share
	}
	return stats
}

// ApplyConcentration returns a copy of fv with its concentration fields
// computed from weights. An empty weight list leaves fv unchanged.
func ApplyConcentration(fv model.FeatureVector, weights []float64) model.FeatureVector {
	stats := Concentration(weights)
	if stats.Count == 0 {
		return fv
	}
	fv.Top1PositionPct = stats.Top1Pct
	fv.Top5PositionsPct = stats.Top5Pct
	fv.NPositions = stats.Count
	fv.HerfindahlIndex = stats.Herfindahl
	return fv
}
