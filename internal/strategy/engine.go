// Package strategy scores a portfolio's feature vector against the
// philosophy catalog.
package strategy

import (
	"math"
	"sort"
	"sync/atomic"

	"PortfolioLens/internal/model"
	"PortfolioLens/internal/rules"
)

// Engine ranks philosophies for a feature vector. The catalog it scores
// against is swapped atomically on Reload, so a call in flight always sees
// one consistent catalog version. Engine is safe for concurrent use.
type Engine struct {
	compiler *rules.Compiler
	current  atomic.Pointer[snapshot]
}

// NewEngine compiles cat and returns an engine for it. A nil compiler gets
// a silent default one.
func NewEngine(cat *model.Catalog, compiler *rules.Compiler) *Engine {
	if compiler == nil {
		compiler = rules.NewCompiler()
	}
	e := &Engine{compiler: compiler}
	e.Reload(cat)
	return e
}

// Reload compiles cat and makes it the catalog used by later calls.
func (e *Engine) Reload(cat *model.Catalog) {
	e.current.Store(compileCatalog(cat, e.compiler))
}

// Catalog returns the catalog currently in use.
func (e *Engine) Catalog() *model.Catalog {
	return e.current.Load().catalog
}

// ScorePortfolio scores every philosophy in the catalog and ranks them by
// score, highest first. Ties keep catalog order. It never fails: broken
// rules simply do not match.
func (e *Engine) ScorePortfolio(fv model.FeatureVector) *model.ComplianceResult {
	snap := e.current.Load()
	ctx := fv.Context()

	matches := make([]model.PhilosophyMatch, len(snap.philosophies))
	for i := range snap.philosophies {
		matches[i] = scorePhilosophy(&snap.philosophies[i], ctx)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	result := &model.ComplianceResult{
		Philosophies: matches,
		Features:     fv,
	}
	if len(matches) > 0 && matches[0].Score > 0 {
		best := matches[0]
		result.BestMatch = &best
	}
	return result
}

// scorePhilosophy evaluates exclusions in order and stops at the first hit;
// an excluded philosophy scores 0 and has no signals evaluated. Otherwise
// every signal is evaluated so the missing list is complete.
func scorePhilosophy(cp *compiledPhilosophy, ctx rules.Context) model.PhilosophyMatch {
	m := model.PhilosophyMatch{
		ID:             cp.def.ID,
		DisplayName:    cp.def.DisplayName,
		MatchedSignals: []model.SignalResult{},
		MissingSignals: []model.SignalResult{},
	}

	for i, excluded := range cp.exclusions {
		if excluded(ctx) {
			m.IsExcluded = true
			m.ExclusionReason = cp.def.Exclusions[i]
			return m
		}
	}

	raw := 0
	for _, s := range cp.signals {
		res := model.SignalResult{Name: s.signal.Name, Points: s.signal.Points, Rule: s.signal.Rule}
		if s.match(ctx) {
			m.MatchedSignals = append(m.MatchedSignals, res)
			raw += s.signal.Points
		} else {
			m.MissingSignals = append(m.MissingSignals, res)
		}
	}
	m.Score = normalize(raw, cp.maxPoints)
	return m
}

// normalize maps raw points onto 0-100, rounding half away from zero.
// Catalogs that skipped validation may carry zero or negative points, so
// the result is clamped.
func normalize(raw, total int) int {
	if total <= 0 {
		return 0
	}
	score := int(math.Round(float64(raw) / float64(total) * 100))
	return min(max(score, 0), 100)
}
