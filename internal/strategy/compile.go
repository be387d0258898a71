package strategy

import (
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/rules"
)

type compiledSignal struct {
	signal model.Signal
	match  rules.Predicate
}

type compiledPhilosophy struct {
	def        *model.Philosophy
	exclusions []rules.Predicate
	signals    []compiledSignal
	maxPoints  int
}

// snapshot is one immutable catalog version with every rule compiled.
type snapshot struct {
	catalog      *model.Catalog
	philosophies []compiledPhilosophy
}

func compileCatalog(cat *model.Catalog, c *rules.Compiler) *snapshot {
	snap := &snapshot{
		catalog:      cat,
		philosophies: make([]compiledPhilosophy, len(cat.Philosophies)),
	}
	for i := range cat.Philosophies {
		def := &cat.Philosophies[i]
		cp := compiledPhilosophy{
			def:        def,
			exclusions: make([]rules.Predicate, len(def.Exclusions)),
			signals:    make([]compiledSignal, len(def.Detection.Signals)),
			maxPoints:  def.MaxPoints(),
		}
		for j, rule := range def.Exclusions {
			cp.exclusions[j] = c.Compile(rule)
		}
		for j, s := range def.Detection.Signals {
			cp.signals[j] = compiledSignal{signal: s, match: c.Compile(s.Rule)}
		}
		snap.philosophies[i] = cp
	}
	return snap
}
