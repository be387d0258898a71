package model

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"PortfolioLens/internal/rules"
)

// ErrNonFinite is returned for a feature holding NaN or an infinity, which
// has no JSON encoding.
var ErrNonFinite = errors.New("feature value is not a finite number")

// RebalanceFrequency describes how a portfolio is rebalanced.
type RebalanceFrequency string

const (
	RebalanceNone      RebalanceFrequency = "none"
	RebalanceAdHoc     RebalanceFrequency = "ad_hoc"
	RebalanceMonthly   RebalanceFrequency = "monthly"
	RebalanceQuarterly RebalanceFrequency = "quarterly"
	RebalanceAnnual    RebalanceFrequency = "annual"
	RebalanceThreshold RebalanceFrequency = "threshold"
)

// Sensitivity grades how much the investor cares about taxes or fees.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// OverlayType is the kind of options strategy layered on the portfolio.
type OverlayType string

const (
	OverlayNone            OverlayType = "none"
	OverlayCoveredCalls    OverlayType = "covered_calls"
	OverlayProtectivePuts  OverlayType = "protective_puts"
	OverlayCollars         OverlayType = "collars"
	OverlayCashSecuredPuts OverlayType = "cash_secured_puts"
)

// FeatureVector is the normalized description of a portfolio and the only
// input to scoring. Percentages are fractions (0.25 = 25%); composition
// buckets overlap and need not sum to 1. Tilts are in [-1, +1].
type FeatureVector struct {
	// Asset classes
	PctEquity       float64 `json:"pct_equity" yaml:"pct_equity"`
	PctBonds        float64 `json:"pct_bonds" yaml:"pct_bonds"`
	PctCash         float64 `json:"pct_cash" yaml:"pct_cash"`
	PctRealAssets   float64 `json:"pct_real_assets" yaml:"pct_real_assets"`
	PctAlternatives float64 `json:"pct_alternatives" yaml:"pct_alternatives"`
	PctCrypto       float64 `json:"pct_crypto" yaml:"pct_crypto"`
	PctGold         float64 `json:"pct_gold" yaml:"pct_gold"`
	PctCommodities  float64 `json:"pct_commodities" yaml:"pct_commodities"`
	PctTailHedge    float64 `json:"pct_tail_hedge" yaml:"pct_tail_hedge"`

	// Implementation style
	PctSingleStocks   float64 `json:"pct_single_stocks" yaml:"pct_single_stocks"`
	PctIndexFunds     float64 `json:"pct_index_funds" yaml:"pct_index_funds"`
	PctActiveFunds    float64 `json:"pct_active_funds" yaml:"pct_active_funds"`
	PctSectorThematic float64 `json:"pct_sector_thematic" yaml:"pct_sector_thematic"`
	PctDividendStocks float64 `json:"pct_dividend_stocks" yaml:"pct_dividend_stocks"`

	// Geography
	PctDomestic               float64 `json:"pct_domestic" yaml:"pct_domestic"`
	PctInternationalDeveloped float64 `json:"pct_international_developed" yaml:"pct_international_developed"`
	PctEmergingMarkets        float64 `json:"pct_emerging_markets" yaml:"pct_emerging_markets"`

	// Concentration
	Top1PositionPct  float64 `json:"top_1_position_pct" yaml:"top_1_position_pct"`
	Top5PositionsPct float64 `json:"top_5_positions_pct" yaml:"top_5_positions_pct"`
	NPositions       int     `json:"n_positions" yaml:"n_positions"`
	HerfindahlIndex  float64 `json:"herfindahl_index" yaml:"herfindahl_index"`

	// Factor tilts
	TiltValue    float64 `json:"tilt_value" yaml:"tilt_value"`
	TiltSize     float64 `json:"tilt_size" yaml:"tilt_size"`
	TiltQuality  float64 `json:"tilt_quality" yaml:"tilt_quality"`
	TiltMomentum float64 `json:"tilt_momentum" yaml:"tilt_momentum"`
	TiltLowVol   float64 `json:"tilt_low_vol" yaml:"tilt_low_vol"`

	// Behaviour and implementation flags
	RebalanceFrequency RebalanceFrequency `json:"rebalance_frequency,omitempty" yaml:"rebalance_frequency"`
	TaxSensitivity     Sensitivity        `json:"tax_sensitivity,omitempty" yaml:"tax_sensitivity"`
	FeeSensitivity     Sensitivity        `json:"fee_sensitivity,omitempty" yaml:"fee_sensitivity"`
	UsesLeveragedETFs  bool               `json:"uses_leveraged_etfs" yaml:"uses_leveraged_etfs"`
	UsesOptionsOverlay bool               `json:"uses_options_overlay" yaml:"uses_options_overlay"`
	OptionsOverlayType OverlayType        `json:"options_overlay_type,omitempty" yaml:"options_overlay_type"`
	AvgExpenseRatio    float64            `json:"avg_expense_ratio" yaml:"avg_expense_ratio"`
}

// Context exposes the vector to rule predicates under its snake_case field
// names. Empty enums are left out so rules see them as undefined.
func (f *FeatureVector) Context() rules.Context {
	ctx := rules.Context{
		"pct_equity":                  f.PctEquity,
		"pct_bonds":                   f.PctBonds,
		"pct_cash":                    f.PctCash,
		"pct_real_assets":             f.PctRealAssets,
		"pct_alternatives":            f.PctAlternatives,
		"pct_crypto":                  f.PctCrypto,
		"pct_gold":                    f.PctGold,
		"pct_commodities":             f.PctCommodities,
		"pct_tail_hedge":              f.PctTailHedge,
		"pct_single_stocks":           f.PctSingleStocks,
		"pct_index_funds":             f.PctIndexFunds,
		"pct_active_funds":            f.PctActiveFunds,
		"pct_sector_thematic":         f.PctSectorThematic,
		"pct_dividend_stocks":         f.PctDividendStocks,
		"pct_domestic":                f.PctDomestic,
		"pct_international_developed": f.PctInternationalDeveloped,
		"pct_emerging_markets":        f.PctEmergingMarkets,
		"top_1_position_pct":          f.Top1PositionPct,
		"top_5_positions_pct":         f.Top5PositionsPct,
		"n_positions":                 float64(f.NPositions),
		"herfindahl_index":            f.HerfindahlIndex,
		"tilt_value":                  f.TiltValue,
		"tilt_size":                   f.TiltSize,
		"tilt_quality":                f.TiltQuality,
		"tilt_momentum":               f.TiltMomentum,
		"tilt_low_vol":                f.TiltLowVol,
		"uses_leveraged_etfs":         f.UsesLeveragedETFs,
		"uses_options_overlay":        f.UsesOptionsOverlay,
		"avg_expense_ratio":           f.AvgExpenseRatio,
	}
	if f.RebalanceFrequency != "" {
		ctx["rebalance_frequency"] = string(f.RebalanceFrequency)
	}
	if f.TaxSensitivity != "" {
		ctx["tax_sensitivity"] = string(f.TaxSensitivity)
	}
	if f.FeeSensitivity != "" {
		ctx["fee_sensitivity"] = string(f.FeeSensitivity)
	}
	if f.OptionsOverlayType != "" {
		ctx["options_overlay_type"] = string(f.OptionsOverlayType)
	}
	return ctx
}

// CheckFinite reports the first numeric feature, by name, that is NaN or
// infinite.
func (f *FeatureVector) CheckFinite() error {
	ctx := f.Context()
	for _, name := range slices.Sorted(maps.Keys(ctx)) {
		if v, ok := ctx[name].(float64); ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return fmt.Errorf("%w: %s = %v", ErrNonFinite, name, v)
		}
	}
	return nil
}
