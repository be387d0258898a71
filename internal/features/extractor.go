// Package features turns raw holdings into the feature vector the scoring
// engine consumes.
package features

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"PortfolioLens/internal/model"
)

// Asset classes.
const (
	AssetEquity       = "equity"
	AssetBond         = "bond"
	AssetCash         = "cash"
	AssetRealAssets   = "real_assets"
	AssetAlternatives = "alternatives"
	AssetCrypto       = "crypto"
	AssetGold         = "gold"
	AssetCommodities  = "commodities"
	AssetTailHedge    = "tail_hedge"
)

// Vehicles.
const (
	VehicleSingleStock  = "single_stock"
	VehicleIndexFund    = "index_fund"
	VehicleActiveFund   = "active_fund"
	VehicleSectorFund   = "sector_fund"
	VehicleLeveragedETF = "leveraged_etf"
	VehicleDirect       = "direct"
)

// Regions.
const (
	RegionDomestic      = "domestic"
	RegionInternational = "international_developed"
	RegionEmerging      = "emerging"
)

var ErrNoHoldings = errors.New("no holdings with positive weight")

// Holding is one position. Weight may be a market value or a fraction; it is
// normalized against the total. ExpenseRatio is in percent (0.03 = 0.03%).
type Holding struct {
	Symbol       string  `json:"symbol" yaml:"symbol" validate:"required"`
	Weight       float64 `json:"weight" yaml:"weight" validate:"gte=0"`
	AssetClass   string  `json:"asset_class" yaml:"asset_class" validate:"oneof=equity bond cash real_assets alternatives crypto gold commodities tail_hedge"`
	Vehicle      string  `json:"vehicle,omitempty" yaml:"vehicle" validate:"omitempty,oneof=single_stock index_fund active_fund sector_fund leveraged_etf direct"`
	Region       string  `json:"region,omitempty" yaml:"region" validate:"omitempty,oneof=domestic international_developed emerging"`
	ExpenseRatio float64 `json:"expense_ratio,omitempty" yaml:"expense_ratio" validate:"gte=0"`
	Dividend     bool    `json:"dividend,omitempty" yaml:"dividend"`
}

// Profile carries the behavioural features that cannot be derived from
// holdings alone.
type Profile struct {
	RebalanceFrequency model.RebalanceFrequency `json:"rebalance_frequency,omitempty" yaml:"rebalance_frequency"`
	TaxSensitivity     model.Sensitivity        `json:"tax_sensitivity,omitempty" yaml:"tax_sensitivity"`
	FeeSensitivity     model.Sensitivity        `json:"fee_sensitivity,omitempty" yaml:"fee_sensitivity"`
	OptionsOverlayType model.OverlayType        `json:"options_overlay_type,omitempty" yaml:"options_overlay_type"`
	TiltValue          float64                  `json:"tilt_value,omitempty" yaml:"tilt_value"`
	TiltSize           float64                  `json:"tilt_size,omitempty" yaml:"tilt_size"`
	TiltQuality        float64                  `json:"tilt_quality,omitempty" yaml:"tilt_quality"`
	TiltMomentum       float64                  `json:"tilt_momentum,omitempty" yaml:"tilt_momentum"`
	TiltLowVol         float64                  `json:"tilt_low_vol,omitempty" yaml:"tilt_low_vol"`
}

// Apply copies the profile onto fv.
func (p Profile) Apply(fv model.FeatureVector) model.FeatureVector {
	fv.RebalanceFrequency = p.RebalanceFrequency
	fv.TaxSensitivity = p.TaxSensitivity
	fv.FeeSensitivity = p.FeeSensitivity
	fv.OptionsOverlayType = p.OptionsOverlayType
	fv.UsesOptionsOverlay = p.OptionsOverlayType != "" && p.OptionsOverlayType != model.OverlayNone
	fv.TiltValue = p.TiltValue
	fv.TiltSize = p.TiltSize
	fv.TiltQuality = p.TiltQuality
	fv.TiltMomentum = p.TiltMomentum
	fv.TiltLowVol = p.TiltLowVol
	return fv
}

// Portfolio is the on-disk form read by LoadPortfolio.
type Portfolio struct {
	Holdings []Holding `json:"holdings" yaml:"holdings" validate:"dive"`
	Profile  Profile   `json:"profile" yaml:"profile"`
}

// Extractor derives a feature vector from holdings.
type Extractor interface {
	Extract(holdings []Holding) (model.FeatureVector, error)
}

var validate = validator.New()

// Basic computes allocation, vehicle, region, cost and concentration
// features. Behavioural fields are left empty.
type Basic struct{}

func (Basic) Extract(holdings []Holding) (model.FeatureVector, error) {
	var fv model.FeatureVector
	total := 0.0
	for i := range holdings {
		if err := validate.Struct(&holdings[i]); err != nil {
			return fv, fmt.Errorf("holding %d (%s): %w", i, holdings[i].Symbol, err)
		}
		total += holdings[i].Weight
	}
	if total <= 0 {
		return fv, ErrNoHoldings
	}

	weights := make([]float64, 0, len(holdings))
	fundWeight, fundCost := 0.0, 0.0
	for _, h := range holdings {
		if h.Weight == 0 {
			continue
		}
		share := h.Weight / total
		weights = append(weights, h.Weight)

		switch h.AssetClass {
		case AssetEquity:
			fv.PctEquity += share
			if h.Dividend {
				fv.PctDividendStocks += share
			}
		case AssetBond:
			fv.PctBonds += share
		case AssetCash:
			fv.PctCash += share
		case AssetRealAssets:
			fv.PctRealAssets += share
		case AssetAlternatives:
			fv.PctAlternatives += share
		case AssetCrypto:
			fv.PctCrypto += share
		case AssetGold:
			fv.PctGold += share
		case AssetCommodities:
			fv.PctCommodities += share
		case AssetTailHedge:
			fv.PctTailHedge += share
		}

		switch h.Vehicle {
		case VehicleSingleStock:
			fv.PctSingleStocks += share
		case VehicleIndexFund:
			fv.PctIndexFunds += share
		case VehicleActiveFund:
			fv.PctActiveFunds += share
		case VehicleSectorFund:
			fv.PctSectorThematic += share
		case VehicleLeveragedETF:
			fv.UsesLeveragedETFs = true
		}
		if isFund(h.Vehicle) {
			fundWeight += share
			fundCost += share * h.ExpenseRatio
		}

		switch h.Region {
		case RegionDomestic:
			fv.PctDomestic += share
		case RegionInternational:
			fv.PctInternationalDeveloped += share
		case RegionEmerging:
			fv.PctEmergingMarkets += share
		}
	}
	if fundWeight > 0 {
		fv.AvgExpenseRatio = fundCost / fundWeight
	}
	return ApplyConcentration(fv, weights), nil
}

func isFund(vehicle string) bool {
	switch vehicle {
	case VehicleIndexFund, VehicleActiveFund, VehicleSectorFund, VehicleLeveragedETF:
		return true
	}
	return false
}

// ParsePortfolio decodes a YAML or JSON portfolio document.
func ParsePortfolio(data []byte) (*Portfolio, error) {
	var p Portfolio
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse portfolio: %w", err)
	}
	return &p, nil
}

// LoadPortfolio reads a portfolio file.
func LoadPortfolio(path string) (*Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio: %w", err)
	}
	return ParsePortfolio(data)
}

// Features runs ex over the portfolio's holdings and applies its profile.
func (p *Portfolio) Features(ex Extractor) (model.FeatureVector, error) {
	fv, err := ex.Extract(p.Holdings)
	if err != nil {
		return fv, err
	}
	return p.Profile.Apply(fv), nil
}
