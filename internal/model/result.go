package model

// SignalResult is a signal as reported back to callers.
type SignalResult struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Rule   string `json:"rule"`
}

// PhilosophyMatch is the outcome of scoring one philosophy.
type PhilosophyMatch struct {
	ID              string         `json:"id"`
	DisplayName     string         `json:"displayName"`
	Score           int            `json:"score"`
	MatchedSignals  []SignalResult `json:"matchedSignals"`
	MissingSignals  []SignalResult `json:"missingSignals"`
	IsExcluded      bool           `json:"isExcluded"`
	ExclusionReason string         `json:"exclusionReason,omitempty"`
}

// ComplianceResult is the ranked outcome of scoring a portfolio.
type ComplianceResult struct {
	Philosophies []PhilosophyMatch `json:"philosophies"`
	BestMatch    *PhilosophyMatch  `json:"bestMatch"`
	Features     FeatureVector     `json:"features"`
}
