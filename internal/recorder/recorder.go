package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"PortfolioLens/internal/model"
)

// PhilosophyScore is one philosophy's outcome within a run.
type PhilosophyScore struct {
	ID              string `json:"id"`
	Score           int    `json:"score"`
	Excluded        bool   `json:"excluded"`
	ExclusionReason string `json:"exclusion_reason,omitempty"`
}

// Run is one recorded scoring call.
type Run struct {
	ID             string              `json:"id"`
	Timestamp      time.Time           `json:"timestamp"`
	CatalogVersion string              `json:"catalog_version"`
	BestMatch      string              `json:"best_match,omitempty"`
	BestScore      int                 `json:"best_score"`
	Scores         []PhilosophyScore   `json:"scores"`
	Features       model.FeatureVector `json:"features"`
}

// NewRun builds a Run from a scoring result, keeping the ranked order.
func NewRun(res *model.ComplianceResult, catalogVersion string) *Run {
	run := &Run{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		CatalogVersion: catalogVersion,
		Scores:         make([]PhilosophyScore, len(res.Philosophies)),
		Features:       res.Features,
	}
	if res.BestMatch != nil {
		run.BestMatch = res.BestMatch.ID
		run.BestScore = res.BestMatch.Score
	}
	for i, m := range res.Philosophies {
		run.Scores[i] = PhilosophyScore{
			ID:              m.ID,
			Score:           m.Score,
			Excluded:        m.IsExcluded,
			ExclusionReason: m.ExclusionReason,
		}
	}
	return run
}

// Recorder persists scoring history.
type Recorder interface {
	RecordRun(ctx context.Context, run *Run) error
	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
