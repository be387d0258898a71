package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"PortfolioLens/internal/catalog"
	"PortfolioLens/internal/metrics"
	"PortfolioLens/internal/model"
	"PortfolioLens/internal/strategy"
)

// Loader produces a fresh catalog, typically by re-reading a file.
type Loader func() (*model.Catalog, error)

// Scheduler periodically reloads the catalog into the engine.
type Scheduler struct {
	Cron    *cron.Cron
	Engine  *strategy.Engine
	Load    Loader
	Metrics *metrics.Metrics

	log zerolog.Logger
	mu  sync.Mutex
}

// NewScheduler creates a new Scheduler. m may be nil.
func NewScheduler(engine *strategy.Engine, load Loader, m *metrics.Metrics, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Engine:  engine,
		Load:    load,
		Metrics: m,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Register schedules the reload job.
func (s *Scheduler) Register(reloadCron string) error {
	if _, err := s.Cron.AddFunc(reloadCron, s.reloadTask); err != nil {
		return fmt.Errorf("register catalog reload: %w", err)
	}
	s.log.Info().Str("cron", reloadCron).Msg("catalog reload scheduled")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running reload to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// ReloadNow loads the catalog and swaps it into the engine. On error the
// engine keeps serving the previous catalog.
func (s *Scheduler) ReloadNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.Load()
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.CatalogReloadFailed()
		}
		return fmt.Errorf("reload catalog: %w", err)
	}
	for _, issue := range catalog.Lint(cat) {
		s.log.Warn().Str("philosophy", issue.Philosophy).Str("kind", issue.Kind).
			Str("name", issue.Name).Str("rule", issue.Rule).Err(issue.Err).
			Msg("catalog rule will never match")
	}

	prev := s.Engine.Catalog()
	s.Engine.Reload(cat)
	if s.Metrics != nil {
		s.Metrics.CatalogLoaded(cat)
	}
	s.log.Info().Str("previous", prev.Version).Str("version", cat.Version).
		Int("philosophies", len(cat.Philosophies)).Msg("catalog reloaded")
	return nil
}

func (s *Scheduler) reloadTask() {
	if err := s.ReloadNow(); err != nil {
		s.log.Error().Err(err).Msg("catalog reload failed, keeping previous catalog")
	}
}
