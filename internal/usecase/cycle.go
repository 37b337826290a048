package usecase

import (
	"context"
	"log/slog"
	"time"

	"contentpipeline/internal/ports"
)

// CycleDeps wires the three stages and the connectivity probe into one
// automation cycle.
type CycleDeps struct {
	Ingestor   *Ingestor
	Engine     *Engine
	Publisher  *Publisher
	CMS        ports.CMS
	MaxPerRun  int
	StagePause time.Duration
	Logger     *slog.Logger
}

// Cycle executes ingest, rewrite, and publish sequentially with a bounded
// batch per stage, so one slow external service cannot starve the others
// within a run.
type Cycle struct {
	ingestor   *Ingestor
	engine     *Engine
	publisher  *Publisher
	cms        ports.CMS
	maxPerRun  int
	stagePause time.Duration
	logger     *slog.Logger
}

// NewCycle constructs the cycle orchestration.
func NewCycle(deps CycleDeps) *Cycle {
	return &Cycle{
		ingestor:   deps.Ingestor,
		engine:     deps.Engine,
		publisher:  deps.Publisher,
		cms:        deps.CMS,
		maxPerRun:  deps.MaxPerRun,
		stagePause: deps.StagePause,
		logger:     deps.Logger,
	}
}

// Run performs one full automation cycle. If the publishing target is
// unreachable the whole cycle is skipped; the next scheduled cycle proceeds
// normally.
func (c *Cycle) Run(ctx context.Context) error {
	if err := c.cms.Ping(ctx); err != nil {
		c.logger.Warn("publishing target unreachable, skipping cycle", "error", err)
		return nil
	}

	c.logger.Info("automation cycle started")

	ingested := c.ingestor.FetchNew(ctx)
	c.pause(ctx)

	processed := c.engine.RewritePending(ctx, c.maxPerRun)
	c.pause(ctx)

	published := c.publisher.PublishProcessed(ctx, c.maxPerRun)

	c.logger.Info("automation cycle completed",
		"new", ingested, "processed", processed, "published", published)
	return ctx.Err()
}

// Cleanup runs the retention pass.
func (c *Cycle) Cleanup(ctx context.Context) error {
	c.logger.Info("cleanup cycle started")
	if _, err := c.ingestor.CleanupOld(ctx); err != nil {
		c.logger.Error("cleanup failed", "error", err)
		return err
	}
	return nil
}

func (c *Cycle) pause(ctx context.Context) {
	if c.stagePause <= 0 {
		return
	}
	select {
	case <-time.After(c.stagePause):
	case <-ctx.Done():
	}
}
