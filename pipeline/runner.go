package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/models"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageHarvest Stage = "harvest"
	StageFilter  Stage = "filter"
	StageEnrich  Stage = "enrich"
	StageNotify  Stage = "notify"
)

// AllStages lists the stages in execution order.
var AllStages = []Stage{StageHarvest, StageFilter, StageEnrich, StageNotify}

// ParseStages reads "all" or a comma separated list of stage names. The
// result is always in execution order.
func ParseStages(s string) ([]Stage, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return slices.Clone(AllStages), nil
	}

	want := make(map[Stage]bool)
	for _, part := range strings.Split(s, ",") {
		st := Stage(strings.TrimSpace(part))
		if !slices.Contains(AllStages, st) {
			return nil, fmt.Errorf("unknown stage %q", part)
		}
		want[st] = true
	}

	var out []Stage
	for _, st := range AllStages {
		if want[st] {
			out = append(out, st)
		}
	}
	return out, nil
}

// Harvester replaces the listings snapshot.
type Harvester interface {
	Run(ctx context.Context) (*models.HarvestResult, error)
}

// Enricher attaches descriptions to candidates.
type Enricher interface {
	Run(ctx context.Context) (*models.EnrichResult, error)
}

// StageError reports the stage that halted a run.
type StageError struct {
	RunID string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("run %s: stage %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Runner executes stages in order and stops at the first failure.
type Runner struct {
	Harvester Harvester
	Filter    *FilterEngine
	Enricher  Enricher
	Notifier  *Notifier
	Criteria  []models.Criterion
	Transport messenger.Transport
	Metrics   *Metrics
}

// Run executes stages and returns a *StageError for the first failing one.
// Later stages are not started and earlier stages are not undone.
func (r *Runner) Run(ctx context.Context, stages []Stage) error {
	runID := uuid.NewString()
	log := slog.With(slog.String("run_id", runID))
	log.Info("pipeline run started", slog.Any("stages", stages))
	started := time.Now()

	for _, st := range stages {
		stageStart := time.Now()
		err := r.runStage(ctx, st)
		elapsed := time.Since(stageStart)
		r.Metrics.observeStage(st, elapsed, err)

		if err != nil {
			log.Error("stage failed", slog.String("stage", string(st)), slog.Duration("elapsed", elapsed), slog.Any("error", err))
			r.sendLog(context.WithoutCancel(ctx), fmt.Sprintf("❌ Pipeline run %s failed at *%s*: %s",
				shortID(runID), st, messenger.EscapeMarkdown(err.Error())))
			return &StageError{RunID: runID, Stage: st, Err: err}
		}
		log.Info("stage finished", slog.String("stage", string(st)), slog.Duration("elapsed", elapsed))
	}

	log.Info("pipeline run finished", slog.Duration("elapsed", time.Since(started)))
	r.sendLog(ctx, fmt.Sprintf("✅ Pipeline run %s finished in %s.", shortID(runID), time.Since(started).Round(time.Second)))
	return nil
}

func (r *Runner) runStage(ctx context.Context, st Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch st {
	case StageHarvest:
		if r.Harvester == nil {
			return errors.New("harvester not configured")
		}
		_, err := r.Harvester.Run(ctx)
		return err
	case StageFilter:
		if r.Filter == nil {
			return errors.New("filter not configured")
		}
		_, err := r.Filter.Run(ctx, r.Criteria)
		return err
	case StageEnrich:
		if r.Enricher == nil {
			return errors.New("enricher not configured")
		}
		_, err := r.Enricher.Run(ctx)
		return err
	case StageNotify:
		if r.Notifier == nil {
			return errors.New("notifier not configured")
		}
		_, err := r.Notifier.Run(ctx, r.Criteria)
		return err
	default:
		return fmt.Errorf("unknown stage %q", st)
	}
}

func (r *Runner) sendLog(ctx context.Context, text string) {
	if r.Transport == nil {
		return
	}
	if err := r.Transport.SendLog(ctx, text); err != nil {
		slog.Warn("log message not delivered", slog.Any("error", err))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
