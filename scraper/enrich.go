package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/models"
	"github.com/aluiziolira/autotrader-watch/parser"
	"github.com/aluiziolira/autotrader-watch/store"
)

// Enricher fetches each candidate's detail page and stores its description.
type Enricher struct {
	fetcher    Fetcher
	candidates store.ListingStore
	notifier   messenger.Transport
	Metrics    *Metrics
}

// NewEnricher wires an enricher. metrics may be nil.
func NewEnricher(fetcher Fetcher, candidates store.ListingStore, notifier messenger.Transport, metrics *Metrics) *Enricher {
	return &Enricher{
		fetcher:    fetcher,
		candidates: candidates,
		notifier:   notifier,
		Metrics:    metrics,
	}
}

// Run visits every candidate once. A page that cannot be fetched or parsed
// leaves that candidate without a description; store errors abort the run.
func (e *Enricher) Run(ctx context.Context) (*models.EnrichResult, error) {
	candidates, err := e.candidates.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	res := &models.EnrichResult{Candidates: len(candidates)}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := slog.With(slog.String("id", c.ID))

		link := c.URL()
		if link == "" {
			log.Warn("candidate has no product url")
			res.Skipped++
			e.Metrics.IncDescription("skipped")
			continue
		}

		resp, err := e.fetcher.Fetch(ctx, link, nil)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Error("detail page fetch failed", slog.String("url", link), slog.Any("error", err), slog.Bool("retryable", IsRetryable(err)))
			res.Failed++
			e.Metrics.IncDescription("failed")
			continue
		}

		desc, err := parser.ExtractDescription(resp.Body)
		if err != nil {
			log.Error("detail page parse failed", slog.String("url", link), slog.Any("error", err))
			res.Failed++
			e.Metrics.IncDescription("failed")
			continue
		}

		if err := e.candidates.Update(ctx, c.ID, models.ListingPatch{Description: &desc}); err != nil {
			return res, fmt.Errorf("store description for %q: %w", c.ID, err)
		}
		res.Updated++
		if desc != "" {
			res.Extracted++
			e.Metrics.IncDescription("extracted")
		} else {
			e.Metrics.IncDescription("empty")
		}
		log.Debug("description stored", slog.Int("length", len(desc)))
	}

	slog.Info("enrichment finished",
		slog.Int("candidates", res.Candidates),
		slog.Int("extracted", res.Extracted),
		slog.Int("failed", res.Failed),
	)
	if e.notifier != nil {
		msg := fmt.Sprintf("Total descriptions extracted and stored: %d", res.Extracted)
		if err := e.notifier.SendResult(ctx, msg); err != nil {
			slog.Warn("result message not delivered", slog.Any("error", err))
		}
	}
	return res, nil
}
