package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/models"
	"github.com/aluiziolira/autotrader-watch/parser"
	"github.com/aluiziolira/autotrader-watch/store"
)

// CriterionCount reports how one criterion fared in a stage. Stored counts
// new candidates for the filter and delivered messages for the notifier.
type CriterionCount struct {
	Criterion string
	Matched   int
	Stored    int
}

// FilterResult summarises a filter run.
type FilterResult struct {
	Cleared      int64
	PerCriterion []CriterionCount
	StoredIDs    []string
}

// FilterEngine selects candidates from the listings snapshot.
type FilterEngine struct {
	listings   store.ListingStore
	candidates store.ListingStore
	transport  messenger.Transport
	// ResetCandidates clears the candidate collection before filtering.
	ResetCandidates bool
	Metrics         *Metrics
}

// NewFilterEngine wires a filter engine.
func NewFilterEngine(listings, candidates store.ListingStore, transport messenger.Transport) *FilterEngine {
	return &FilterEngine{
		listings:        listings,
		candidates:      candidates,
		transport:       transport,
		ResetCandidates: true,
	}
}

// Run stores every listing matching at least one criterion as a candidate.
// A listing already present in the candidates is left untouched, so running
// twice stores nothing new.
func (f *FilterEngine) Run(ctx context.Context, criteria []models.Criterion) (*FilterResult, error) {
	res := &FilterResult{}
	if f.ResetCandidates {
		n, err := f.candidates.DeleteAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("clear candidates: %w", err)
		}
		res.Cleared = n
	}

	for _, crit := range criteria {
		matches, err := selectMatches(ctx, f.listings, crit)
		if err != nil {
			return res, err
		}

		count := CriterionCount{Criterion: crit.Label(), Matched: len(matches)}
		for _, l := range matches {
			existing, err := f.candidates.FindOne(ctx, l.ID)
			if err != nil {
				return res, fmt.Errorf("lookup candidate %q: %w", l.ID, err)
			}
			if existing != nil {
				continue
			}
			if err := f.candidates.InsertOne(ctx, l); err != nil {
				return res, fmt.Errorf("store candidate %q: %w", l.ID, err)
			}
			res.StoredIDs = append(res.StoredIDs, l.ID)
			count.Stored++
			slog.Debug("candidate stored", slog.String("id", l.ID), slog.String("criterion", crit.Label()))
		}
		f.Metrics.addCandidates(count.Stored)
		res.PerCriterion = append(res.PerCriterion, count)

		slog.Info("criterion filtered",
			slog.String("criterion", crit.Label()),
			slog.Int("matched", count.Matched),
			slog.Int("stored", count.Stored),
		)
		f.sendResult(ctx, fmt.Sprintf("🔎 Matched %d cars for *%s*, %d new candidate(s).",
			count.Matched, messenger.EscapeMarkdown(crit.Label()), count.Stored))
	}

	f.sendResult(ctx, fmt.Sprintf("Total cars extracted and stored based on search parameters: %d\n🆔 *IDs*: %s",
		len(res.StoredIDs), idList(res.StoredIDs)))
	return res, nil
}

func (f *FilterEngine) sendResult(ctx context.Context, text string) {
	if f.transport == nil {
		return
	}
	if err := f.transport.SendResult(ctx, text); err != nil {
		slog.Warn("result message not delivered", slog.Any("error", err))
	}
}

// selectMatches applies the structural filter in the store and then the
// derived-year filter.
func selectMatches(ctx context.Context, s store.ListingStore, crit models.Criterion) ([]models.Listing, error) {
	found, err := s.Find(ctx, crit)
	if err != nil {
		return nil, fmt.Errorf("select for %q: %w", crit.Label(), err)
	}
	out := found[:0]
	for _, l := range found {
		if crit.AcceptsYear(parser.ExtractYear(l.TitleText())) {
			out = append(out, l)
		}
	}
	return out, nil
}
