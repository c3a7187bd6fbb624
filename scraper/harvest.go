package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/autotrader-watch/config"
	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/models"
	"github.com/aluiziolira/autotrader-watch/parser"
	"github.com/aluiziolira/autotrader-watch/store"
)

// cursorParam is the query parameter carrying the result offset.
const cursorParam = "rcs"

// Fetcher retrieves one page. *Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error)
}

// SnapshotWriter receives every committed harvest snapshot. Validate checks
// the output holds records after a non-empty write.
type SnapshotWriter interface {
	Write(listings []models.Listing) error
	Validate() error
}

// Harvester walks the paginated results and replaces the listings
// collection with what it found.
type Harvester struct {
	cfg      *config.Config
	fetcher  Fetcher
	listings store.ListingStore
	notifier messenger.Transport
	Metrics  *Metrics
	// Export, when set, receives each committed snapshot.
	Export SnapshotWriter
}

// NewHarvester wires a harvester. metrics may be nil.
func NewHarvester(cfg *config.Config, fetcher Fetcher, listings store.ListingStore, notifier messenger.Transport, metrics *Metrics) *Harvester {
	return &Harvester{
		cfg:      cfg,
		fetcher:  fetcher,
		listings: listings,
		notifier: notifier,
		Metrics:  metrics,
	}
}

// Harvest fetches pages from startURL, advancing the cursor by PageSize,
// until a stop condition holds. It never writes to the store.
func (h *Harvester) Harvest(ctx context.Context, startURL string) *models.HarvestResult {
	res := &models.HarvestResult{
		StartTime: time.Now(),
		Dropped:   make(map[string]int),
	}
	defer func() { res.EndTime = time.Now() }()

	base, cursor, err := startCursor(startURL)
	if err != nil {
		res.Termination = models.TerminationFetchFailed
		res.Err = err
		return res
	}

	seen, err := newSeenSet(h.cacheSize(cursor))
	if err != nil {
		res.Termination = models.TerminationFetchFailed
		res.Err = fmt.Errorf("dedupe cache: %w", err)
		return res
	}

	for {
		pageURL := withCursor(base, cursor)
		log := slog.With(slog.String("url", pageURL), slog.Int("cursor", cursor))

		resp, err := h.fetcher.Fetch(ctx, pageURL, nil)
		if resp != nil && parser.ContainsMarker(resp.Body, h.cfg.BlockMarkers) {
			log.Warn("block page detected")
			res.Termination = models.TerminationBlocked
			return res
		}
		if err != nil {
			if IsForbidden(err) {
				log.Warn("access forbidden", slog.Any("error", err))
				res.Termination = models.TerminationBlocked
				return res
			}
			log.Error("page fetch failed", slog.Any("error", err), slog.Bool("retryable", IsRetryable(err)))
			res.Termination = models.TerminationFetchFailed
			res.Err = err
			return res
		}
		res.Pages++

		page, err := parser.ParseListings(resp.Body, resp.URL)
		if err != nil {
			log.Error("page parse failed", slog.Any("error", err))
			res.Termination = models.TerminationFetchFailed
			res.Err = err
			return res
		}
		if len(page) == 0 {
			if res.Pages == 1 {
				res.Termination = models.TerminationEmptyFirstPage
			} else {
				res.Termination = models.TerminationExhausted
			}
			log.Info("no listings on page", slog.String("termination", string(res.Termination)))
			return res
		}

		kept := 0
		for _, l := range page {
			if err := parser.ValidateListing(&l); err != nil {
				h.drop(res, "missing_id")
				continue
			}
			if !seen.add(l.ID) {
				h.drop(res, "duplicate_id")
				continue
			}
			res.Listings = append(res.Listings, l)
			kept++
		}
		h.Metrics.AddItems(kept)
		log.Info("page harvested", slog.Int("blocks", len(page)), slog.Int("kept", kept))

		next := cursor + h.cfg.PageSize
		if next >= h.cfg.PageLimit {
			res.Termination = models.TerminationLimitReached
			return res
		}
		cursor = next
	}
}

// cacheSize covers every result offset the walk can reach from cursor.
func (h *Harvester) cacheSize(cursor int) int {
	size := h.cfg.PageLimit - cursor + h.cfg.PageSize
	if h.cfg.DedupeMaxSize > size {
		size = h.cfg.DedupeMaxSize
	}
	return size
}

// seenSet tracks listing ids within one walk. Ids evicted from the LRU move
// to spilled, so membership never expires mid-walk.
type seenSet struct {
	recent  *lru.Cache[string, struct{}]
	spilled map[string]struct{}
}

func newSeenSet(size int) (*seenSet, error) {
	s := &seenSet{spilled: make(map[string]struct{})}
	cache, err := lru.NewWithEvict[string, struct{}](size, func(id string, _ struct{}) {
		s.spilled[id] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	s.recent = cache
	return s, nil
}

// add reports whether id was not seen before.
func (s *seenSet) add(id string) bool {
	if _, ok := s.spilled[id]; ok {
		return false
	}
	if s.recent.Contains(id) {
		return false
	}
	s.recent.Add(id, struct{}{})
	return true
}

func (h *Harvester) drop(res *models.HarvestResult, reason string) {
	res.Dropped[reason]++
	h.Metrics.IncDropped(reason)
}

// Run harvests from the configured start URL and, when the walk completed,
// replaces the listings collection with the snapshot. An incomplete walk
// leaves the previous snapshot untouched and is not an error. Persistence
// failures are.
func (h *Harvester) Run(ctx context.Context) (*models.HarvestResult, error) {
	h.sendLog(ctx, "Harvest started.")

	res := h.Harvest(ctx, h.cfg.StartURL)
	slog.Info("harvest stopped",
		slog.String("termination", string(res.Termination)),
		slog.Int("pages", res.Pages),
		slog.Int("listings", len(res.Listings)),
		slog.Any("dropped", res.Dropped),
		slog.Duration("elapsed", res.EndTime.Sub(res.StartTime)),
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	if !h.shouldCommit(res) {
		msg := fmt.Sprintf("Harvest stopped (%s) after %d page(s). %d listing(s) discarded, previous snapshot kept.",
			res.Termination, res.Pages, len(res.Listings))
		if res.Err != nil {
			msg += fmt.Sprintf(" Error: %v", res.Err)
		}
		h.sendLog(ctx, msg)
		return res, nil
	}

	if err := h.commit(ctx, res.Listings); err != nil {
		h.sendLog(ctx, fmt.Sprintf("Harvest failed: %v", err))
		return res, err
	}
	res.Committed = true

	h.sendLog(ctx, fmt.Sprintf("Harvest finished (%s). New listings: %d", res.Termination, len(res.Listings)))
	return res, nil
}

func (h *Harvester) shouldCommit(res *models.HarvestResult) bool {
	if res.Termination.Completed() {
		return true
	}
	return h.cfg.CommitPartial && res.Termination == models.TerminationBlocked && len(res.Listings) > 0
}

func (h *Harvester) commit(ctx context.Context, listings []models.Listing) error {
	if id, ok := firstDuplicate(listings); ok {
		return fmt.Errorf("snapshot holds duplicate id %q", id)
	}
	deleted, err := h.listings.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("clear listings: %w", err)
	}
	if err := h.listings.InsertMany(ctx, listings); err != nil {
		return fmt.Errorf("store listings: %w", err)
	}
	slog.Info("listings snapshot replaced", slog.Int64("deleted", deleted), slog.Int("inserted", len(listings)))

	if h.Export != nil {
		if err := h.Export.Write(listings); err != nil {
			slog.Error("snapshot export failed", slog.Any("error", err))
		} else if len(listings) > 0 {
			if err := h.Export.Validate(); err != nil {
				slog.Warn("snapshot export looks empty", slog.Any("error", err))
			}
		}
	}
	return nil
}

func firstDuplicate(listings []models.Listing) (string, bool) {
	ids := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		if _, ok := ids[l.ID]; ok {
			return l.ID, true
		}
		ids[l.ID] = struct{}{}
	}
	return "", false
}

func (h *Harvester) sendLog(ctx context.Context, text string) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.SendLog(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("log message not delivered", slog.Any("error", err))
	}
}

// startCursor parses the start URL and returns its cursor, zero if absent.
func startCursor(rawURL string) (*url.URL, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse start url: %w", err)
	}
	raw := u.Query().Get(cursorParam)
	if raw == "" {
		return u, 0, nil
	}
	cursor, err := strconv.Atoi(raw)
	if err != nil || cursor < 0 {
		return nil, 0, fmt.Errorf("invalid %s=%q in start url", cursorParam, raw)
	}
	return u, cursor, nil
}

func withCursor(base *url.URL, cursor int) string {
	u := *base
	q := u.Query()
	q.Set(cursorParam, strconv.Itoa(cursor))
	u.RawQuery = q.Encode()
	return u.String()
}
