package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aluiziolira/autotrader-watch/classifier"
	"github.com/aluiziolira/autotrader-watch/messenger"
	"github.com/aluiziolira/autotrader-watch/models"
	"github.com/aluiziolira/autotrader-watch/parser"
	"github.com/aluiziolira/autotrader-watch/store"
)

// Verdict tags shown in listing messages.
const (
	TagGood          = "good"
	TagNoDescription = "no description"
)

var errNoClassifier = errors.New("description check requested but no classifier is configured")

// VerdictError aborts a notify run when a description cannot be confirmed
// as good. Err is set when the classifier itself failed.
type VerdictError struct {
	ListingID string
	Verdict   models.Verdict
	Err       error
}

func (e *VerdictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classify listing %s: %v", e.ListingID, e.Err)
	}
	return fmt.Sprintf("listing %s: unconfirmed verdict %s", e.ListingID, e.Verdict)
}

func (e *VerdictError) Unwrap() error {
	return e.Err
}

// NotifyResult summarises a notify run.
type NotifyResult struct {
	PerCriterion []CriterionCount
	SentIDs      []string
	AlreadySent  int
	Rejected     int
	Failed       int
}

// Notifier sends each matching candidate at most once, recording every
// delivered listing in the sent ledger.
type Notifier struct {
	candidates store.ListingStore
	sent       store.SentLedger
	transport  messenger.Transport
	classifier classifier.Classifier
	// DispatchDelay is waited between two listing messages.
	DispatchDelay time.Duration
	Metrics       *Metrics

	dispatched int
}

// NewNotifier wires a notifier. cls may be nil when no criterion uses the
// description check.
func NewNotifier(candidates store.ListingStore, sent store.SentLedger, transport messenger.Transport, cls classifier.Classifier) *Notifier {
	return &Notifier{
		candidates:    candidates,
		sent:          sent,
		transport:     transport,
		classifier:    cls,
		DispatchDelay: time.Second,
	}
}

// Run notifies every unsent candidate matching a criterion. A description
// that cannot be confirmed aborts the run with a *VerdictError; ledger
// entries written before the abort are kept.
func (n *Notifier) Run(ctx context.Context, criteria []models.Criterion) (*NotifyResult, error) {
	res := &NotifyResult{}
	n.dispatched = 0

	for _, crit := range criteria {
		count, err := n.notifyCriterion(ctx, crit, res)
		res.PerCriterion = append(res.PerCriterion, count)
		if err != nil {
			return res, err
		}
	}

	msg := fmt.Sprintf("📝 *Summary*: %d cars sent.\n🆔 *Sent IDs*: %s", len(res.SentIDs), idList(res.SentIDs))
	n.sendResult(ctx, msg)
	slog.Info("notify finished",
		slog.Int("sent", len(res.SentIDs)),
		slog.Int("already_sent", res.AlreadySent),
		slog.Int("rejected", res.Rejected),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}

func (n *Notifier) notifyCriterion(ctx context.Context, crit models.Criterion, res *NotifyResult) (CriterionCount, error) {
	count := CriterionCount{Criterion: crit.Label()}
	n.sendResult(ctx, searchAlertMessage(crit))
	slog.Info("searching candidates", slog.String("criterion", crit.Label()))

	matches, err := selectMatches(ctx, n.candidates, crit)
	if err != nil {
		return count, err
	}
	count.Matched = len(matches)

	for _, l := range matches {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		log := slog.With(slog.String("id", l.ID), slog.String("criterion", crit.Label()))

		seen, err := n.sent.Contains(ctx, l.ID)
		if err != nil {
			return count, err
		}
		if seen {
			res.AlreadySent++
			continue
		}

		tag := ""
		if crit.UseDescriptionCheck {
			var reject bool
			tag, reject, err = n.checkDescription(ctx, l)
			if err != nil {
				log.Error("description check aborted the run", slog.Any("error", err))
				return count, err
			}
			if reject {
				log.Info("listing rejected by description check")
				res.Rejected++
				continue
			}
		}

		if err := n.pace(ctx); err != nil {
			return count, err
		}
		n.dispatched++
		if err := n.transport.SendResult(ctx, listingMessage(l, parser.ExtractYear(l.TitleText()), tag)); err != nil {
			log.Error("listing message not delivered", slog.Any("error", err))
			res.Failed++
			n.Metrics.incDispatchFailure()
			continue
		}
		if err := n.sent.Record(ctx, l.ID); err != nil {
			return count, fmt.Errorf("record sent listing %q: %w", l.ID, err)
		}
		res.SentIDs = append(res.SentIDs, l.ID)
		count.Stored++
		n.Metrics.incSent()
		log.Info("listing sent and recorded")
	}

	slog.Info("criterion notified", slog.String("criterion", crit.Label()), slog.Int("sent", count.Stored))
	n.sendResult(ctx, fmt.Sprintf("✅ Found %d cars for *%s* 🚗", count.Stored, messenger.EscapeMarkdown(crit.Label())))
	return count, nil
}

// checkDescription returns the tag to send with, or reject when the listing
// is judged bad.
func (n *Notifier) checkDescription(ctx context.Context, l models.Listing) (tag string, reject bool, err error) {
	desc := strings.TrimSpace(l.Description)
	if utf8.RuneCountInString(desc) < parser.MinDescriptionLength {
		n.Metrics.incVerdict("no_description")
		return TagNoDescription, false, nil
	}
	if n.classifier == nil {
		return "", false, &VerdictError{ListingID: l.ID, Verdict: models.VerdictError, Err: errNoClassifier}
	}

	verdict, err := n.classifier.Classify(ctx, desc)
	if err != nil {
		n.Metrics.incVerdict(strings.ToLower(string(models.VerdictError)))
		return "", false, &VerdictError{ListingID: l.ID, Verdict: models.VerdictError, Err: err}
	}
	n.Metrics.incVerdict(strings.ToLower(string(verdict)))

	switch verdict {
	case models.VerdictGood:
		return TagGood, false, nil
	case models.VerdictBad:
		return "", true, nil
	default:
		return "", false, &VerdictError{ListingID: l.ID, Verdict: verdict}
	}
}

func (n *Notifier) pace(ctx context.Context) error {
	if n.dispatched == 0 || n.DispatchDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(n.DispatchDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (n *Notifier) sendResult(ctx context.Context, text string) {
	if err := n.transport.SendResult(ctx, text); err != nil {
		slog.Warn("result message not delivered", slog.Any("error", err))
	}
}
