package screening

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avoronkov/talent-scout/internal/candidate"
	"github.com/avoronkov/talent-scout/internal/journal"
	"github.com/avoronkov/talent-scout/internal/logger"
	"github.com/avoronkov/talent-scout/internal/page"
	"github.com/avoronkov/talent-scout/internal/rules"
)

var (
	// ErrBusy is returned when a run is already active or the list-page
	// cooldown window has not elapsed.
	ErrBusy = errors.New("screening run already in progress or cooling down")
	// ErrUnsupportedPage is returned when the current page is neither a
	// list nor a detail page.
	ErrUnsupportedPage = errors.New("current page is not a known candidate page")
)

// Config tunes the orchestrator. Thresholds are configuration on purpose:
// the confidence margin and pass threshold are tuned values, not derived
// ones.
type Config struct {
	// ConfidenceMargin is the score at or above which a passing card-level
	// verdict acts directly, skipping the detail round-trip.
	ConfidenceMargin float64
	// MaxCandidates caps how many cards one run processes.
	MaxCandidates int
	// ScrollEvery triggers a list scroll after this many processed cards.
	ScrollEvery int
	// Cooldown blocks re-entering a list scan for this long after a run.
	Cooldown time.Duration
}

const (
	defaultConfidenceMargin = 85
	defaultMaxCandidates    = 50
	defaultScrollEvery      = 5
	defaultCooldown         = 10 * time.Second
)

func (c *Config) applyDefaults() {
	if c.ConfidenceMargin <= 0 {
		c.ConfidenceMargin = defaultConfidenceMargin
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = defaultMaxCandidates
	}
	if c.ScrollEvery <= 0 {
		c.ScrollEvery = defaultScrollEvery
	}
	// A negative cooldown disables the window entirely.
	if c.Cooldown == 0 {
		c.Cooldown = defaultCooldown
	}
}

// Extractor turns rendered HTML into candidate records.
type Extractor interface {
	ExtractHTML(html string) (candidate.Record, error)
}

// Evaluator produces a verdict for a record under the active rule spec.
type Evaluator interface {
	Evaluate(ctx context.Context, record candidate.Record, spec rules.Spec) rules.Result
}

// Deps aggregates the runner's collaborators.
type Deps struct {
	Driver     Driver
	Actuator   Actuator
	Extractor  Extractor
	Evaluator  Evaluator
	Store      rules.Store
	Confirmer  Confirmer
	Classifier *page.Classifier
	Journal    journal.Sink
	Logger     *zap.Logger
}

// Summary reports one run's outcome counts.
type Summary struct {
	RunID     string
	Kind      page.Kind
	Attempted int
	Processed int
	Contacted int
	Rejected  int
	Skipped   int
}

type cardOutcome int

const (
	outcomeContacted cardOutcome = iota
	outcomeRejected
	outcomeSkipped
)

// Runner is the per-page screening state machine.
type Runner struct {
	cfg   Config
	deps  Deps
	state *State
}

func NewRunner(cfg Config, deps Deps) *Runner {
	cfg.applyDefaults()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Journal == nil {
		deps.Journal = journal.NewZapSink(deps.Logger)
	}
	if deps.Classifier == nil {
		deps.Classifier = page.NewClassifier(nil, nil)
	}
	return &Runner{cfg: cfg, deps: deps, state: NewState()}
}

// State exposes the processing state for control surfaces (status queries,
// cooperative stop).
func (r *Runner) State() *State {
	return r.state
}

// Stop requests cooperative cancellation of the active run.
func (r *Runner) Stop() {
	r.state.Stop()
}

// Run executes one screening pass over the current page. Only one run may be
// active; cleanup of the processing flag and the per-run seen-set is
// guaranteed on every exit path.
func (r *Runner) Run(ctx context.Context) (summary Summary, err error) {
	if !r.state.TryStart(r.cfg.Cooldown) {
		return Summary{}, ErrBusy
	}
	defer r.state.Finish()

	summary.RunID = uuid.NewString()
	log := logger.WithFields(r.deps.Logger, zap.String("run_id", summary.RunID))

	url, err := r.deps.Driver.Location(ctx)
	if err != nil {
		return summary, fmt.Errorf("classify page: %w", err)
	}

	summary.Kind = r.deps.Classifier.Classify(url)
	log.Info("starting screening run", zap.String("url", url), zap.String("page_kind", string(summary.Kind)))

	switch summary.Kind {
	case page.KindList:
		err = r.runList(ctx, log, &summary)
	case page.KindDetail:
		err = r.runDetail(ctx, log, &summary)
	default:
		r.deps.Journal.Append("run aborted: unrecognized page", journal.LevelWarning, summary.RunID)
		return summary, ErrUnsupportedPage
	}

	r.deps.Journal.Append(
		fmt.Sprintf("run finished: %d attempted, %d processed, %d contacted, %d rejected, %d skipped",
			summary.Attempted, summary.Processed, summary.Contacted, summary.Rejected, summary.Skipped),
		journal.LevelInfo, summary.RunID,
	)
	log.Info("screening run finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("processed", summary.Processed),
		zap.Int("contacted", summary.Contacted),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, err
}

func (r *Runner) runList(ctx context.Context, log *zap.Logger, summary *Summary) error {
	cards, err := r.deps.Driver.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("enumerate cards: %w", err)
	}

	summary.Attempted = len(cards)
	log.Info("enumerated candidate cards", zap.Int("count", len(cards)))

	for _, card := range cards {
		// Cooperative stop and run caps are observed between cards only;
		// an in-flight card always finishes or fails on its own.
		if ctx.Err() != nil || !r.state.Processing() {
			log.Info("run stopped", zap.Int("processed", summary.Processed))
			break
		}
		if summary.Processed >= r.cfg.MaxCandidates {
			log.Info("candidate cap reached", zap.Int("cap", r.cfg.MaxCandidates))
			break
		}

		outcome, fresh := r.processCardSafely(ctx, log, summary.RunID, card)
		if !fresh {
			continue
		}

		summary.Processed++
		switch outcome {
		case outcomeContacted:
			summary.Contacted++
		case outcomeRejected:
			summary.Rejected++
		case outcomeSkipped:
			summary.Skipped++
		}

		processed := r.state.IncProcessed()
		if processed%r.cfg.ScrollEvery == 0 {
			if err := r.deps.Actuator.Scroll(ctx); err != nil {
				// Non-fatal: the remaining enumerated cards still process.
				log.Warn("scroll failed", zap.Error(err))
				r.deps.Journal.Append("scroll failed: "+err.Error(), journal.LevelWarning, summary.RunID)
			}
		}
		r.deps.Actuator.Delay(ctx)
	}

	return nil
}

func (r *Runner) runDetail(ctx context.Context, log *zap.Logger, summary *Summary) error {
	html, err := r.deps.Driver.DetailHTML(ctx)
	if err != nil {
		r.deps.Journal.Append("detail page did not render: "+err.Error(), journal.LevelWarning, summary.RunID)
		return fmt.Errorf("detail page: %w", err)
	}

	record, err := r.deps.Extractor.ExtractHTML(html)
	if err != nil {
		return fmt.Errorf("extract detail page: %w", err)
	}

	summary.Attempted = 1
	summary.Processed = 1
	r.state.MarkSeen(record.CardID)
	defer r.state.IncProcessed()

	result := r.deps.Evaluator.Evaluate(ctx, record, r.deps.Store.RuleSpec())
	if !result.Pass {
		r.deps.Journal.Append("candidate rejected: "+result.Reason, journal.LevelInfo, record.CardID)
		summary.Rejected++
		return nil
	}

	outcome := r.confirmAndGreet(ctx, log, record, Card{})
	switch outcome {
	case outcomeContacted:
		summary.Contacted++
	case outcomeRejected:
		summary.Rejected++
	default:
		summary.Skipped++
	}
	return nil
}

// processCardSafely is the per-card failure boundary: any error or panic is
// logged against the card's correlation id and reported as a skip, never
// aborting the run. fresh is false when the card was deduplicated.
func (r *Runner) processCardSafely(ctx context.Context, log *zap.Logger, runID string, card Card) (outcome cardOutcome, fresh bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("card processing panicked",
				zap.String("card_id", card.DOMID),
				zap.Any("panic", rec),
			)
			r.deps.Journal.Append(fmt.Sprintf("card skipped after internal error: %v", rec), journal.LevelError, card.DOMID)
			outcome, fresh = outcomeSkipped, true
		}
	}()

	return r.processCard(ctx, log, runID, card)
}

func (r *Runner) processCard(ctx context.Context, log *zap.Logger, runID string, card Card) (cardOutcome, bool) {
	// Cards that expose a DOM-level id dedup before the extraction cost.
	if card.DOMID != "" && !r.state.MarkSeen(card.DOMID) {
		log.Debug("card already processed in this run", zap.String("card_id", card.DOMID))
		return outcomeSkipped, false
	}

	record, err := r.deps.Extractor.ExtractHTML(card.HTML)
	if err != nil {
		r.deps.Journal.Append("card skipped: extraction failed: "+err.Error(), journal.LevelWarning, card.DOMID)
		return outcomeSkipped, true
	}
	if card.DOMID != "" {
		record.CardID = card.DOMID
	} else if !r.state.MarkSeen(record.CardID) {
		log.Debug("card already processed in this run", zap.String("card_id", record.CardID))
		return outcomeSkipped, false
	}

	cardLog := logger.WithFields(r.deps.Logger, logger.CardFields(runID, record.CardID)...)
	spec := r.deps.Store.RuleSpec()

	result := r.deps.Evaluator.Evaluate(ctx, record, spec)
	cardLog.Debug("card-level verdict",
		zap.Bool("pass", result.Pass),
		zap.Float64("score", result.Score),
		zap.String("reason", result.Reason),
	)

	if !result.Pass {
		r.deps.Journal.Append("candidate rejected: "+result.Reason, journal.LevelInfo, record.CardID)
		return outcomeRejected, true
	}

	detailOpened := false
	if result.Score < r.cfg.ConfidenceMargin {
		// A pass below the confidence margin is genuinely ambiguous: spend
		// the expensive detail round-trip only on those.
		merged, ok := r.detailRoundTrip(ctx, cardLog, card, record)
		if !ok {
			return outcomeSkipped, true
		}
		detailOpened = true
		record = merged

		result = r.deps.Evaluator.Evaluate(ctx, record, spec)
		cardLog.Debug("merged verdict",
			zap.Bool("pass", result.Pass),
			zap.Float64("score", result.Score),
			zap.String("reason", result.Reason),
		)
		if !result.Pass {
			r.deps.Driver.CloseDetail(ctx)
			r.deps.Journal.Append("candidate rejected after detail review: "+result.Reason, journal.LevelInfo, record.CardID)
			return outcomeRejected, true
		}
	}

	outcome := r.confirmAndGreet(ctx, cardLog, record, card)
	if detailOpened {
		r.deps.Driver.CloseDetail(ctx)
	}
	return outcome, true
}

// detailRoundTrip opens the card's detail view, extracts it and merges the
// result over the card-level record. A detail view that never renders is a
// non-fatal skip.
func (r *Runner) detailRoundTrip(ctx context.Context, log *zap.Logger, card Card, record candidate.Record) (candidate.Record, bool) {
	html, err := r.deps.Driver.OpenDetail(ctx, card)
	if err != nil {
		log.Warn("detail view unavailable, skipping card", zap.Error(err))
		r.deps.Journal.Append("card skipped: detail view unavailable: "+err.Error(), journal.LevelWarning, record.CardID)
		r.deps.Driver.CloseDetail(ctx)
		return record, false
	}

	detail, err := r.deps.Extractor.ExtractHTML(html)
	if err != nil {
		log.Warn("detail extraction failed, skipping card", zap.Error(err))
		r.deps.Journal.Append("card skipped: detail extraction failed: "+err.Error(), journal.LevelWarning, record.CardID)
		r.deps.Driver.CloseDetail(ctx)
		return record, false
	}

	merged := candidate.Merge(record, detail)
	merged.CardID = record.CardID
	return merged, true
}

// confirmAndGreet applies the calibration-mode confirmation gate and then
// performs the outreach click. No irreversible action happens without the
// gate when the store says calibration.
func (r *Runner) confirmAndGreet(ctx context.Context, log *zap.Logger, record candidate.Record, card Card) cardOutcome {
	if r.deps.Store.Mode() == rules.ModeCalibration {
		if r.deps.Confirmer == nil {
			log.Warn("calibration mode without a confirmer, skipping outreach")
			r.deps.Journal.Append("candidate matched but not contacted: no confirmation channel", journal.LevelWarning, record.CardID)
			return outcomeSkipped
		}

		approved, err := r.deps.Confirmer.Confirm(ctx, record.Summary())
		if err != nil {
			log.Warn("confirmation failed, skipping outreach", zap.Error(err))
			r.deps.Journal.Append("candidate matched but not contacted: confirmation failed", journal.LevelWarning, record.CardID)
			return outcomeSkipped
		}
		if !approved {
			r.deps.Journal.Append("candidate matched but declined by operator", journal.LevelInfo, record.CardID)
			return outcomeSkipped
		}
	}

	r.deps.Actuator.Delay(ctx)
	if err := r.deps.Actuator.Greet(ctx, card); err != nil {
		log.Warn("outreach click failed", zap.Error(err))
		r.deps.Journal.Append("outreach failed: "+err.Error(), journal.LevelWarning, record.CardID)
		return outcomeSkipped
	}

	r.deps.Journal.Append("greeted candidate: "+record.Summary(), journal.LevelSuccess, record.CardID)
	log.Info("greeted candidate", zap.String("summary", record.Summary()))
	return outcomeContacted
}
