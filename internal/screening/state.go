// Package screening contains the per-page pipeline: enumerate candidate
// cards, extract facts, evaluate rules, and drive the outreach actuator.
package screening

import (
	"context"
	"sync"
	"time"
)

// Card is one enumerated candidate card on a list page. Ref is an opaque
// driver handle (a DOM node id for the chromedp driver); HTML is the rendered
// fragment the extractor parses.
type Card struct {
	Ref   int64
	DOMID string
	HTML  string
}

// Driver is the browser surface the pipeline reads pages through.
type Driver interface {
	// Location returns the current page URL.
	Location(ctx context.Context) (string, error)
	// ListCards enumerates candidate cards in DOM order.
	ListCards(ctx context.Context) ([]Card, error)
	// OpenDetail opens the card's detail view and returns the rendered
	// container HTML once it materializes. A detail view that fails to
	// render within the driver's bound is an error; callers treat it as a
	// non-fatal skip.
	OpenDetail(ctx context.Context, card Card) (string, error)
	// CloseDetail dismisses whatever dialog may be open. Best effort.
	CloseDetail(ctx context.Context)
	// DetailHTML returns the detail container HTML for direct detail-page
	// entries, waiting the same bound as OpenDetail.
	DetailHTML(ctx context.Context) (string, error)
}

// Actuator performs the human-like side effects.
type Actuator interface {
	// Greet clicks the outreach control for the card currently in scope.
	Greet(ctx context.Context, card Card) error
	// Scroll advances the list to reveal more cards. Failure is non-fatal.
	Scroll(ctx context.Context) error
	// Delay waits a randomized inter-action interval.
	Delay(ctx context.Context)
}

// Confirmer gates outreach in calibration mode. Confirm returns true when
// the operator approves acting on the candidate.
type Confirmer interface {
	Confirm(ctx context.Context, summary string) (bool, error)
}

// State is the pipeline's process-wide mutable state. It is reset on run
// completion and on navigation so a mid-run failure can never leave the
// pipeline stuck processing. Guarded internally; every entry point does its
// check-and-set through these methods within one critical section.
type State struct {
	mu             sync.Mutex
	processing     bool
	processedIDs   map[string]struct{}
	processedCount int
	lastRunEnd     time.Time
}

func NewState() *State {
	return &State{processedIDs: make(map[string]struct{})}
}

// TryStart atomically flips the processing flag. It refuses when a run is
// already active or when the previous run ended within the cooldown window
// (mutation observers re-fire long after a logical interaction burst ends).
func (s *State) TryStart(cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return false
	}
	if cooldown > 0 && !s.lastRunEnd.IsZero() && time.Since(s.lastRunEnd) < cooldown {
		return false
	}

	s.processing = true
	s.processedIDs = make(map[string]struct{})
	s.processedCount = 0
	return true
}

// Stop requests cooperative cancellation; the run loop observes it at the
// next stage boundary.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
}

// Finish resets the state at the end of a run, recording the cooldown anchor.
// The seen-set is discarded: it is a within-run dedup guard, not history.
func (s *State) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	s.processedIDs = make(map[string]struct{})
	s.lastRunEnd = time.Now()
}

// Processing reports whether a run is active.
func (s *State) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// MarkSeen records the card id, reporting false when it was already seen in
// this run.
func (s *State) MarkSeen(cardID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processedIDs[cardID]; ok {
		return false
	}
	s.processedIDs[cardID] = struct{}{}
	return true
}

// SeenCount returns the number of distinct cards seen in this run.
func (s *State) SeenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processedIDs)
}

// IncProcessed bumps and returns the processed-card counter.
func (s *State) IncProcessed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedCount++
	return s.processedCount
}

// ProcessedCount returns the processed-card counter.
func (s *State) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processedCount
}
