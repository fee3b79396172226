// Package browser drives a Chrome session against the recruiting site and
// implements the pipeline's Driver and Actuator surfaces with human-like
// interaction: pointer approach before clicks, randomized delays, and
// staged scroll fallbacks.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/avoronkov/talent-scout/internal/screening"
	"github.com/avoronkov/talent-scout/internal/utils"
)

// Config tunes the session and the actuator. Zero values fall back to the
// defaults below.
type Config struct {
	Headless  bool
	UserAgent string

	CardSelector    string
	DetailContainer string
	GreetSelectors  []string
	ModalSelectors  []string

	DetailTimeout  time.Duration
	ScrollDistance int
	ScrollSettle   time.Duration
	ApproachSettle time.Duration
	MinActionDelay time.Duration
	MaxActionDelay time.Duration
}

const (
	defaultCardSelector    = ".card-inner"
	defaultDetailContainer = ".dialog-lib-resume"
	defaultDetailTimeout   = 5 * time.Second
	defaultScrollDistance  = 600
	defaultScrollSettle    = 800 * time.Millisecond
	defaultApproachSettle  = 150 * time.Millisecond
	defaultMinActionDelay  = 600 * time.Millisecond
	defaultMaxActionDelay  = 2200 * time.Millisecond
	defaultUserAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var defaultGreetSelectors = []string{"button.btn-greet", ".start-chat-btn", "button.btn-sure"}

var defaultModalSelectors = []string{".dialog-close", ".boss-popup__close", ".icon-close", "span.close"}

func (c *Config) applyDefaults() {
	if c.CardSelector == "" {
		c.CardSelector = defaultCardSelector
	}
	if c.DetailContainer == "" {
		c.DetailContainer = defaultDetailContainer
	}
	if len(c.GreetSelectors) == 0 {
		c.GreetSelectors = defaultGreetSelectors
	}
	if len(c.ModalSelectors) == 0 {
		c.ModalSelectors = defaultModalSelectors
	}
	if c.DetailTimeout <= 0 {
		c.DetailTimeout = defaultDetailTimeout
	}
	if c.ScrollDistance <= 0 {
		c.ScrollDistance = defaultScrollDistance
	}
	if c.ScrollSettle <= 0 {
		c.ScrollSettle = defaultScrollSettle
	}
	if c.ApproachSettle <= 0 {
		c.ApproachSettle = defaultApproachSettle
	}
	if c.MinActionDelay <= 0 {
		c.MinActionDelay = defaultMinActionDelay
	}
	if c.MaxActionDelay <= c.MinActionDelay {
		c.MaxActionDelay = c.MinActionDelay + defaultMaxActionDelay - defaultMinActionDelay
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
}

// Session owns one Chrome tab. It implements screening.Driver and
// screening.Actuator.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	logger *zap.Logger
}

// idAttrs are tried in order when reading a stable id off a card node.
var idAttrs = []string{"data-geek", "data-id", "data-uid", "id"}

// NewSession allocates a browser context. The browser process starts lazily
// on the first action.
func NewSession(parent context.Context, cfg Config, logger *zap.Logger) *Session {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx)

	return &Session{
		ctx: ctx,
		cancel: func() {
			cancelCtx()
			cancelAlloc()
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Close tears the browser down.
func (s *Session) Close() {
	s.cancel()
}

// Navigate loads the URL and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Location returns the current page URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var url string
	if err := chromedp.Run(s.ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// ListCards enumerates candidate cards in DOM order and snapshots their HTML.
func (s *Session) ListCards(ctx context.Context) ([]screening.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var nodes []*cdp.Node
	err := chromedp.Run(s.ctx,
		chromedp.Nodes(s.cfg.CardSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, fmt.Errorf("enumerate cards %q: %w", s.cfg.CardSelector, err)
	}

	cards := make([]screening.Card, 0, len(nodes))
	err = chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, node := range nodes {
			html, err := dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			if err != nil {
				// The node detached between enumeration and snapshot.
				s.logger.Debug("card node vanished before snapshot", zap.Int64("node_id", int64(node.NodeID)))
				continue
			}
			cards = append(cards, screening.Card{
				Ref:   int64(node.NodeID),
				DOMID: nodeID(node),
				HTML:  html,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("snapshot cards: %w", err)
	}

	return cards, nil
}

func nodeID(node *cdp.Node) string {
	for _, attr := range idAttrs {
		if v := strings.TrimSpace(node.AttributeValue(attr)); v != "" {
			return v
		}
	}
	return ""
}

// OpenDetail clicks the card to open its detail view and waits (bounded) for
// the detail container to render, returning its HTML.
func (s *Session) OpenDetail(ctx context.Context, card screening.Card) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := s.approachAndClickNode(cdp.NodeID(card.Ref)); err != nil {
		return "", fmt.Errorf("open detail: %w", err)
	}

	return s.DetailHTML(ctx)
}

// DetailHTML waits for the detail container within the configured bound and
// returns its rendered HTML.
func (s *Session) DetailHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	waitCtx, cancel := context.WithTimeout(s.ctx, s.cfg.DetailTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(waitCtx,
		chromedp.WaitVisible(s.cfg.DetailContainer, chromedp.ByQuery),
		chromedp.OuterHTML(s.cfg.DetailContainer, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("detail container %q did not render within %s: %w",
			s.cfg.DetailContainer, s.cfg.DetailTimeout, err)
	}

	return html, nil
}

// CloseDetail dismisses an open dialog: close-control cascade first, Escape
// as the last resort. Never fails.
func (s *Session) CloseDetail(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	for _, sel := range s.cfg.ModalSelectors {
		if err := s.clickFirst(sel); err == nil {
			return
		}
	}

	if err := chromedp.Run(s.ctx, chromedp.KeyEvent(kb.Escape)); err != nil {
		s.logger.Debug("escape dispatch failed", zap.Error(err))
	}
}

// Greet clicks the outreach control for the open candidate, trying the
// configured selector cascade.
func (s *Session) Greet(ctx context.Context, card screening.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var lastErr error
	for _, sel := range s.cfg.GreetSelectors {
		err := s.clickFirst(sel)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no greet selectors configured")
	}
	return fmt.Errorf("greet control not found: %w", lastErr)
}

// Scroll advances the window with staged fallbacks: smooth scroll, then
// instant scroll, then the first scrollable inner container.
func (s *Session) Scroll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	distance := s.cfg.ScrollDistance

	before, err := s.scrollY()
	if err != nil {
		return err
	}

	smooth := fmt.Sprintf(`window.scrollBy({top: %d, left: 0, behavior: 'smooth'})`, distance)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(smooth, nil)); err != nil {
		return fmt.Errorf("smooth scroll: %w", err)
	}
	_ = utils.WaitFor(ctx, s.cfg.ScrollSettle)

	if after, err := s.scrollY(); err == nil && after > before {
		return nil
	}

	instant := fmt.Sprintf(`window.scrollTo(0, window.scrollY + %d)`, distance)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(instant, nil)); err != nil {
		return fmt.Errorf("instant scroll: %w", err)
	}

	if after, err := s.scrollY(); err == nil && after > before {
		return nil
	}

	// The page keeps its list in an internal scroll container.
	container := fmt.Sprintf(`(() => {
		for (const el of document.querySelectorAll('*')) {
			if (el.scrollHeight > el.clientHeight + 10) {
				el.scrollTop += %d;
				return true;
			}
		}
		return false;
	})()`, distance)

	var scrolled bool
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(container, &scrolled)); err != nil {
		return fmt.Errorf("container scroll: %w", err)
	}
	if !scrolled {
		return errors.New("no scrollable container found")
	}
	return nil
}

// Delay waits a randomized inter-action interval.
func (s *Session) Delay(ctx context.Context) {
	_ = utils.RandomDelay(ctx, s.cfg.MinActionDelay, s.cfg.MaxActionDelay)
}

func (s *Session) scrollY() (float64, error) {
	var y float64
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(`window.scrollY`, &y)); err != nil {
		return 0, fmt.Errorf("read scroll position: %w", err)
	}
	return y, nil
}

// clickFirst resolves the selector and performs an approach-then-click on
// the first match. Returns an error when nothing matched.
func (s *Session) clickFirst(selector string) error {
	var nodes []*cdp.Node
	err := chromedp.Run(s.ctx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)),
	)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no element matches %q", selector)
	}
	return s.approachAndClickNode(nodes[0].NodeID)
}

// approachAndClickNode moves the pointer toward the node center in steps,
// dwells briefly, then dispatches a native press/release pair. The staged
// movement approximates human pointer behavior and keeps the automation
// fingerprint down.
func (s *Session) approachAndClickNode(id cdp.NodeID) error {
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		x, y, err := nodeCenter(ctx, id)
		if err != nil {
			return err
		}

		const steps = 6
		startX, startY := x-120, y-80
		for i := 1; i <= steps; i++ {
			t := float64(i) / steps
			moveX := startX + (x-startX)*t
			moveY := startY + (y-startY)*t
			if err := input.DispatchMouseEvent(input.MouseMoved, moveX, moveY).Do(ctx); err != nil {
				return fmt.Errorf("pointer move: %w", err)
			}
		}

		if err := utils.WaitFor(ctx, s.cfg.ApproachSettle); err != nil {
			return err
		}

		press := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithClickCount(1)
		if err := press.Do(ctx); err != nil {
			return fmt.Errorf("mouse press: %w", err)
		}

		release := input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1)
		if err := release.Do(ctx); err != nil {
			return fmt.Errorf("mouse release: %w", err)
		}

		return nil
	}))
}

// nodeCenter computes the node's content-box center in viewport coordinates.
func nodeCenter(ctx context.Context, id cdp.NodeID) (float64, float64, error) {
	box, err := dom.GetBoxModel().WithNodeID(id).Do(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("node geometry: %w", err)
	}
	if box == nil || len(box.Content) < 8 {
		return 0, 0, errors.New("node has no layout box")
	}

	quad := box.Content
	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
	return x, y, nil
}
