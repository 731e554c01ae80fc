// Package resolver maps natural language target descriptions to concrete
// page elements. It scores candidate elements against the description using
// label, attribute, role and proximity signals, then buckets the winning
// score into a confidence tier.
package resolver

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pagepilot/pagepilot/internal/config"
)

// Clock abstracts wall time so tests can run the polling loop without real
// sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is cancelled, returning ctx.Err()
	// in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock returns the wall-clock Clock implementation.
func RealClock() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options tune a single lookup.
type Options struct {
	// Type restricts candidates to a broad element category.
	Type TypeHint
	// Timeout overrides the configured polling deadline when positive.
	Timeout time.Duration
	// SkipVisibilityCheck accepts off-screen matches without scrolling
	// them into view.
	SkipVisibilityCheck bool
}

// Resolver performs scored lookups against a Page.
type Resolver struct {
	page   Page
	cfg    config.ResolverConfig
	logger *zap.Logger
	clock  Clock
}

// NewResolver builds a resolver over page. A nil logger is replaced with a
// no-op one.
func NewResolver(page Page, cfg config.ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		page:   page,
		cfg:    cfg,
		logger: logger,
		clock:  realClock{},
	}
}

// SetClock swaps the time source. Intended for tests.
func (r *Resolver) SetClock(c Clock) { r.clock = c }

// FindElement polls the page for the best element matching target until one
// reaches at least low confidence or the deadline passes. A nil match with a
// nil error means nothing qualified in time.
func (r *Resolver) FindElement(ctx context.Context, target string, opts Options) (*ElementMatch, error) {
	timeout := r.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	deadline := r.clock.Now().Add(timeout)

	log := r.logger.With(zap.String("target", target))

	for {
		match, err := r.bestMatch(ctx, target, opts)
		if err != nil {
			return nil, err
		}

		if match != nil {
			if match.Element.Visible || opts.SkipVisibilityCheck {
				log.Debug("Resolved target",
					zap.Float64("score", match.Score),
					zap.String("confidence", string(match.Confidence)),
					zap.String("selector", match.Selector))
				return match, nil
			}

			// Off-screen winner: scroll it into view, let layout
			// settle, then re-check attachment and visibility.
			if err := r.page.ScrollIntoView(ctx, match.Element, BlockCenter); err == nil {
				if err := r.clock.Sleep(ctx, r.cfg.ScrollSettleWait); err != nil {
					return nil, err
				}
				attached, err := r.page.Refresh(ctx, match.Element)
				if err == nil && attached && match.Element.Visible {
					log.Debug("Resolved target after scroll",
						zap.Float64("score", match.Score),
						zap.String("confidence", string(match.Confidence)))
					return match, nil
				}
			}
		}

		if !r.clock.Now().Add(r.cfg.PollInterval).Before(deadline) {
			log.Debug("Target did not resolve before deadline",
				zap.Duration("timeout", timeout))
			return nil, nil
		}
		if err := r.clock.Sleep(ctx, r.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

// FindMultiple returns up to maxResults qualifying matches from a single
// scoring pass, best first. It does not poll or scroll.
func (r *Resolver) FindMultiple(ctx context.Context, target string, opts Options, maxResults int) ([]*ElementMatch, error) {
	matches, err := r.scorePass(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}

// bestMatch runs one scoring pass and returns the top qualifying match, or
// nil when no candidate reached the low-confidence floor.
func (r *Resolver) bestMatch(ctx context.Context, target string, opts Options) (*ElementMatch, error) {
	matches, err := r.scorePass(ctx, target, opts)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (r *Resolver) scorePass(ctx context.Context, target string, opts Options) ([]*ElementMatch, error) {
	candidates, err := r.page.QueryCandidates(ctx, opts.Type)
	if err != nil {
		return nil, err
	}
	frags, err := r.page.VisibleTextFragments(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*ElementMatch
	for _, el := range candidates {
		score, reasons := scoreElement(el, target, frags, r.cfg.Weights, r.cfg.NearbyTextRadius)
		conf := getConfidence(score, r.cfg.Thresholds)
		if conf == ConfidenceNone {
			continue
		}
		matches = append(matches, &ElementMatch{
			Element:    el,
			Score:      score,
			Confidence: conf,
			Reason:     strings.Join(reasons, ", "),
			Selector:   buildSelector(el),
		})
	}

	// Stable order: descending score, ties broken by element ID so
	// identical pages always rank identically.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Element.ID < matches[j].Element.ID
	})
	return matches, nil
}
