package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepilot/pagepilot/internal/config"
)

// fakeClock advances instantly on Sleep so polling loops run without real
// waiting.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

// fakePage is a scriptable in-memory element directory.
type fakePage struct {
	mu        sync.Mutex
	elements  []*Element
	frags     []TextFragment
	scrolled  []string
	queries   int
	onQuery   func(pass int)
	onScroll  func(el *Element)
	onRefresh func(el *Element) bool
}

func (p *fakePage) QueryCandidates(_ context.Context, _ TypeHint) ([]*Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	if p.onQuery != nil {
		p.onQuery(p.queries)
	}
	out := make([]*Element, len(p.elements))
	copy(out, p.elements)
	return out, nil
}

func (p *fakePage) VisibleTextFragments(_ context.Context) ([]TextFragment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frags, nil
}

func (p *fakePage) ScrollIntoView(_ context.Context, el *Element, _ ScrollBlock) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolled = append(p.scrolled, el.ID)
	if p.onScroll != nil {
		p.onScroll(el)
	}
	return nil
}

func (p *fakePage) Refresh(_ context.Context, el *Element) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onRefresh != nil {
		return p.onRefresh(el), nil
	}
	return true, nil
}

func testResolverConfig() config.ResolverConfig {
	return config.NewDefaultConfig().Resolver
}

func newTestResolver(page Page) (*Resolver, *fakeClock) {
	r := NewResolver(page, testResolverConfig(), nil)
	clock := newFakeClock()
	r.SetClock(clock)
	return r, clock
}

func labeledInput(id, label string) *Element {
	return &Element{
		ID:        id,
		Tag:       "input",
		Attrs:     map[string]string{"type": "text"},
		Labels:    []string{label},
		Box:       Rect{X: 100, Y: 100, Width: 200, Height: 30},
		Visible:   true,
		Focusable: true,
		Editable:  true,
	}
}

func TestFindElement_ExactLabelWinsOverPartial(t *testing.T) {
	page := &fakePage{
		elements: []*Element{
			labeledInput("el-1", "Email address and backup contact"),
			labeledInput("el-2", "Email address"),
		},
	}
	r, _ := newTestResolver(page)

	match, err := r.FindElement(context.Background(), "Email address", Options{})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "el-2", match.Element.ID)
	assert.Equal(t, ConfidenceMedium, match.Confidence)
	assert.Contains(t, match.Reason, "associated label")
}

func TestFindElement_NoQualifyingCandidateTimesOut(t *testing.T) {
	page := &fakePage{
		elements: []*Element{labeledInput("el-1", "Shipping address")},
	}
	r, clock := newTestResolver(page)

	match, err := r.FindElement(context.Background(), "coupon code", Options{Timeout: 500 * time.Millisecond})
	require.NoError(t, err)
	assert.Nil(t, match)
	// The loop must actually have polled before giving up.
	assert.Greater(t, page.queries, 1)
	assert.NotEmpty(t, clock.sleeps)
}

func TestFindElement_PollsUntilElementAppears(t *testing.T) {
	page := &fakePage{}
	page.onQuery = func(pass int) {
		// The element renders on the third pass, as if the page loaded
		// it asynchronously.
		if pass == 3 && len(page.elements) == 0 {
			page.elements = append(page.elements, labeledInput("late-1", "Search"))
		}
	}
	r, _ := newTestResolver(page)

	match, err := r.FindElement(context.Background(), "Search", Options{})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "late-1", match.Element.ID)
	assert.GreaterOrEqual(t, page.queries, 3)
}

func TestFindElement_ScrollsOffscreenWinnerIntoView(t *testing.T) {
	offscreen := labeledInput("below-fold", "Promo code")
	offscreen.Visible = false
	page := &fakePage{elements: []*Element{offscreen}}
	page.onScroll = func(el *Element) { el.Visible = true }

	r, clock := newTestResolver(page)

	match, err := r.FindElement(context.Background(), "Promo code", Options{})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.True(t, match.Element.Visible)
	assert.Equal(t, []string{"below-fold"}, page.scrolled)
	// Settle wait happened between scroll and refresh.
	assert.Contains(t, clock.sleeps, testResolverConfig().ScrollSettleWait)
}

func TestFindElement_SkipVisibilityCheckAcceptsOffscreen(t *testing.T) {
	offscreen := labeledInput("below-fold", "Promo code")
	offscreen.Visible = false
	page := &fakePage{elements: []*Element{offscreen}}

	r, _ := newTestResolver(page)

	match, err := r.FindElement(context.Background(), "Promo code", Options{SkipVisibilityCheck: true})
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Empty(t, page.scrolled)
}

func TestFindElement_DetachedAfterScrollKeepsPolling(t *testing.T) {
	offscreen := labeledInput("stale", "Promo code")
	offscreen.Visible = false
	page := &fakePage{elements: []*Element{offscreen}}
	page.onRefresh = func(*Element) bool { return false }

	r, _ := newTestResolver(page)

	match, err := r.FindElement(context.Background(), "Promo code", Options{Timeout: 300 * time.Millisecond})
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.NotEmpty(t, page.scrolled)
}

func TestFindElement_ContextCancellation(t *testing.T) {
	page := &fakePage{}
	r, _ := newTestResolver(page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	match, err := r.FindElement(ctx, "anything", Options{})
	assert.Nil(t, match)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindMultiple_RanksDescendingAndCaps(t *testing.T) {
	page := &fakePage{
		elements: []*Element{
			labeledInput("a", "First name field"),
			labeledInput("b", "First name"),
			labeledInput("c", "Last name"),
		},
	}
	r, _ := newTestResolver(page)

	matches, err := r.FindMultiple(context.Background(), "First name", Options{}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "b", matches[0].Element.ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestFindMultiple_TiesBreakByElementID(t *testing.T) {
	page := &fakePage{
		elements: []*Element{
			labeledInput("zz", "Email"),
			labeledInput("aa", "Email"),
		},
	}
	r, _ := newTestResolver(page)

	first, err := r.FindMultiple(context.Background(), "Email", Options{}, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "aa", first[0].Element.ID)

	// Same page, same target: identical ranking on every pass.
	second, err := r.FindMultiple(context.Background(), "Email", Options{}, 0)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(first, second))
}

func TestBuildSelector(t *testing.T) {
	tests := []struct {
		name string
		el   *Element
		want string
	}{
		{
			name: "id and type",
			el: &Element{Tag: "input", Attrs: map[string]string{
				"id": "email", "type": "email",
			}},
			want: `input#email[type="email"]`,
		},
		{
			name: "generated classes filtered",
			el: &Element{Tag: "button", Attrs: map[string]string{
				"class": "css-1x8h2 primary submit-button hover:ring",
			}},
			want: "button.primary.submit-button",
		},
		{
			name: "bare tag",
			el:   &Element{Tag: "textarea"},
			want: "textarea",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildSelector(tt.el))
		})
	}
}
