package staticdom

import (
	"context"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/pagepilot/pagepilot/internal/resolver"
)

// Candidate XPath per type hint, mirroring what the live-browser collector
// queries.
var candidateXPath = map[resolver.TypeHint]string{
	resolver.HintInput:  "//input | //textarea | //select | //*[@contenteditable]",
	resolver.HintButton: "//button | //*[@role='button'] | //input[@type='button'] | //input[@type='submit'] | //a",
	resolver.HintLink:   "//a | //*[@role='link']",
	resolver.HintAny: "//input | //textarea | //select | //*[@contenteditable] | //button | //a | " +
		"//*[@role] | //*[@tabindex]",
}

var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true, "textarea": true,
}

// QueryCandidates snapshots the elements plausibly interactive for the hint,
// in document order, against the current scroll position.
func (p *Page) QueryCandidates(_ context.Context, hint resolver.TypeHint) ([]*resolver.Element, error) {
	xp, ok := candidateXPath[hint]
	if !ok {
		xp = candidateXPath[resolver.HintAny]
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	nodes, err := htmlquery.QueryAll(p.doc, xp)
	if err != nil {
		return nil, err
	}

	seen := make(map[*html.Node]bool, len(nodes))
	var out []*resolver.Element
	for _, n := range nodes {
		if seen[n] || p.ids[n] == "" {
			continue
		}
		seen[n] = true
		out = append(out, p.snapshot(n))
	}
	return out, nil
}

// VisibleTextFragments returns every on-screen text node with the geometry
// of its owning element.
func (p *Page) VisibleTextFragments(_ context.Context) ([]resolver.TextFragment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var frags []resolver.TextFragment
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipLayout[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			owner := n.Parent
			if text != "" && owner != nil {
				if b, ok := p.layout[owner]; ok && !hiddenByMarkup(owner) {
					vb := p.viewportBox(b)
					if p.intersectsViewport(vb) {
						frags = append(frags, resolver.TextFragment{
							Text: text,
							Box:  resolver.Rect{X: vb.x, Y: vb.y, Width: vb.w, Height: vb.h},
						})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p.doc)
	return frags, nil
}

// AssociatedLabel returns the first label tied to the element by for=id or
// by being its ancestor.
func (p *Page) AssociatedLabel(_ context.Context, el *resolver.Element) (*resolver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node := p.nodes[el.ID]
	if node == nil {
		return nil, nil
	}
	if label := p.labelNodeFor(node); label != nil {
		return p.snapshot(label), nil
	}
	return nil, nil
}

// snapshot builds a resolver.Element view of the node against the current
// scroll offset. Caller holds the lock.
func (p *Page) snapshot(n *html.Node) *resolver.Element {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}

	b := p.viewportBox(p.layout[n])
	visible := !hiddenByMarkup(n) && p.intersectsViewport(b)

	style := strings.ReplaceAll(strings.ToLower(attrs["style"]), " ", "")

	el := &resolver.Element{
		ID:                p.ids[n],
		Tag:               n.Data,
		Role:              attrs["role"],
		Attrs:             attrs,
		Labels:            p.labelTextsFor(n),
		LabelledBy:        p.labelledByText(n, attrs["aria-labelledby"]),
		Text:              truncate(strings.TrimSpace(htmlquery.InnerText(n)), 200),
		Box:               resolver.Rect{X: b.x, Y: b.y, Width: b.w, Height: b.h},
		Visible:           visible,
		Disabled:          hasAttr(n, "disabled"),
		PointerEventsNone: strings.Contains(style, "pointer-events:none"),
		Focusable:         isFocusable(n, attrs),
		Editable:          isEditable(n, attrs),
	}
	return el
}

// labelTextsFor collects the texts of labels associated via for=id plus the
// closest ancestor label. Caller holds the lock.
func (p *Page) labelTextsFor(n *html.Node) []string {
	var labels []string
	if id := htmlquery.SelectAttr(n, "id"); id != "" {
		for _, label := range htmlquery.Find(p.doc, "//label[@for='"+id+"']") {
			if text := strings.TrimSpace(htmlquery.InnerText(label)); text != "" {
				labels = append(labels, text)
			}
		}
	}
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == "label" {
			if text := strings.TrimSpace(htmlquery.InnerText(cur)); text != "" {
				labels = append(labels, text)
			}
			break
		}
	}
	return labels
}

// labelNodeFor finds the label element associated with n, preferring for=id
// over the ancestor walk. Caller holds the lock.
func (p *Page) labelNodeFor(n *html.Node) *html.Node {
	if id := htmlquery.SelectAttr(n, "id"); id != "" {
		if label := htmlquery.FindOne(p.doc, "//label[@for='"+id+"']"); label != nil {
			return label
		}
	}
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == "label" {
			return cur
		}
	}
	return nil
}

// labelledByText joins the text of every element referenced by
// aria-labelledby. Caller holds the lock.
func (p *Page) labelledByText(_ *html.Node, refs string) string {
	if refs == "" {
		return ""
	}
	var parts []string
	for _, ref := range strings.Fields(refs) {
		if target := htmlquery.FindOne(p.doc, "//*[@id='"+ref+"']"); target != nil {
			if text := strings.TrimSpace(htmlquery.InnerText(target)); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}

// focusableNodes lists focusable elements in document order. Caller holds
// the lock.
func (p *Page) focusableNodes() []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && p.ids[n] != "" {
			attrs := make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				attrs[strings.ToLower(a.Key)] = a.Val
			}
			if isFocusable(n, attrs) && !hiddenByMarkup(n) {
				out = append(out, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p.doc)
	return out
}

func isFocusable(n *html.Node, attrs map[string]string) bool {
	if hasAttr(n, "disabled") {
		return false
	}
	if interactiveTags[n.Data] {
		return true
	}
	_, hasTabindex := attrs["tabindex"]
	_, hasEditable := attrs["contenteditable"]
	return hasTabindex || hasEditable
}

func isEditable(n *html.Node, attrs map[string]string) bool {
	if n.Data == "input" || n.Data == "textarea" {
		return !hasAttr(n, "disabled") && !hasAttr(n, "readonly")
	}
	_, ok := attrs["contenteditable"]
	return ok
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
