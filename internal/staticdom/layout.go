package staticdom

import (
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// box is an element's position in document coordinates (not viewport):
// scrolling never moves it.
type box struct {
	x, y, w, h float64
}

const (
	lineHeight   = 24.0
	contentLeft  = 16.0
	charWidth    = 8.0
	defaultWidth = 160.0
)

// skipLayout marks subtrees that never render.
var skipLayout = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"noscript": true, "meta": true, "link": true, "title": true,
}

// computeLayout assigns every rendered element one layout line in document
// order. A real layout engine this is not; the point is stable, plausible
// geometry so proximity scoring and scroll simulation have something to work
// with.
func (p *Page) computeLayout() {
	line := 0
	seq := 0

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipLayout[n.Data] {
				return
			}
			if n.Data != "html" && n.Data != "body" {
				seq++
				id := htmlquery.SelectAttr(n, "id")
				if id == "" {
					id = "node"
				}
				handle := "sd-" + id + "-" + strconv.Itoa(seq)
				p.ids[n] = handle
				p.nodes[handle] = n
				p.layout[n] = box{
					x: contentLeft,
					y: float64(line) * lineHeight,
					w: elementWidth(n),
					h: lineHeight,
				}
				line++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(p.doc)
}

func elementWidth(n *html.Node) float64 {
	switch n.Data {
	case "input", "select":
		return 200
	case "textarea":
		return 320
	case "button":
		return 120
	}
	if text := strings.TrimSpace(htmlquery.InnerText(n)); text != "" {
		w := float64(len([]rune(text))) * charWidth
		if w > defaultViewportWidth-2*contentLeft {
			w = defaultViewportWidth - 2*contentLeft
		}
		return w
	}
	return defaultWidth
}

// viewportBox converts a document-coordinate box into viewport coordinates
// under the current scroll offset. Caller holds the lock.
func (p *Page) viewportBox(b box) box {
	return box{x: b.x - p.scrollX, y: b.y - p.scrollY, w: b.w, h: b.h}
}

// intersectsViewport reports whether any part of the viewport-coordinate box
// is on screen. Caller holds the lock.
func (p *Page) intersectsViewport(b box) bool {
	return b.x+b.w > 0 && b.x < p.viewportW && b.y+b.h > 0 && b.y < p.viewportH
}

// hiddenByMarkup reports whether the node or an ancestor is hidden through
// attributes or inline style.
func hiddenByMarkup(n *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if hasAttr(cur, "hidden") {
			return true
		}
		style := strings.ToLower(htmlquery.SelectAttr(cur, "style"))
		style = strings.ReplaceAll(style, " ", "")
		if strings.Contains(style, "display:none") ||
			strings.Contains(style, "visibility:hidden") ||
			strings.Contains(style, "opacity:0;") ||
			strings.HasSuffix(style, "opacity:0") {
			return true
		}
	}
	if n.Data == "input" && strings.EqualFold(htmlquery.SelectAttr(n, "type"), "hidden") {
		return true
	}
	return false
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return true
		}
	}
	return false
}

