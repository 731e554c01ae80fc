package resolver

import (
	"math"
	"strings"

	"github.com/pagepilot/pagepilot/internal/config"
)

// Confidence is the coarse tier derived from a match's numeric score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	// ConfidenceNone marks scores below the usable floor; such candidates
	// are discarded before they ever reach a caller.
	ConfidenceNone Confidence = "none"
)

// ElementMatch is one scored candidate. The handle stays live only for the
// duration of the synchronous call that produced it.
type ElementMatch struct {
	Element    *Element
	Score      float64
	Confidence Confidence
	// Reason lists the signal categories that contributed, for humans.
	Reason string
	// Selector is a best-effort CSS path for logging. Elements may have no
	// stable selector, so it is never used for re-lookup.
	Selector string
}

// Tokens whose presence in a target string suggests the user means an
// action button, respectively a text entry field.
var (
	actionTokens = []string{"save", "submit", "send", "continue", "next", "confirm", "ok"}
	inputTokens  = []string{"email", "password", "name", "id", "phone", "address", "search"}
)

// interactabilityPenalty halves the score of elements that cannot currently
// accept input instead of disqualifying them; a low-confidence match on a
// disabled control is still worth reporting.
const interactabilityPenalty = 0.5

// scoreElement evaluates one candidate against the normalized target string.
// It is fully deterministic: same snapshot and target, same score.
func scoreElement(el *Element, target string, frags []TextFragment, w config.ScoringWeights, radius float64) (float64, []string) {
	target = normalize(target)

	var score float64
	var reasons []string

	// 1. Label association: aria-label, associated <label> elements and
	// aria-labelledby referents. Exact beats substring.
	labelScore, labelReasons := scoreLabels(el, target, w)
	score += labelScore
	reasons = append(reasons, labelReasons...)

	// 2. Attribute scoring.
	if containsFold(el.Attr("name"), target) {
		score += w.NameContains
		reasons = append(reasons, "name match")
	}
	if containsFold(el.Attr("placeholder"), target) {
		score += w.NameContains
		reasons = append(reasons, "placeholder match")
	}
	if containsFold(el.Attr("id"), target) {
		score += w.IDContains
		reasons = append(reasons, "id match")
	}
	if containsFold(el.Attr("class"), target) {
		score += w.IDContains * 0.5
		reasons = append(reasons, "class match")
	}
	dataHits := 0
	for k, v := range el.Attrs {
		if strings.HasPrefix(k, "data-") && containsFold(v, target) {
			dataHits++
		}
	}
	if dataHits > 0 {
		score += w.IDContains * 0.7 * float64(dataHits)
		reasons = append(reasons, "data attribute match")
	}

	// 3. Nearby text: every visible text fragment containing the target
	// contributes proportionally to its proximity.
	if nearby := scoreNearbyText(el, target, frags, w.NearbyText, radius); nearby > 0 {
		score += nearby
		reasons = append(reasons, "nearby text")
	}

	// 4. Type bias: action-flavored targets favor buttons, field-flavored
	// targets favor inputs.
	if bias, reason := scoreTypeBias(el, target, w.RoleBias); bias > 0 {
		score += bias
		reasons = append(reasons, reason)
	}

	// 5. Interactability penalty.
	if score > 0 && !el.Interactable() {
		score *= interactabilityPenalty
		reasons = append(reasons, "not interactable (penalized)")
	}

	return score, reasons
}

func scoreLabels(el *Element, target string, w config.ScoringWeights) (float64, []string) {
	var score float64
	var reasons []string

	if aria := normalize(el.Attr("aria-label")); aria != "" {
		if aria == target {
			score += w.LabelExact
			reasons = append(reasons, "aria-label match")
		} else if strings.Contains(aria, target) {
			score += w.LabelContains
			reasons = append(reasons, "aria-label partial match")
		}
	}

	labeled := false
	for _, label := range el.Labels {
		norm := normalize(label)
		if norm == "" {
			continue
		}
		if norm == target {
			score += w.LabelExact
			labeled = true
		} else if strings.Contains(norm, target) {
			score += w.LabelContains
			labeled = true
		}
	}
	if labeled {
		reasons = append(reasons, "associated label")
	}

	if ref := normalize(el.LabelledBy); ref != "" {
		if ref == target {
			score += w.LabelExact
			reasons = append(reasons, "aria-labelledby match")
		} else if strings.Contains(ref, target) {
			score += w.LabelContains
			reasons = append(reasons, "aria-labelledby partial match")
		}
	}

	return score, reasons
}

func scoreNearbyText(el *Element, target string, frags []TextFragment, weight, radius float64) float64 {
	if len(frags) == 0 || radius <= 0 {
		return 0
	}
	cx, cy := el.Box.Center()
	var total float64
	for _, f := range frags {
		if !containsFold(f.Text, target) {
			continue
		}
		fx, fy := f.Box.Center()
		dist := math.Hypot(fx-cx, fy-cy)
		if dist > radius {
			continue
		}
		proximity := 1 - dist/radius
		if proximity > 0 {
			total += weight * proximity
		}
	}
	return total
}

func scoreTypeBias(el *Element, target string, weight float64) (float64, string) {
	if containsAnyToken(target, actionTokens) && isButtonLike(el) {
		return weight, "button role bias"
	}
	if containsAnyToken(target, inputTokens) && isInputLike(el) {
		return weight, "input role bias"
	}
	return 0, ""
}

func isButtonLike(el *Element) bool {
	switch el.Tag {
	case "button", "a":
		return true
	case "input":
		t := el.InputType()
		return t == "button" || t == "submit"
	}
	return el.Role == "button"
}

func isInputLike(el *Element) bool {
	switch el.Tag {
	case "input", "textarea":
		return true
	}
	return el.Role == "textbox" || el.Editable
}

// getConfidence maps a score onto its tier. Boundaries are inclusive at the
// bottom of each tier.
func getConfidence(score float64, t config.ConfidenceThresholds) Confidence {
	switch {
	case score >= t.High:
		return ConfidenceHigh
	case score >= t.Medium:
		return ConfidenceMedium
	case score >= t.Low:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// normalize lowercases and collapses surrounding whitespace for comparison.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsFold(haystack, needle string) bool {
	if haystack == "" || needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), needle)
}

func containsAnyToken(target string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(target, tok) {
			return true
		}
	}
	return false
}
