package resolver

import (
	"fmt"
	"sort"
	"strings"
)

// buildSelector produces a best-effort CSS path for diagnostics: tag, id,
// up to two stable-looking classes and the type attribute. Never used for
// re-lookup; plenty of elements have no stable selector at all.
func buildSelector(el *Element) string {
	var sb strings.Builder
	sb.WriteString(el.Tag)

	if id := el.Attr("id"); id != "" {
		sb.WriteString("#" + id)
	}

	classes := stableClasses(el.Attr("class"), 2)
	for _, c := range classes {
		sb.WriteString("." + c)
	}

	if t := el.Attr("type"); t != "" {
		fmt.Fprintf(&sb, `[type="%s"]`, t)
	}
	return sb.String()
}

// stableClasses filters out classes that look like generated CSS-in-JS or
// utility-framework hashes and returns at most max of the rest, sorted for
// deterministic output.
func stableClasses(classAttr string, max int) []string {
	fields := strings.Fields(classAttr)
	var stable []string
	for _, c := range fields {
		if looksGenerated(c) {
			continue
		}
		stable = append(stable, c)
	}
	sort.Strings(stable)
	if len(stable) > max {
		stable = stable[:max]
	}
	return stable
}

func looksGenerated(class string) bool {
	if len(class) <= 2 {
		return true
	}
	// Digits in short class names usually mean a build-time hash
	// (css-xh87a2, jsx-1842).
	if strings.ContainsAny(class, "0123456789") && len(class) < 12 {
		return true
	}
	return strings.Contains(class, ":")
}
