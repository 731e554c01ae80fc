package staticdom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepilot/pagepilot/internal/resolver"
)

const formSnapshot = `<!DOCTYPE html>
<html>
<head><title>Enrollment</title><script>ignored()</script></head>
<body>
  <h1>Student enrollment</h1>
  <label for="sid">Student ID</label>
  <input id="sid" name="student-id" type="text">
  <label>Email address <input id="email" type="email"></label>
  <input id="pw" type="password" autocomplete="current-password">
  <div id="save-desc">Save your enrollment</div>
  <button id="save" aria-labelledby="save-desc">Save</button>
  <a href="/help">Help center</a>
  <input id="ghost" type="text" hidden>
  <div style="display: none"><input id="invisible" type="text"></div>
</body>
</html>`

func loadForm(t *testing.T) *Page {
	t.Helper()
	page, err := LoadString(formSnapshot)
	require.NoError(t, err)
	return page
}

func findByAttrID(t *testing.T, els []*resolver.Element, id string) *resolver.Element {
	t.Helper()
	for _, el := range els {
		if el.Attr("id") == id {
			return el
		}
	}
	t.Fatalf("no element with id=%q among %d candidates", id, len(els))
	return nil
}

func TestQueryCandidates_InputHint(t *testing.T) {
	page := loadForm(t)

	els, err := page.QueryCandidates(context.Background(), resolver.HintInput)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, el := range els {
		ids[el.Attr("id")] = true
	}
	assert.True(t, ids["sid"])
	assert.True(t, ids["email"])
	assert.True(t, ids["pw"])
	// Buttons and links are not inputs.
	assert.False(t, ids["save"])
}

func TestQueryCandidates_ButtonHintIncludesLinks(t *testing.T) {
	page := loadForm(t)

	els, err := page.QueryCandidates(context.Background(), resolver.HintButton)
	require.NoError(t, err)

	var tags []string
	for _, el := range els {
		tags = append(tags, el.Tag)
	}
	assert.Contains(t, tags, "button")
	assert.Contains(t, tags, "a")
	assert.NotContains(t, tags, "textarea")
}

func TestSnapshot_LabelAssociation(t *testing.T) {
	page := loadForm(t)
	els, err := page.QueryCandidates(context.Background(), resolver.HintInput)
	require.NoError(t, err)

	// for=id lookup.
	sid := findByAttrID(t, els, "sid")
	assert.Equal(t, []string{"Student ID"}, sid.Labels)

	// Ancestor label walk.
	email := findByAttrID(t, els, "email")
	require.Len(t, email.Labels, 1)
	assert.Contains(t, email.Labels[0], "Email address")
}

func TestSnapshot_AriaLabelledBy(t *testing.T) {
	page := loadForm(t)
	els, err := page.QueryCandidates(context.Background(), resolver.HintButton)
	require.NoError(t, err)

	save := findByAttrID(t, els, "save")
	assert.Equal(t, "Save your enrollment", save.LabelledBy)
}

func TestSnapshot_HiddenElementsNotVisible(t *testing.T) {
	page := loadForm(t)
	els, err := page.QueryCandidates(context.Background(), resolver.HintInput)
	require.NoError(t, err)

	assert.False(t, findByAttrID(t, els, "ghost").Visible)
	assert.False(t, findByAttrID(t, els, "invisible").Visible)
	assert.True(t, findByAttrID(t, els, "sid").Visible)
}

func TestScroll_BelowFoldBecomesVisible(t *testing.T) {
	// A long page: filler lines push the target far below the fold.
	html := "<html><body>"
	for i := 0; i < 60; i++ {
		html += "<p>filler</p>"
	}
	html += `<label for="deep">Deep field</label><input id="deep" type="text"></body></html>`

	page, err := LoadString(html)
	require.NoError(t, err)
	ctx := context.Background()

	els, err := page.QueryCandidates(ctx, resolver.HintInput)
	require.NoError(t, err)
	deep := findByAttrID(t, els, "deep")
	assert.False(t, deep.Visible, "element 60 lines down must start off-screen")

	require.NoError(t, page.ScrollIntoView(ctx, deep, resolver.BlockCenter))
	attached, err := page.Refresh(ctx, deep)
	require.NoError(t, err)
	assert.True(t, attached)
	assert.True(t, deep.Visible)

	_, y, err := page.ScrollPosition(ctx)
	require.NoError(t, err)
	assert.Greater(t, y, 0.0)
}

func TestVisibleTextFragments_SkipsScriptsAndOffscreen(t *testing.T) {
	page := loadForm(t)

	frags, err := page.VisibleTextFragments(context.Background())
	require.NoError(t, err)

	var texts []string
	for _, f := range frags {
		texts = append(texts, f.Text)
	}
	assert.Contains(t, texts, "Student ID")
	assert.Contains(t, texts, "Student enrollment")
	assert.NotContains(t, texts, "ignored()")
	assert.NotContains(t, texts, "Enrollment") // <title> does not render
}

func TestFocusAndActiveElement(t *testing.T) {
	page := loadForm(t)
	ctx := context.Background()

	els, err := page.QueryCandidates(ctx, resolver.HintInput)
	require.NoError(t, err)
	sid := findByAttrID(t, els, "sid")

	require.NoError(t, page.Focus(ctx, sid))
	active, err := page.ActiveElement(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sid.ID, active.ID)
}

func TestAssociatedLabel(t *testing.T) {
	page := loadForm(t)
	ctx := context.Background()

	els, err := page.QueryCandidates(ctx, resolver.HintInput)
	require.NoError(t, err)

	label, err := page.AssociatedLabel(ctx, findByAttrID(t, els, "sid"))
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.Equal(t, "label", label.Tag)
	assert.Contains(t, label.Text, "Student ID")

	// The email input's label is its parent.
	label, err = page.AssociatedLabel(ctx, findByAttrID(t, els, "email"))
	require.NoError(t, err)
	require.NotNil(t, label)
	assert.Equal(t, "label", label.Tag)
}

func TestValueRoundTrip(t *testing.T) {
	page := loadForm(t)
	ctx := context.Background()

	els, err := page.QueryCandidates(ctx, resolver.HintInput)
	require.NoError(t, err)
	sid := findByAttrID(t, els, "sid")

	v, err := page.Value(ctx, sid)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, page.SetValue(ctx, sid, "12345678"))
	v, err = page.Value(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "12345678", v)
}
