package wikilink

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/wikipress/internal/contentindex"
)

func testIndex() *contentindex.Index {
	return contentindex.New(
		map[string]string{
			"today":   "/notes/",
			"index":   "/",
			"my work": "/projects/",
		},
		map[string]string{
			"chart.png":  "/files/",
			"report.pdf": "/files/docs/",
			"SCAN.PDF":   "/",
		},
	)
}

const reportEmbed = `<iframe src="{static}/files/docs/report.pdf" width="100%" height="800px" style="border: none;"></iframe>` +
	`<p><!-- browser fall back --> Click here to download. ` +
	`<a href="{static}/files/docs/report.pdf" target="_blank" rel="noopener">Download the PDF</a></p>`

func TestRewriteText_Scenario(t *testing.T) {
	got := RewriteText("See [[today]] and ![[chart.png]]", testIndex())
	assert.Equal(t, "See [today]({filename}/notes/today.md) and ![chart.png]({static}/files/chart.png)", got)
}

func TestRewriteText_UnresolvedDocumentIsPlainText(t *testing.T) {
	idx := testIndex()
	assert.Equal(t, "missing", RewriteText("[[missing]]", idx))
	assert.Equal(t, "shown text", RewriteText("[[missing| shown text ]]", idx))
}

func TestRewriteText_UnresolvedAssetDisappears(t *testing.T) {
	idx := testIndex()
	assert.Equal(t, "", RewriteText("![[ghost.png]]", idx))
	assert.Equal(t, "a  b", RewriteText("a ![[ghost.png|x]] b", idx))
	// A document name used as an embed is looked up among assets only.
	assert.Equal(t, "", RewriteText("![[today]]", idx))
}

func TestRewriteText_Alias(t *testing.T) {
	got := RewriteText("[[ my work | is finished ]]", testIndex())
	assert.Equal(t, "[is finished]({filename}/projects/my work.md)", got)

	got = RewriteText("![[chart.png|Quarterly chart]]", testIndex())
	assert.Equal(t, "![Quarterly chart]({static}/files/chart.png)", got)
}

func TestRewriteText_PDF(t *testing.T) {
	got := RewriteText("Read: ![[report.pdf]]", testIndex())
	assert.Equal(t, "Read: "+reportEmbed, got)
	assert.Equal(t, 2, strings.Count(got, "{static}/files/docs/report.pdf"))
}

func TestRewriteText_PDFExtensionCaseInsensitive(t *testing.T) {
	got := RewriteText("![[SCAN.PDF]]", testIndex())
	assert.Contains(t, got, `<iframe src="{static}/SCAN.PDF"`)
	assert.Contains(t, got, `<a href="{static}/SCAN.PDF"`)
}

func TestRewriteText_RootDocument(t *testing.T) {
	assert.Equal(t, "[index]({filename}/index.md)", RewriteText("[[index]]", testIndex()))
}

func TestRewriteText_IdentityWithoutTokens(t *testing.T) {
	idx := testIndex()
	for _, in := range []string{
		"",
		"plain text",
		"[link](http://example.com) and ![img](a.png)",
		"[[unterminated",
		"! [[ ]",
		"a ] b [ c | d ]] e",
		"unicode ✓ [x]",
	} {
		once := RewriteText(in, idx)
		assert.Equal(t, in, once, in)
		assert.Equal(t, once, RewriteText(once, idx), in)
	}
}

func TestRewriteText_NoStrayBang(t *testing.T) {
	got := RewriteText("![[missing.md]] and ![[chart.png]]", testIndex())
	assert.Equal(t, " and ![chart.png]({static}/files/chart.png)", got)
	assert.NotContains(t, got, "![[")
}

// The document pass runs over the output of the embed pass, so an embed in
// an alias turns into a linked image.
func TestRewriteText_EmbedInsideAlias(t *testing.T) {
	got := RewriteText("[[today|![[chart.png]]]]", testIndex())
	assert.Equal(t, "[![chart.png]({static}/files/chart.png)]({filename}/notes/today.md)", got)
}

func TestRewriteText_MultilineVerbatim(t *testing.T) {
	in := "# Title\n\n- [[today]]\n- [[nope]]\n\n```\ncode\n```\n"
	want := "# Title\n\n- [today]({filename}/notes/today.md)\n- nope\n\n```\ncode\n```\n"
	assert.Equal(t, want, RewriteText(in, testIndex()))
}

func TestRewrite_References(t *testing.T) {
	r := NewRewriter(testIndex())
	res := r.Rewrite("[[today]] ![[ghost.png]] [[nope|N]] ![[report.pdf]]")

	require.Len(t, res.References, 4)
	// Embeds are substituted first.
	assert.Equal(t, Reference{Kind: KindAsset, Target: "ghost.png", Display: "ghost.png", Outcome: AssetUnresolved}, res.References[0])
	assert.Equal(t, Reference{Kind: KindAsset, Target: "report.pdf", Display: "report.pdf", Outcome: AssetDocument, Dir: "/files/docs/"}, res.References[1])
	assert.Equal(t, Reference{Kind: KindDocument, Target: "today", Display: "today", Outcome: DocumentLink, Dir: "/notes/"}, res.References[2])
	assert.Equal(t, Reference{Kind: KindDocument, Target: "nope", Display: "N", Outcome: DocumentUnresolved}, res.References[3])

	unresolved := res.Unresolved()
	require.Len(t, unresolved, 2)
	assert.Equal(t, "ghost.png", unresolved[0].Target)
	assert.Equal(t, "nope", unresolved[1].Target)
}

func TestRewrite_CustomMarkup(t *testing.T) {
	r := NewRewriter(testIndex(), WithMarkup(Markup{
		DocumentBase: "https://site.example",
		StaticBase:   "https://cdn.example",
		DocumentExt:  ".html",
	}))
	got := r.Rewrite("[[today]] ![[chart.png]]").Text
	assert.Equal(t, "[today](https://site.example/notes/today.html) ![chart.png](https://cdn.example/files/chart.png)", got)
}

func TestResolve_Outcomes(t *testing.T) {
	idx := testIndex()
	cases := []struct {
		tok  Token
		want Outcome
		dir  string
	}{
		{Token{Kind: KindDocument, Target: "today"}, DocumentLink, "/notes/"},
		{Token{Kind: KindDocument, Target: "Today"}, DocumentUnresolved, ""},
		{Token{Kind: KindAsset, Target: "chart.png"}, AssetImage, "/files/"},
		{Token{Kind: KindAsset, Target: "report.pdf"}, AssetDocument, "/files/docs/"},
		{Token{Kind: KindAsset, Target: "chart"}, AssetUnresolved, ""},
	}
	for _, tc := range cases {
		res := Resolve(tc.tok, idx)
		assert.Equal(t, tc.want, res.Outcome, tc.tok.Target)
		assert.Equal(t, tc.dir, res.Dir, tc.tok.Target)
	}
}

func TestOutcome_Names(t *testing.T) {
	for _, o := range []Outcome{DocumentLink, DocumentUnresolved, AssetImage, AssetDocument, AssetUnresolved} {
		parsed, ok := ParseOutcome(o.String())
		require.True(t, ok)
		assert.Equal(t, o, parsed)
	}
	_, ok := ParseOutcome("bogus")
	assert.False(t, ok)
	assert.False(t, DocumentUnresolved.Resolved())
	assert.True(t, AssetDocument.Resolved())
}

func TestReference_JSON(t *testing.T) {
	data, err := json.Marshal(Reference{Kind: KindAsset, Target: "a.png", Display: "a.png", Outcome: AssetImage, Dir: "/"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"asset","target":"a.png","display":"a.png","outcome":"asset_image","dir":"/"}`, string(data))

	var back Reference
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, KindAsset, back.Kind)
	assert.Equal(t, AssetImage, back.Outcome)

	assert.Error(t, json.Unmarshal([]byte(`{"outcome":"bogus"}`), &back))
}

func TestRewrite_EscapePaths(t *testing.T) {
	m := DefaultMarkup()
	m.EscapePaths = true
	got := NewRewriter(testIndex(), WithMarkup(m)).Rewrite("[[my work]]").Text
	assert.Equal(t, "[my work]({filename}/projects/my%20work.md)", got)
}
