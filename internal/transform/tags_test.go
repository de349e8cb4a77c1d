package transform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanPreservesLiteralMarkup(t *testing.T) {
	doc := "<!DOCTYPE html>\n<html><!-- comment --><body class=\"x\">&amp; text</body></html>"

	segs, err := scan(doc)

	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, doc, segs[0].literal)
}

func TestScanSplitsRecognizedTags(t *testing.T) {
	doc := `a<include src="x">child</include>b<env allow="dev">c</env>d`

	segs, err := scan(doc)

	require.NoError(t, err)
	require.Len(t, segs, 5)
	assert.Equal(t, "a", segs[0].literal)
	require.NotNil(t, segs[1].tag)
	assert.Equal(t, tagInclude, segs[1].tag.name)
	assert.Equal(t, "x", segs[1].tag.attrs["src"])
	assert.Equal(t, "child", segs[1].tag.children)
	assert.Equal(t, "b", segs[2].literal)
	assert.Equal(t, tagEnv, segs[3].tag.name)
	assert.Equal(t, "c", segs[3].tag.children)
	assert.Equal(t, "d", segs[4].literal)
}

func TestScanTracksNestingOfSameTag(t *testing.T) {
	doc := `<env allow="a">outer<env allow="b">inner</env>tail</env>`

	segs, err := scan(doc)

	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, `outer<env allow="b">inner</env>tail`, segs[0].tag.children)
}

func TestScanLeavesFoldedCaseVariantsAsLiterals(t *testing.T) {
	segs, err := scan(`<INCLUDE src="x.html"></INCLUDE><Env allow="production">a</Env>`)

	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Nil(t, segs[0].tag)
	assert.Equal(t, `<INCLUDE src="x.html"></INCLUDE><Env allow="production">a</Env>`, segs[0].literal)
}

func TestScanIgnoresRecognizedNamesInComments(t *testing.T) {
	doc := `<!-- <include src="x"> -->`

	segs, err := scan(doc)

	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Nil(t, segs[0].tag)
}

func TestRewriteIncludeSrcsResolvesRelativePaths(t *testing.T) {
	base := filepath.FromSlash("/srv/site/partials")
	in := `<p>x</p><include src="nav.html"></include>`

	out := rewriteIncludeSrcs(in, base, nil)

	assert.Contains(t, out, `src="`+filepath.Join(base, "nav.html")+`"`)
	assert.Contains(t, out, "<p>x</p>")
}

func TestRewriteIncludeSrcsLeavesAbsoluteAndLogicalPathsAlone(t *testing.T) {
	in := `<include src="/abs/path.html"></include>`
	assert.Equal(t, in, rewriteIncludeSrcs(in, "/elsewhere", nil))

	logical := `<include src="widgets/button"></include>`
	isLogical := func(s string) bool { return s == "widgets/button" }
	assert.Equal(t, logical, rewriteIncludeSrcs(logical, "/elsewhere", isLogical))
}

func TestFillSlotNoSlotLeavesMarkupAlone(t *testing.T) {
	out, found, err := fillSlot("<div>plain</div>", "children")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "<div>plain</div>", out)
}
