// ABOUTME: Tests for the markdown terminal renderer.
// ABOUTME: All cases run with color disabled so output is deterministic.

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func plain() *Renderer {
	return New(WithColorDisabled())
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", plain().Render(""))
	assert.Equal(t, "", plain().Render("   \n\n  "))
}

func TestRender_Paragraphs(t *testing.T) {
	out := plain().Render("first paragraph\n\nsecond paragraph")
	assert.Equal(t, "first paragraph\n\nsecond paragraph", out)
}

func TestRender_SoftBreakJoinsLines(t *testing.T) {
	out := plain().Render("one\ntwo")
	assert.Equal(t, "one two", out)
}

func TestRender_Heading(t *testing.T) {
	out := plain().Render("## Setup\n\nbody")
	assert.Equal(t, "## Setup\n\nbody", out)
}

func TestRender_InlineStyles(t *testing.T) {
	out := plain().Render("**bold** and *italic* and `code`")
	assert.Equal(t, "bold and italic and code", out)
}

func TestRender_FencedCodeBlock(t *testing.T) {
	out := plain().Render("```go\nfunc main() {}\n```")
	assert.Equal(t, "    func main() {}", out)
}

func TestRender_CodeBlockKeepsLines(t *testing.T) {
	out := plain().Render("```\nline one\nline two\n```")
	assert.Equal(t, "    line one\n    line two", out)
}

func TestRender_UnorderedList(t *testing.T) {
	out := plain().Render("- alpha\n- beta")
	assert.Equal(t, "* alpha\n* beta", out)
}

func TestRender_OrderedList(t *testing.T) {
	out := plain().Render("1. first\n2. second")
	assert.Equal(t, "1. first\n2. second", out)
}

func TestRender_OrderedListCustomStart(t *testing.T) {
	out := plain().Render("3. third\n4. fourth")
	assert.Equal(t, "3. third\n4. fourth", out)
}

func TestRender_NestedList(t *testing.T) {
	out := plain().Render("- outer\n  - inner")
	assert.Equal(t, "* outer\n  * inner", out)
}

func TestRender_Link(t *testing.T) {
	out := plain().Render("see [docs](https://example.com)")
	assert.Equal(t, "see docs (https://example.com)", out)
}

func TestRender_LinkWithSameLabel(t *testing.T) {
	out := plain().Render("[https://example.com](https://example.com)")
	assert.Equal(t, "https://example.com", out)
}

func TestRender_Blockquote(t *testing.T) {
	out := plain().Render("> quoted text")
	assert.Equal(t, "> quoted text", out)
}

func TestRender_ThematicBreak(t *testing.T) {
	out := plain().Render("a\n\n---\n\nb")
	assert.Equal(t, "a\n\n----------------------------------------\n\nb", out)
}

func TestRender_MixedDocument(t *testing.T) {
	md := "# Title\n\nIntro with **emphasis**.\n\n- item one\n- item two\n\n```\ncode here\n```"
	out := plain().Render(md)
	assert.Equal(t, "# Title\n\nIntro with emphasis.\n\n* item one\n* item two\n\n    code here", out)
}
