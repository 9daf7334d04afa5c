// ABOUTME: Markdown-to-terminal renderer walking the goldmark AST.
// ABOUTME: Produces ANSI-styled text, or plain text with color disabled.

package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Renderer turns markdown into terminal output. Zero value is not
// usable; construct with New.
type Renderer struct {
	md goldmark.Markdown

	heading *color.Color
	strong  *color.Color
	em      *color.Color
	code    *color.Color
	dim     *color.Color
	link    *color.Color
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColorDisabled turns off ANSI styling; output is plain text with
// the same layout.
func WithColorDisabled() Option {
	return func(r *Renderer) {
		for _, c := range []*color.Color{r.heading, r.strong, r.em, r.code, r.dim, r.link} {
			c.DisableColor()
		}
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		md:      goldmark.New(),
		heading: color.New(color.Bold, color.Underline),
		strong:  color.New(color.Bold),
		em:      color.New(color.Italic),
		code:    color.New(color.FgCyan),
		dim:     color.New(color.Faint),
		link:    color.New(color.FgBlue, color.Underline),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render converts one markdown document to terminal text. The result
// ends without a trailing newline; callers add their own spacing.
func (r *Renderer) Render(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	src := []byte(markdown)
	doc := r.md.Parser().Parse(text.NewReader(src))

	var blocks []string
	for child := doc.FirstChild(); child != nil; child = child.NextSibling() {
		if block := r.renderBlock(child, src, ""); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (r *Renderer) renderBlock(node ast.Node, src []byte, indent string) string {
	switch n := node.(type) {
	case *ast.Heading:
		prefix := strings.Repeat("#", n.Level) + " "
		return indent + r.heading.Sprint(prefix+r.renderInline(n, src))
	case *ast.Paragraph, *ast.TextBlock:
		return indentLines(r.renderInline(node, src), indent)
	case *ast.FencedCodeBlock:
		return r.renderCodeLines(n.Lines(), src, indent)
	case *ast.CodeBlock:
		return r.renderCodeLines(n.Lines(), src, indent)
	case *ast.List:
		return r.renderList(n, src, indent)
	case *ast.Blockquote:
		return r.renderBlockquote(n, src, indent)
	case *ast.ThematicBreak:
		return indent + r.dim.Sprint(strings.Repeat("-", 40))
	case *ast.HTMLBlock:
		return r.renderCodeLines(n.Lines(), src, indent)
	default:
		// Unknown block kinds degrade to their inline text.
		return indentLines(r.renderInline(node, src), indent)
	}
}

func (r *Renderer) renderCodeLines(lines *text.Segments, src []byte, indent string) string {
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(src)), "\n")
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(indent + "    " + r.dim.Sprint(line))
	}
	return sb.String()
}

func (r *Renderer) renderList(list *ast.List, src []byte, indent string) string {
	var items []string
	number := list.Start
	if number == 0 {
		number = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "* "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", number)
			number++
		}

		var parts []string
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			childIndent := indent + strings.Repeat(" ", len(marker))
			switch child.(type) {
			case *ast.List:
				parts = append(parts, r.renderBlock(child, src, childIndent))
			default:
				block := r.renderBlock(child, src, childIndent)
				parts = append(parts, block)
			}
		}
		body := strings.Join(parts, "\n")
		// First line carries the marker in place of its indent.
		body = indent + marker + strings.TrimPrefix(body, indent+strings.Repeat(" ", len(marker)))
		items = append(items, body)
	}
	return strings.Join(items, "\n")
}

func (r *Renderer) renderBlockquote(quote *ast.Blockquote, src []byte, indent string) string {
	var blocks []string
	for child := quote.FirstChild(); child != nil; child = child.NextSibling() {
		blocks = append(blocks, r.renderBlock(child, src, ""))
	}
	inner := strings.Join(blocks, "\n")
	var sb strings.Builder
	for i, line := range strings.Split(inner, "\n") {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(indent + r.dim.Sprint("> ") + line)
	}
	return sb.String()
}

// renderInline flattens a node's inline children into one styled string.
func (r *Renderer) renderInline(node ast.Node, src []byte) string {
	var sb strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		r.writeInline(&sb, child, src)
	}
	return sb.String()
}

func (r *Renderer) writeInline(sb *strings.Builder, node ast.Node, src []byte) {
	switch n := node.(type) {
	case *ast.Text:
		sb.Write(n.Segment.Value(src))
		if n.HardLineBreak() {
			sb.WriteByte('\n')
		} else if n.SoftLineBreak() {
			sb.WriteByte(' ')
		}
	case *ast.Emphasis:
		style := r.em
		if n.Level >= 2 {
			style = r.strong
		}
		sb.WriteString(style.Sprint(r.renderInline(n, src)))
	case *ast.CodeSpan:
		sb.WriteString(r.code.Sprint(r.renderInline(n, src)))
	case *ast.Link:
		label := r.renderInline(n, src)
		dest := string(n.Destination)
		if label == dest || label == "" {
			sb.WriteString(r.link.Sprint(dest))
		} else {
			sb.WriteString(label + " (" + r.link.Sprint(dest) + ")")
		}
	case *ast.AutoLink:
		sb.WriteString(r.link.Sprint(string(n.URL(src))))
	case *ast.Image:
		sb.WriteString("[image: " + r.renderInline(n, src) + "]")
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			sb.Write(seg.Value(src))
		}
	case *ast.String:
		sb.Write(n.Value)
	default:
		sb.WriteString(r.renderInline(node, src))
	}
}

func indentLines(s, indent string) string {
	if indent == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
