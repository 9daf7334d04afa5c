// Package render converts assistant markdown to styled terminal text.
//
// # Rendering
//
// Markdown is parsed with goldmark and the AST is walked directly into
// ANSI escape sequences: headings bold, emphasis and strong inline,
// fenced code blocks indented and dimmed, lists bulleted, links shown
// as "text (url)". Styling degrades to plain text when color is
// disabled, so the same renderer serves pipes and dumb terminals.
package render
