// ABOUTME: Markdown-to-Telegram-HTML rendering for completion replies.
// ABOUTME: Normalizes goldmark output to the tag subset Telegram accepts.

package telegram

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

// Telegram's HTML parse mode accepts only a small tag subset (b, i, s, u,
// a, code, pre, blockquote). Goldmark emits full HTML, so block-level tags
// are rewritten to line breaks and inline emphasis tags to their Telegram
// equivalents; everything else unknown is stripped.
var (
	headingOpenRe  = regexp.MustCompile(`<h[1-6][^>]*>`)
	headingCloseRe = regexp.MustCompile(`</h[1-6]>`)
	strippedTagRe  = regexp.MustCompile(`</?(?:p|ul|ol|hr|br|img|table|thead|tbody|tr|th|td)(?:\s[^>]*)?/?>`)
)

var tagReplacer = strings.NewReplacer(
	"<strong>", "<b>", "</strong>", "</b>",
	"<em>", "<i>", "</em>", "</i>",
	"<del>", "<s>", "</del>", "</s>",
	"<li>", "• ", "</li>", "\n",
)

// RenderHTML converts model-generated markdown into Telegram-safe HTML.
// If markdown conversion fails the raw text is returned with markup
// characters left as-is; the caller should then send it as plain text.
func RenderHTML(markdown string) (string, bool) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return markdown, false
	}

	html := buf.String()
	html = headingOpenRe.ReplaceAllString(html, "<b>")
	html = headingCloseRe.ReplaceAllString(html, "</b>\n")
	html = tagReplacer.Replace(html)
	html = strings.ReplaceAll(html, "</p>", "\n")
	html = strippedTagRe.ReplaceAllString(html, "")
	html = strings.ReplaceAll(html, "\n\n\n", "\n\n")

	return strings.TrimSpace(html), true
}
