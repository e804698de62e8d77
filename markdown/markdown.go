// Package markdown renders review text to HTML as a templ component.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in reviews is omitted and dangerous link schemes are dropped;
// goldmark does both unless WithUnsafe is set.
var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
	),
)

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderMarkdown(&buf, content)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderMarkdown writes the HTML representation of md to buf. If conversion
// fails the text is written escaped instead.
func RenderMarkdown(buf *bytes.Buffer, md string) {
	md = strings.TrimSpace(md)
	if md == "" {
		return
	}
	start := buf.Len()
	if err := engine.Convert([]byte(md), buf); err != nil {
		buf.Truncate(start)
		buf.WriteString("<p>")
		buf.WriteString(html.EscapeString(md))
		buf.WriteString("</p>")
	}
}

// String renders md and returns the HTML.
func String(md string) string {
	var buf bytes.Buffer
	RenderMarkdown(&buf, md)
	return buf.String()
}

// SafeURL validates and sanitizes a URL for use in HTML attributes. Relative
// paths and http(s) URLs pass; anything else yields "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") && !strings.HasPrefix(val, "//") {
		return val
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return val
	default:
		return ""
	}
}
