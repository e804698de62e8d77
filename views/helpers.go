package views

import (
	"html/template"
	"net/url"
	"time"

	"github.com/eringen/ringslog"
	"github.com/eringen/ringslog/imagestage"
	"github.com/eringen/ringslog/markdown"
	"github.com/eringen/ringslog/postform"
)

var funcs = template.FuncMap{
	"markdown":   renderMarkdown,
	"cover":      CoverURL,
	"preview":    PreviewURL,
	"fieldError": FieldError,
	"date":       FormatDate,
	"excerpt":    ringslog.Excerpt,
	"pathEscape": url.PathEscape,
	"reviewLD":   ReviewJsonLD,
}

func renderMarkdown(s string) template.HTML {
	// goldmark output has raw HTML and unsafe URLs removed.
	return template.HTML(markdown.String(s))
}

// CoverURL is the image shown for a stored review, or the placeholder.
func CoverURL(src string) string {
	if u := markdown.SafeURL(src); u != "" {
		return u
	}
	return imagestage.NoImagePath
}

// PreviewURL is the src for the editor's image preview. Data URLs produced
// by the image stager are trusted; anything else goes through CoverURL.
func PreviewURL(img imagestage.Image) template.URL {
	switch img.Kind {
	case imagestage.KindLocal:
		return template.URL(img.URL)
	case imagestage.KindRemote:
		return template.URL(CoverURL(img.URL))
	default:
		return ""
	}
}

// FieldError returns the inline message for field, or "".
func FieldError(errs postform.FieldErrors, field string) string {
	return errs[postform.Field(field)]
}

// FormatDate formats t as 2006/01/02 in local time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006/01/02")
}

// ReviewJsonLD produces a Schema.org Review of a Book for a post page.
func ReviewJsonLD(p ringslog.PostPage) map[string]interface{} {
	r := p.Review
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "Review",
		"name":     r.Title,
		"url":      ringslog.BuildURL(p.Site.URL, "post", r.UID),
		"itemReviewed": map[string]string{
			"@type":  "Book",
			"name":   r.Title,
			"author": r.Author,
			"isbn":   r.ISBN,
		},
		"reviewBody": ringslog.Excerpt(r.Content, 200),
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  p.Site.Name,
		},
	}
	if !r.CreatedAt.IsZero() {
		data["datePublished"] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return data
}
