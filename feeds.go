package ringslog

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const feedSize = 20

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Author      string `xml:"author,omitempty"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// handleFeed serves the newest reviews as RSS 2.0.
func (a *App) handleFeed(c echo.Context) error {
	reviews, err := a.reviews.ListReviews(c.Request().Context())
	if err != nil {
		return err
	}
	if len(reviews) > feedSize {
		reviews = reviews[:feedSize]
	}
	base := a.Config.URL
	items := make([]rssItem, 0, len(reviews))
	for _, r := range reviews {
		link := BuildURL(base, "post", r.UID)
		items = append(items, rssItem{
			Title:       r.Title,
			Author:      r.Author,
			Link:        link,
			Description: Excerpt(r.Content, 200),
			PubDate:     r.CreatedAt.UTC().Format(time.RFC1123Z),
			GUID:        link,
		})
	}
	return writeXML(c, "application/rss+xml; charset=utf-8", rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Language:    "ja",
			Items:       items,
		},
	})
}

// handleSitemap lists the home page and every review page.
func (a *App) handleSitemap(c echo.Context) error {
	reviews, err := a.reviews.ListReviews(c.Request().Context())
	if err != nil {
		return err
	}
	base := a.Config.URL
	urls := []sitemapURL{{Loc: BuildURL(base)}}
	for _, r := range reviews {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "post", r.UID),
			LastMod: r.UpdatedAt.UTC().Format("2006-01-02"),
		})
	}
	return writeXML(c, "application/xml; charset=utf-8", sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	})
}

func writeXML(c echo.Context, contentType string, v interface{}) error {
	c.Response().Header().Set(echo.HeaderContentType, contentType)
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write([]byte(xml.Header)); err != nil {
		return err
	}
	return xml.NewEncoder(c.Response()).Encode(v)
}
