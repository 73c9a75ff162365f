package prismblog

import (
	"encoding/xml"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/prismblog/content"
	"github.com/eringen/prismblog/views"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	DC      string     `xml:"xmlns:dc,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"dc:creator,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

func (a *App) rssFeed(posts []content.Post) rssXML {
	base := a.Config.URL
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		pubDate := ""
		if p.FirstPublicationDate != nil && !p.FirstPublicationDate.IsZero() {
			pubDate = p.FirstPublicationDate.Format(time.RFC1123Z)
		}
		postURL := views.BuildURL(base, "post", p.UID)
		items = append(items, rssItem{
			Title:       p.Data.Title,
			Link:        postURL,
			Description: p.Data.Subtitle,
			Author:      p.Data.Author,
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	return rssXML{
		Version: "2.0",
		DC:      "http://purl.org/dc/elements/1.1/",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        views.BuildURL(base),
			Description: a.Config.Description,
			Language:    views.HTMLLang(a.Config.Locale),
			Items:       items,
		},
	}
}

func (a *App) renderRSS(c echo.Context, posts []content.Post) error {
	return renderXML(c, "application/rss+xml; charset=utf-8", a.rssFeed(posts))
}
