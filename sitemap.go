package prismblog

import (
	"encoding/xml"

	"github.com/labstack/echo/v4"

	"github.com/eringen/prismblog/content"
	"github.com/eringen/prismblog/views"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) sitemap(posts []content.Post) sitemapURLSet {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: views.BuildURL(base)},
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     views.BuildURL(base, "post", p.UID),
			LastMod: lastModified(p),
		})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, posts []content.Post) error {
	return renderXML(c, "application/xml; charset=utf-8", a.sitemap(posts))
}
