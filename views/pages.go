// Package views renders prismblog pages as templ components.
package views

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/prismblog/content"
)

const (
	postsContainerID = "posts"
	loadMoreButtonID = "load-more"

	// LoadMoreEndpoint receives the load-more requests of a page view.
	LoadMoreEndpoint = "/posts/more/"
)

var esc = html.EscapeString

// component adapts a buffer-writing function to templ.Component.
func component(fn func(buf *bytes.Buffer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		fn(&buf)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func layout(buf *bytes.Buffer, site Site, meta PageMeta, csrf string, body func()) {
	title := site.Name
	if meta.Title != "" {
		title = meta.Title + " | " + site.Name
	}
	description := meta.Description
	if description == "" {
		description = site.Description
	}
	ogType := meta.OGType
	if ogType == "" {
		ogType = "website"
	}

	buf.WriteString(`<!DOCTYPE html><html lang="`)
	buf.WriteString(esc(HTMLLang(site.Locale)))
	buf.WriteString(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	fmt.Fprintf(buf, `<title>%s</title>`, esc(title))
	if description != "" {
		fmt.Fprintf(buf, `<meta name="description" content="%s">`, esc(description))
	}
	fmt.Fprintf(buf, `<meta property="og:title" content="%s"><meta property="og:type" content="%s">`, esc(title), esc(ogType))
	if meta.URL != "" {
		fmt.Fprintf(buf, `<link rel="canonical" href="%s"><meta property="og:url" content="%s">`, esc(meta.URL), esc(meta.URL))
	}
	if csrf != "" {
		fmt.Fprintf(buf, `<meta name="csrf-token" content="%s">`, esc(csrf))
	}
	buf.WriteString(`<link rel="alternate" type="application/rss+xml" href="/feed.xml">`)
	if meta.JSONLD != "" {
		buf.WriteString(`<script type="application/ld+json">`)
		buf.WriteString(meta.JSONLD)
		buf.WriteString(`</script>`)
	}
	buf.WriteString(`<script src="/public/loadmore.js" defer></script></head><body>`)
	buf.WriteString(`<header><a href="/"><img src="/public/logo.svg" alt="logo"></a></header>`)
	body()
	buf.WriteString(`</body></html>`)
}

// HTMLLang turns a locale such as "pt_BR" into a language tag ("pt-BR").
func HTMLLang(locale string) string {
	if locale == "" {
		return "en"
	}
	return strings.ReplaceAll(locale, "_", "-")
}

func writePostCard(buf *bytes.Buffer, site Site, p content.Post) {
	fmt.Fprintf(buf, `<a class="post" href="%s"><article>`, esc(PostPath(p.UID)))
	fmt.Fprintf(buf, `<h2>%s</h2><p>%s</p><section>`, esc(p.Data.Title), esc(p.Data.Subtitle))
	if d := FormatDate(p.FirstPublicationDate, site.Locale); d != "" {
		fmt.Fprintf(buf, `<div class="date"><time datetime="%s" style="text-transform: capitalize">%s</time></div>`,
			esc(p.FirstPublicationDate.Format(time.RFC3339)), esc(d))
	}
	fmt.Fprintf(buf, `<div class="author"><span>%s</span></div>`, esc(p.Data.Author))
	buf.WriteString(`</section></article></a>`)
}

// PostList renders post cards without a surrounding page. It is the body of
// a load-more response.
func PostList(site Site, posts []content.Post) templ.Component {
	return component(func(buf *bytes.Buffer) {
		for _, p := range posts {
			writePostCard(buf, site, p)
		}
	})
}

// Home renders the listing page with its load-more button.
func Home(site Site, posts []content.Post, data HomeData) templ.Component {
	return component(func(buf *bytes.Buffer) {
		meta := PageMeta{URL: BuildURL(site.URL), JSONLD: WebsiteJsonLD(site)}
		layout(buf, site, meta, data.CSRFToken, func() {
			fmt.Fprintf(buf, `<main><div id="%s">`, postsContainerID)
			for _, p := range posts {
				writePostCard(buf, site, p)
			}
			buf.WriteString(`</div>`)
			if data.HasMore && data.ViewID != "" {
				label := site.LoadMoreLabel
				if label == "" {
					label = "Load more posts"
				}
				fmt.Fprintf(buf, `<button type="button" id="%s" data-view="%s" data-endpoint="%s" data-target="%s">%s</button>`,
					loadMoreButtonID, esc(data.ViewID), LoadMoreEndpoint, postsContainerID, esc(label))
			}
			buf.WriteString(`</main>`)
		})
	})
}

// Post renders the detail page of a post.
func Post(site Site, post content.Post) templ.Component {
	return component(func(buf *bytes.Buffer) {
		meta := PageMeta{
			Title:       post.Data.Title,
			Description: post.Data.Subtitle,
			URL:         BuildURL(site.URL, "post", post.UID),
			OGType:      "article",
			JSONLD:      BlogPostingJsonLD(site, post),
		}
		layout(buf, site, meta, "", func() {
			fmt.Fprintf(buf, `<main><article class="post-detail"><h1>%s</h1>`, esc(post.Data.Title))
			if post.Data.Subtitle != "" {
				fmt.Fprintf(buf, `<p class="subtitle">%s</p>`, esc(post.Data.Subtitle))
			}
			buf.WriteString(`<section>`)
			if d := FormatDate(post.FirstPublicationDate, site.Locale); d != "" {
				fmt.Fprintf(buf, `<span class="date" style="text-transform: capitalize">%s</span>`, esc(d))
			}
			fmt.Fprintf(buf, `<span class="author">%s</span>`, esc(post.Data.Author))
			buf.WriteString(`</section></article></main>`)
		})
	})
}

// NotFound renders the 404 page.
func NotFound(site Site) templ.Component {
	return component(func(buf *bytes.Buffer) {
		layout(buf, site, PageMeta{Title: "Not found"}, "", func() {
			buf.WriteString(`<main><h1>404</h1><p>This page does not exist.</p><a href="/">Back home</a></main>`)
		})
	})
}

// ServerError renders the 5xx page.
func ServerError(site Site) templ.Component {
	return component(func(buf *bytes.Buffer) {
		layout(buf, site, PageMeta{Title: "Error"}, "", func() {
			buf.WriteString(`<main><h1>Something went wrong</h1><p>Please try again in a moment.</p></main>`)
		})
	})
}
