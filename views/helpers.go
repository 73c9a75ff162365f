package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/goodsign/monday"

	"github.com/eringen/prismblog/content"
)

// DateLayout renders dates as "dd MMM yyyy".
const DateLayout = "02 Jan 2006"

// FormatDate formats a publication date in locale. Unpublished posts have
// no date and format to "".
func FormatDate(d *content.Date, locale string) string {
	if d == nil || d.IsZero() {
		return ""
	}
	if locale == "" {
		return d.Format(DateLayout)
	}
	return monday.Format(d.Time, DateLayout, monday.Locale(locale))
}

// BuildURL joins path segments onto a base URL, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// PostPath is the detail route of a post.
func PostPath(uid string) string {
	return "/post/" + url.PathEscape(uid) + "/"
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block for the site.
func WebsiteJsonLD(site Site) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     site.Name,
		"url":      BuildURL(site.URL),
	}
	if site.Description != "" {
		data["description"] = site.Description
	}
	if site.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  site.Author,
		}
	}
	return marshalLD(data)
}

// BlogPostingJsonLD produces a Schema.org BlogPosting JSON-LD block for a post.
func BlogPostingJsonLD(site Site, post content.Post) string {
	postURL := BuildURL(site.URL, "post", post.UID)
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "BlogPosting",
		"headline":    post.Data.Title,
		"description": post.Data.Subtitle,
		"url":         postURL,
		"publisher": map[string]string{
			"@type": "Organization",
			"name":  site.Name,
		},
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if post.FirstPublicationDate != nil {
		data["datePublished"] = post.FirstPublicationDate.Format("2006-01-02")
	}
	if post.Data.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  post.Data.Author,
		}
	}
	return marshalLD(data)
}

func marshalLD(data map[string]interface{}) string {
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
