package views

import "time"

// Site holds site-wide settings every template needs.
type Site struct {
	Name          string
	URL           string
	Description   string
	Author        string
	Locale        string // date locale, e.g. "pt_BR"
	LoadMoreLabel string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	JSONLD      string
}

// HomeData is everything the home page renders.
type HomeData struct {
	ViewID    string // pagination session of this page view
	HasMore   bool
	CSRFToken string
}

// PageStatus is one cached page shown on the admin dashboard.
type PageStatus struct {
	Key         string
	GeneratedAt time.Time
	Stale       bool
	Refreshing  bool
}

// Dashboard is the admin dashboard model.
type Dashboard struct {
	Pages       []PageStatus
	ActiveViews int
	Revalidate  time.Duration
	Message     string
}
