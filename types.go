package prismblog

import (
	"context"

	"github.com/a-h/templ"

	"github.com/eringen/prismblog/content"
	"github.com/eringen/prismblog/views"
)

// ContentAPI is the part of the content client the App uses. The listing
// loader queries through it and pagination sessions dereference their
// continuation references with it.
type ContentAPI interface {
	GetByType(ctx context.Context, docType string, opts content.QueryOptions) (content.PageResult, error)
	GetByUID(ctx context.Context, docType, uid string) (content.Post, error)
	FetchPage(ctx context.Context, ref string) (content.PageResult, error)
}

// ViewFuncs holds the templ components the handlers render. Any field left
// nil falls back to the views package.
type ViewFuncs struct {
	Home           func(site views.Site, posts []content.Post, data views.HomeData) templ.Component
	PostList       func(site views.Site, posts []content.Post) templ.Component
	Post           func(site views.Site, post content.Post) templ.Component
	AdminLogin     func(site views.Site, showError bool, csrf string) templ.Component
	AdminDashboard func(site views.Site, d views.Dashboard, csrf string) templ.Component
	NotFound       func(site views.Site) templ.Component
	ServerError    func(site views.Site) templ.Component
}

// DefaultViews returns the built-in templates.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:           views.Home,
		PostList:       views.PostList,
		Post:           views.Post,
		AdminLogin:     views.AdminLogin,
		AdminDashboard: views.AdminDashboard,
		NotFound:       views.NotFound,
		ServerError:    views.ServerError,
	}
}

func (v ViewFuncs) withDefaults() ViewFuncs {
	d := DefaultViews()
	if v.Home == nil {
		v.Home = d.Home
	}
	if v.PostList == nil {
		v.PostList = d.PostList
	}
	if v.Post == nil {
		v.Post = d.Post
	}
	if v.AdminLogin == nil {
		v.AdminLogin = d.AdminLogin
	}
	if v.AdminDashboard == nil {
		v.AdminDashboard = d.AdminDashboard
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
	return v
}
