// Package prismblog is a blog front-end for a headless CMS built with Go,
// Echo, and templ. The home page lists the newest posts one page at a time:
// the first page is generated ahead of requests and regenerated on an
// interval, later pages are appended in the browser through a per-view
// pagination session that follows the API's continuation references.
//
// Users can replace any template through ViewFuncs; prismblog owns the
// content client, page cache, handlers, and middleware.
package prismblog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eringen/prismblog/content"
	"github.com/eringen/prismblog/listing"
	"github.com/eringen/prismblog/logger"
	"github.com/eringen/prismblog/pagination"
	"github.com/eringen/prismblog/views"
)

const (
	loadMoreLabel = "Carregar mais posts"
	feedLimit     = 50
)

// App is the central prismblog application. It wires together the content
// client, page cache, pagination sessions, handlers, and templates.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Log      logger.Logger
	Content  ContentAPI
	Loader   *listing.Loader
	Store    *Store
	Cache    *PageCache
	Sessions *pagination.Registry
	Metrics  *Metrics
	Views    ViewFuncs

	registry        *prometheus.Registry
	loginLimiter    *Limiter
	loadMoreLimiter *Limiter
	customRoutes    []func(*App)
	staticDir       string

	coreOnce  sync.Once
	coreErr   error
	setupOnce sync.Once
	setupErr  error
}

// New creates an App from cfg. Nothing is opened until Setup, Start or
// Build is called.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		staticDir: "public",
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	a.Views = a.Views.withDefaults()
	return a
}

// initCore opens everything both the server and the build command need:
// logger, content client, listing loader, snapshot store and page cache.
func (a *App) initCore() error {
	a.coreOnce.Do(func() {
		a.coreErr = a.openCore()
	})
	return a.coreErr
}

func (a *App) openCore() error {
	if a.Log == nil {
		l, err := logger.New(a.Config.Log)
		if err != nil {
			return fmt.Errorf("prismblog: init logger: %w", err)
		}
		a.Log = l
	}

	if a.Content == nil {
		policy := content.DefaultRetryPolicy()
		policy.MaxAttempts = a.Config.Content.MaxAttempts
		client, err := content.NewClient(content.Config{
			Endpoint:    a.Config.Content.Endpoint,
			AccessToken: a.Config.Content.AccessToken,
			Timeout:     a.Config.Content.Timeout.Duration,
			Retry:       policy,
		}, content.WithLogger(a.Log.With(logger.String("component", "content"))))
		if err != nil {
			return fmt.Errorf("prismblog: init content client: %w", err)
		}
		a.Content = client
	}
	a.Loader = listing.NewLoader(a.Content, a.Config.Content.Type, a.Config.Content.PageSize, a.Config.Content.Orderings...)

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("prismblog: init store: %w", err)
	}
	a.Store = store

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = NewMetrics(a.registry, a.activeViews)

	a.Cache = NewPageCache(a.Store, a.Config.Revalidate.Duration, a.Log.With(logger.String("component", "cache")), a.Metrics)
	if err := a.Cache.Prime(); err != nil {
		a.Log.Warn("serving without persisted snapshots", logger.Error(err))
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets are served under /public/ and fall through to the
	// user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	e.GET("/public/loadmore.js", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	e.GET("/public/logo.svg", echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/", a.handleHome)
	e.POST(views.LoadMoreEndpoint, a.handleLoadMore)
	e.GET("/post/:uid/", a.handlePost)

	if a.Config.RevalidateSecret != "" {
		e.POST("/api/revalidate", a.handleRevalidateWebhook)
	}

	// Admin routes
	if a.Config.AdminPassword != "" {
		e.GET("/admin/", a.handleAdmin)
		e.POST("/admin/login/", a.handleAdminLogin)
		e.POST("/admin/logout/", handleAdminLogout)
		e.POST("/admin/revalidate/", a.handleAdminRevalidate)
	}
}

func (a *App) activeViews() float64 {
	if a.Sessions == nil {
		return 0
	}
	return float64(a.Sessions.Len())
}

// Setup prepares the HTTP server: pagination sessions, limiters, middleware
// and routes. Start calls it; tests can call it and drive a.Echo directly.
func (a *App) Setup() error {
	a.setupOnce.Do(func() {
		a.setupErr = a.setup()
	})
	return a.setupErr
}

func (a *App) setup() error {
	if a.Config.SessionSecret == "" {
		return errors.New("prismblog: SessionSecret is required")
	}
	if err := a.initCore(); err != nil {
		return err
	}

	a.Sessions = pagination.NewRegistry(a.Content, a.Config.ViewTTL.Duration, a.Config.MaxViews)
	a.loginLimiter = NewLimiter(5, time.Minute)
	a.loadMoreLimiter = NewLimiter(a.Config.LoadMoreLimit, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start sets the App up and serves HTTP until the server is shut down.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.Log.Info("listening",
		logger.String("addr", a.Config.Addr),
		logger.String("content_type", a.Config.Content.Type),
		logger.Int("page_size", a.Loader.PageSize()),
		logger.Duration("revalidate", a.Config.Revalidate.Duration),
		logger.Bool("admin", a.Config.AdminPassword != ""),
		logger.Bool("revalidate_webhook", a.Config.RevalidateSecret != ""),
	)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Build generates the home listing once and persists its snapshot, so a
// server started afterwards can serve it before its first regeneration.
// A failed listing fetch is returned as *listing.BuildFetchError.
func (a *App) Build(ctx context.Context) (content.PageResult, error) {
	if err := a.initCore(); err != nil {
		return content.PageResult{}, err
	}
	return regenerate(ctx, a.Cache, listingKey, a.Loader.Load)
}

// Revalidate marks every cached page stale and regenerates the listing
// right away. Detail pages regenerate on their next request.
func (a *App) Revalidate(ctx context.Context) (content.PageResult, error) {
	a.Cache.InvalidateAll()
	return revalidate(ctx, a.Cache, listingKey, a.Loader.Load)
}

func (a *App) loadListing(ctx context.Context) (content.PageResult, error) {
	return cached(ctx, a.Cache, listingKey, a.Loader.Load)
}

func (a *App) loadPost(ctx context.Context, uid string) (content.Post, error) {
	return cached(ctx, a.Cache, postKey(uid), func(ctx context.Context) (content.Post, error) {
		return a.Content.GetByUID(ctx, a.Config.Content.Type, uid)
	})
}

// loadFeed follows the listing's continuation references up to feedLimit
// posts. It backs the RSS feed and the sitemap.
func (a *App) loadFeed(ctx context.Context) ([]content.Post, error) {
	return cached(ctx, a.Cache, feedKey, func(ctx context.Context) ([]content.Post, error) {
		first, err := a.loadListing(ctx)
		if err != nil {
			return nil, err
		}
		return pagination.Drain(ctx, pagination.NewSession(first, a.Content), feedLimit)
	})
}

func (a *App) site() views.Site {
	return views.Site{
		Name:          a.Config.Name,
		URL:           a.Config.URL,
		Description:   a.Config.Description,
		Author:        a.Config.Author,
		Locale:        a.Config.Locale,
		LoadMoreLabel: loadMoreLabel,
	}
}

// Close releases everything the App opened. Call it when the app is
// shutting down.
func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Stop()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.loadMoreLimiter != nil {
		a.loadMoreLimiter.Stop()
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return err
}
