package prismblog

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/prismblog/content"
	"github.com/eringen/prismblog/listing"
	"github.com/eringen/prismblog/logger"
	"github.com/eringen/prismblog/pagination"
	"github.com/eringen/prismblog/views"
)

const (
	headerHasMore = "X-Has-More"
	viewParam     = "view"
)

func (a *App) handleHome(c echo.Context) error {
	page, err := a.loadListing(c.Request().Context())
	if err != nil {
		return err
	}
	data := views.HomeData{HasMore: page.HasMore(), CSRFToken: CsrfToken(c)}
	if page.HasMore() {
		data.ViewID, _ = a.Sessions.Open(page)
	}
	// each response carries its own view session
	c.Response().Header().Set("Cache-Control", "private, no-cache")
	return Render(c, a.Views.Home(a.site(), page.Results, data))
}

// handleLoadMore appends the next page of one page view. The response body
// is the rendered post cards; X-Has-More tells the page whether to keep
// its button.
func (a *App) handleLoadMore(c echo.Context) error {
	if !a.loadMoreLimiter.Allow(c.RealIP()) {
		a.countLoadMore("limited")
		return c.String(http.StatusTooManyRequests, "Too many requests. Try again later.")
	}
	id := c.QueryParam(viewParam)
	if id == "" {
		id = c.FormValue(viewParam)
	}
	sess, ok := a.Sessions.Get(id)
	if !ok {
		a.countLoadMore("expired")
		return c.String(http.StatusGone, "This page view has expired. Reload the page.")
	}

	start := time.Now()
	posts, err := sess.LoadMore(c.Request().Context())
	a.Metrics.LoadMoreTime.Observe(time.Since(start).Seconds())
	c.Response().Header().Set(headerHasMore, strconv.FormatBool(sess.HasMore()))

	var fetchErr *pagination.FetchError
	switch {
	case err == nil:
	case errors.Is(err, pagination.ErrInvalidState):
		a.countLoadMore("invalid_state")
		return c.String(http.StatusConflict, "There are no more posts.")
	case errors.Is(err, pagination.ErrLoadInProgress):
		a.countLoadMore("busy")
		return c.String(http.StatusConflict, "Posts are already loading.")
	case errors.As(err, &fetchErr):
		a.countLoadMore("fetch_error")
		a.Log.Warn("load more failed",
			logger.String("view", id),
			logger.String("ref", fetchErr.Ref),
			logger.Error(fetchErr.Err),
		)
		return c.String(http.StatusBadGateway, "Could not load more posts. Try again.")
	default:
		return err
	}

	a.countLoadMore("ok")
	return Render(c, a.Views.PostList(a.site(), posts))
}

func (a *App) countLoadMore(result string) {
	a.Metrics.LoadMore.WithLabelValues(result).Inc()
}

func (a *App) handlePost(c echo.Context) error {
	uid := c.Param("uid")
	post, err := a.loadPost(c.Request().Context(), uid)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
		}
		return err
	}
	return Render(c, a.Views.Post(a.site(), post))
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.loadFeed(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.loadFeed(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.svg"))
}

func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.staticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	return c.String(http.StatusOK, "User-agent: *\nDisallow: /admin/\nSitemap: "+views.BuildURL(a.Config.URL)+"/sitemap.xml\n")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		fields := []logger.Field{
			logger.String("method", c.Request().Method),
			logger.String("uri", c.Request().RequestURI),
			logger.Error(err),
		}
		var bfe *listing.BuildFetchError
		if errors.As(err, &bfe) {
			fields = append(fields, logger.String("content_type", bfe.ContentType))
		}
		a.Log.Error("server error", fields...)
		_ = RenderStatus(c, code, a.Views.ServerError(a.site()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
