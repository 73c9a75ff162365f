package prismblog

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/prismblog/listing"
	"github.com/eringen/prismblog/logger"
	"github.com/eringen/prismblog/views"
)

const revalidateSecretHeader = "X-Revalidate-Secret"

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(a.site(), false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	if !a.loginLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return Render(c, a.Views.AdminLogin(a.site(), true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// handleAdminRevalidate regenerates the listing from the dashboard.
func (a *App) handleAdminRevalidate(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	msg := "Pages marked stale. Listing regenerated."
	if _, err := a.Revalidate(c.Request().Context()); err != nil {
		a.Log.Warn("manual revalidation failed", logger.Error(err))
		msg = "Regeneration failed: " + err.Error()
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(msg))
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	info := a.Cache.Info()
	pages := make([]views.PageStatus, len(info))
	for i, p := range info {
		pages[i] = views.PageStatus{
			Key:         p.Key,
			GeneratedAt: p.GeneratedAt,
			Stale:       p.Stale,
			Refreshing:  p.Refreshing,
		}
	}
	return Render(c, a.Views.AdminDashboard(a.site(), views.Dashboard{
		Pages:       pages,
		ActiveViews: a.Sessions.Len(),
		Revalidate:  a.Config.Revalidate.Duration,
		Message:     msg,
	}, CsrfToken(c)))
}

type revalidateRequest struct {
	Secret string `json:"secret"`
	Type   string `json:"type"`
}

type revalidateResponse struct {
	Revalidated bool   `json:"revalidated"`
	Posts       int    `json:"posts,omitempty"`
	HasMore     bool   `json:"has_more,omitempty"`
	Error       string `json:"error,omitempty"`
}

// handleRevalidateWebhook is called by the CMS when content is published.
// The secret comes from the X-Revalidate-Secret header or the "secret"
// field of the JSON payload.
func (a *App) handleRevalidateWebhook(c echo.Context) error {
	if !a.loginLimiter.Check(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, revalidateResponse{Error: "too many attempts"})
	}
	secret := c.Request().Header.Get(revalidateSecretHeader)
	var req revalidateRequest
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.NewDecoder(http.MaxBytesReader(c.Response(), c.Request().Body, 1<<16)).Decode(&req); err != nil {
			return c.JSON(http.StatusBadRequest, revalidateResponse{Error: "invalid payload"})
		}
	}
	if secret == "" {
		secret = req.Secret
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(a.Config.RevalidateSecret)) != 1 {
		a.loginLimiter.Record(c.RealIP())
		return c.JSON(http.StatusUnauthorized, revalidateResponse{Error: "invalid secret"})
	}

	page, err := a.Revalidate(c.Request().Context())
	if err != nil {
		var bfe *listing.BuildFetchError
		if errors.As(err, &bfe) {
			a.Log.Warn("webhook revalidation failed", logger.String("event", req.Type), logger.Error(err))
			return c.JSON(http.StatusBadGateway, revalidateResponse{Error: err.Error()})
		}
		return err
	}
	a.Log.Info("revalidated by webhook",
		logger.String("event", req.Type),
		logger.Int("posts", len(page.Results)),
	)
	return c.JSON(http.StatusOK, revalidateResponse{
		Revalidated: true,
		Posts:       len(page.Results),
		HasMore:     page.HasMore(),
	})
}
