package ringslog

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/ringslog/notify"
)

func (a *App) handleHome(c echo.Context) error {
	reviews, err := a.reviews.ListReviews(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.Home(HomePage{
		Layout:  a.layout(c, PageMeta{URL: BuildURL(a.Config.URL), OGType: "website"}),
		Reviews: reviews,
	}))
}

func (a *App) handlePost(c echo.Context) error {
	r, err := a.reviews.GetReview(c.Request().Context(), c.Param("uid"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.ErrNotFound
		}
		return err
	}
	u := CurrentUser(c)
	return Render(c, a.Views.Post(PostPage{
		Layout: a.layout(c, PageMeta{
			Title:       r.Title,
			Description: Excerpt(r.Content, 120),
			URL:         BuildURL(a.Config.URL, "post", r.UID),
			OGType:      "article",
		}),
		Review:  r,
		CanEdit: u != nil && u.ID == r.UserID,
	}))
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

// layout builds the data shared by every page. Flashed notices from the
// previous request are shown before any raised by this one.
func (a *App) layout(c echo.Context, meta PageMeta, notices ...notify.Notice) Layout {
	if meta.Title == "" {
		meta.Title = a.Config.Name
	} else {
		meta.Title += " | " + a.Config.Name
	}
	if meta.Description == "" {
		meta.Description = a.Config.Description
	}
	return Layout{
		Site:    a.Config,
		User:    CurrentUser(c),
		CSRF:    CsrfToken(c),
		Notices: append(popFlashes(c), notices...),
		Meta:    meta,
	}
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.layout(c, PageMeta{Title: "ページが見つかりません"})))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
		_ = RenderStatus(c, code, a.Views.ServerError(a.layout(c, PageMeta{Title: "エラー"})))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
