package ringslog

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// RenderSwap writes partial for htmx requests and full otherwise, so the
// same route serves both the swap target and a no-JS page load.
func RenderSwap(c echo.Context, code int, full, partial templ.Component) error {
	if isHTMX(c) {
		c.Response().Header().Set("Vary", "HX-Request")
		return RenderStatus(c, code, partial)
	}
	return RenderStatus(c, code, full)
}

func isHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}
