package frontend

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jo-hoe/gotimeline/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName  = "index.html"
	AdminPageName = "admin.html"

	notFoundBody = "Not Found"
)

type FrontendService struct {
	config *core.ServiceConfig
}

func NewFrontendService(config *core.ServiceConfig) *FrontendService {
	return &FrontendService{
		config: config,
	}
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.HTTPErrorHandler = notFoundErrorHandler(e.DefaultHTTPErrorHandler)

	e.GET("/", service.pageHandler(MainPageName))
	e.GET("/admin", service.pageHandler(AdminPageName))

	// Uploaded images and other published assets
	e.Static("/assets", service.config.AssetsDir())
	// Anything else below the public directory
	e.Static("/", service.config.PublicDir)
}

// pageHandler serves a page from the site directory, falling back to the
// built-in page when none exists on disk.
func (service *FrontendService) pageHandler(name string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		onDisk := filepath.Join(service.config.SiteDir(), name)
		if info, err := os.Stat(onDisk); err == nil && !info.IsDir() {
			return ctx.File(onDisk)
		}

		data, err := viewsFS.ReadFile("views/" + name)
		if err != nil {
			slog.Error("pageHandler: failed to read built-in page",
				"status", http.StatusInternalServerError, "page", name, "error", err)
			return echo.ErrInternalServerError
		}
		return ctx.HTMLBlob(http.StatusOK, data)
	}
}

// notFoundErrorHandler answers unmatched routes with a plain-text 404 and
// leaves every other error to next.
func notFoundErrorHandler(next echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var httpErr *echo.HTTPError
		if !errors.As(err, &httpErr) ||
			(httpErr.Code != http.StatusNotFound && httpErr.Code != http.StatusMethodNotAllowed) {
			next(err, ctx)
			return
		}
		if ctx.Response().Committed {
			return
		}
		if werr := ctx.String(http.StatusNotFound, notFoundBody); werr != nil {
			slog.Error("notFoundErrorHandler: failed to write response", "error", werr)
		}
	}
}
