package backend

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/jo-hoe/gotimeline/internal/backend/storage"
	"github.com/jo-hoe/gotimeline/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	EntriesRoute  = "/api/entries"
	TimelineRoute = "/assets/json/timeline.json"

	messageMissingFields = "Missing fields"
	messageTooManyFiles  = "Too many files"
)

type APIService struct {
	coreService *core.CoreService
}

type entryForm struct {
	Username string `form:"username" validate:"required"`
	Time     string `form:"time" validate:"required"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.POST(EntriesRoute, s.createEntryHandler)
	e.GET(EntriesRoute, s.listEntriesHandler)
	// The json store writes the published file itself and the static asset
	// mount serves it; other stores have no file, so it is rendered from them.
	if s.coreService.Config().Store.Type != storage.TypeJSON {
		e.GET(TimelineRoute, s.timelineFileHandler)
	}
}

func (s *APIService) createEntryHandler(ctx echo.Context) error {
	var form entryForm
	if err := ctx.Bind(&form); err != nil {
		slog.Warn("createEntryHandler: failed to bind form", "status", http.StatusBadRequest, "error", err)
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: messageMissingFields})
	}
	if err := ctx.Validate(&form); err != nil {
		slog.Warn("createEntryHandler: missing text fields", "status", http.StatusBadRequest, "error", err)
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: messageMissingFields})
	}

	avatar, avatarCount := formFile(ctx, "avatar")
	image, imageCount := formFile(ctx, "image")
	if avatarCount > 1 || imageCount > 1 {
		slog.Warn("createEntryHandler: more than one file per field",
			"status", http.StatusBadRequest, "avatar_files", avatarCount, "image_files", imageCount)
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: messageTooManyFiles})
	}

	_, err := s.coreService.AddEntry(ctx.Request().Context(), core.EntryUpload{
		Username: form.Username,
		Time:     form.Time,
		Avatar:   avatar,
		Image:    image,
	})
	if err != nil {
		var validationErr *core.ValidationError
		if errors.As(err, &validationErr) {
			slog.Warn("createEntryHandler: missing inputs",
				"status", http.StatusBadRequest, "fields", validationErr.Fields)
			return ctx.JSON(http.StatusBadRequest, errorResponse{Error: messageMissingFields})
		}
		slog.Error("createEntryHandler: failed to add entry",
			"status", http.StatusInternalServerError, "error", err)
		return echo.ErrInternalServerError
	}

	return ctx.JSON(http.StatusOK, successResponse{Success: true})
}

func (s *APIService) listEntriesHandler(ctx echo.Context) error {
	entries, err := s.coreService.ListEntries(ctx.Request().Context())
	if err != nil {
		slog.Error("listEntriesHandler: failed to list entries",
			"status", http.StatusInternalServerError, "error", err)
		return echo.ErrInternalServerError
	}
	setNoCache(ctx)
	return ctx.JSON(http.StatusOK, entries)
}

func (s *APIService) timelineFileHandler(ctx echo.Context) error {
	entries, err := s.coreService.ListEntries(ctx.Request().Context())
	if err != nil {
		slog.Error("timelineFileHandler: failed to list entries",
			"status", http.StatusInternalServerError, "error", err)
		return echo.ErrInternalServerError
	}
	setNoCache(ctx)
	return ctx.JSONPretty(http.StatusOK, entries, "  ")
}

// formFile returns the first file uploaded under field and how many were sent.
func formFile(ctx echo.Context, field string) (*multipart.FileHeader, int) {
	form, err := ctx.MultipartForm()
	if err != nil || form == nil {
		return nil, 0
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, 0
	}
	return files[0], len(files)
}

func setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}
