package core

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/gotimeline/internal/backend/images"
	"github.com/jo-hoe/gotimeline/internal/backend/storage"
	"github.com/jo-hoe/gotimeline/internal/common"
)

// EntryUpload is one ingestion request: two text fields and two files.
type EntryUpload struct {
	Username string                `validate:"required"`
	Time     string                `validate:"required"`
	Avatar   *multipart.FileHeader `validate:"required"`
	Image    *multipart.FileHeader `validate:"required"`
}

// ValidationError reports the required inputs missing from an upload.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing fields: " + strings.Join(e.Fields, ", ")
}

type CoreService struct {
	config     *ServiceConfig
	store      storage.TimelineStore
	imageStore *images.ImageStore
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	if err := bootstrapDirectories(config); err != nil {
		return nil, err
	}

	imageStore, err := images.NewImageStore(config.ImagesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}

	store, err := storage.NewTimelineStore(config.Store.Type, config.StoreConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize timeline store: %w", err)
	}

	return &CoreService{
		config:     config,
		store:      store,
		imageStore: imageStore,
	}, nil
}

func bootstrapDirectories(config *ServiceConfig) error {
	for _, dir := range []string{config.ImagesDir(), filepath.Dir(config.TimelinePath())} {
		if err := common.EnsureDir(dir); err != nil {
			slog.Error("failed to create directory", "dir", dir, "error", err)
			return err
		}
	}
	return nil
}

// AddEntry validates the upload, stores both files and appends the entry to
// the timeline. Nothing is written when validation fails.
func (service *CoreService) AddEntry(ctx context.Context, upload EntryUpload) (*storage.Entry, error) {
	missing, err := common.ValidateStruct(upload)
	if err != nil {
		return nil, fmt.Errorf("failed to validate upload: %w", err)
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	avatarName, err := service.imageStore.Save(ctx, upload.Avatar)
	if err != nil {
		return nil, fmt.Errorf("failed to store avatar: %w", err)
	}
	imageName, err := service.imageStore.Save(ctx, upload.Image)
	if err != nil {
		if rerr := service.imageStore.Remove(avatarName); rerr != nil {
			slog.Warn("failed to remove avatar after image store failure", "name", avatarName, "error", rerr)
		}
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	entry := storage.Entry{
		Username: upload.Username,
		Time:     upload.Time,
		Avatar:   service.imageStore.PublicPath(avatarName),
		Image:    service.imageStore.PublicPath(imageName),
	}
	if err := service.store.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append timeline entry: %w", err)
	}

	slog.Info("timeline entry added", "username", entry.Username, "avatar", entry.Avatar, "image", entry.Image)
	return &entry, nil
}

func (service *CoreService) ListEntries(ctx context.Context) ([]storage.Entry, error) {
	return service.store.List(ctx)
}

func (service *CoreService) Config() *ServiceConfig {
	return service.config
}

func (service *CoreService) Close() error {
	return service.store.Close()
}
