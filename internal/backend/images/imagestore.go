package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
)

// PublicPrefix is the path under which stored images are published,
// relative to the static asset mount.
const PublicPrefix = "assets/imgs"

// ImageStore writes uploaded files into a single directory under generated names.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) (*ImageStore, error) {
	if dir == "" {
		return nil, errors.New("image directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}
	return &ImageStore{dir: dir}, nil
}

// Save copies the uploaded file to the image directory and returns the
// generated file name.
func (s *ImageStore) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", errors.New("no file to save")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name, err := GenerateName(file.Filename)
	if err != nil {
		return "", fmt.Errorf("failed to generate image name: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			slog.Error("ImageStore: failed to close uploaded file reader", "error", cerr, "filename", file.Filename)
		}
	}()

	target := filepath.Join(s.dir, name)
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to write image file %s: %w", target, err)
	}

	slog.Debug("ImageStore: stored image", "name", name, "original_filename", file.Filename, "size_bytes", written)
	return name, nil
}

// Remove deletes a previously saved image. A missing file is not an error.
func (s *ImageStore) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid image name %q", name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PublicPath returns the path clients use to fetch the image.
func (s *ImageStore) PublicPath(name string) string {
	return path.Join(PublicPrefix, name)
}
