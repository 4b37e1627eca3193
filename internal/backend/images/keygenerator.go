package images

import (
	"path/filepath"

	"github.com/google/uuid"
)

// GenerateName returns a random UUIDv4 followed by the extension of
// originalFilename. Nothing else of the client supplied name is used.
func GenerateName(originalFilename string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String() + extension(originalFilename), nil
}

// extension is filepath.Ext of the base name, except that a dot file such as
// ".env" has no extension.
func extension(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	if ext == base {
		return ""
	}
	return ext
}
