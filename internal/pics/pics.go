// Package pics names and stores the core picture uploaded for a paper.
package pics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"paper-notes-app/internal/helpers"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize int64 = 10 << 20

var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

var (
	ErrMissingPaperID = errors.New("missing paperId parameter")
	ErrInvalidPaperID = errors.New("paperId cannot be used as a file name")
	ErrMissingFile    = errors.New("no image file uploaded")
	ErrUnsupportedExt = errors.New("only jpg and png images are supported")
	ErrFileTooLarge   = errors.New("image exceeds the upload size limit")
)

// FileName returns the stored name for a paper's picture, {paperID}{ext},
// with the extension lower-cased. It touches nothing on disk.
func FileName(paperID, originalName string) (string, error) {
	if paperID == "" {
		return "", ErrMissingPaperID
	}
	if paperID == "." || paperID == ".." || strings.ContainsAny(paperID, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaperID, paperID)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExts[ext] {
		return "", fmt.Errorf("%w: got %q", ErrUnsupportedExt, ext)
	}
	return paperID + ext, nil
}

// Dir is the directory pictures are stored in.
type Dir struct {
	path string
}

func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the directory itself.
func (d *Dir) Path() string {
	return d.path
}

// PathOf returns where name lives inside the directory. Only the base name
// is used, so a name read back from total.json cannot escape it.
func (d *Dir) PathOf(name string) string {
	return filepath.Join(d.path, filepath.Base(name))
}

// Save copies r into the directory as name, replacing any file with the same
// name. Content beyond limit is rejected with ErrFileTooLarge and nothing is
// kept.
func (d *Dir) Save(name string, r io.Reader, limit int64) (string, error) {
	dest := d.PathOf(name)
	if err := helpers.ReplaceFile(dest, r, limit); err != nil {
		if errors.Is(err, helpers.ErrTooLarge) {
			return "", ErrFileTooLarge
		}
		return "", fmt.Errorf("storing %s: %w", name, err)
	}
	return dest, nil
}

// Remove deletes name from the directory.
func (d *Dir) Remove(name string) error {
	return os.Remove(d.PathOf(name))
}
