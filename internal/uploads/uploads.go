// Package uploads stores product images and receipt files on disk and
// garbage-collects files no live record references. Reconciliation is
// eventual: a crash between a file write and a row write leaves an orphan
// that the next Sweep removes.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// URLPrefix is prepended to stored filenames to form the public URL.
const URLPrefix = "/api/uploads/"

// ReceiptPrefix marks transient receipt files; Sweep reaps them once they
// outlive the retention window.
const ReceiptPrefix = "receipt_"

var (
	ErrBadExtension = errors.New("invalid file type")
	ErrNotFound     = errors.New("file not found")
)

var allowedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Catalog is the slice of the product store the manager needs for
// reference counting.
type Catalog interface {
	CountReferencing(filename string) (int64, error)
	ActiveImageURLs() ([]string, error)
}

// Manager owns the uploads directory. Deletion decisions defer to
// reference counting against the catalog.
type Manager struct {
	dir        string
	catalog    Catalog
	receiptTTL time.Duration
	log        *slog.Logger
}

func NewManager(dir string, catalog Catalog, receiptTTL time.Duration, log *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Manager{dir: dir, catalog: catalog, receiptTTL: receiptTTL, log: log}, nil
}

// Dir returns the uploads directory path.
func (m *Manager) Dir() string { return m.dir }

// Store writes an uploaded image under a collision-resistant name and
// returns its public URL. Only png/jpg/jpeg/gif are accepted.
func (m *Manager) Store(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExts[ext] {
		return "", ErrBadExtension
	}
	name := uuid.NewString() + "_" + sanitizeFilename(originalName)
	dst, err := os.Create(filepath.Join(m.dir, name))
	if err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("save image: %w", err)
	}
	return URLPrefix + name, nil
}

// Remove deletes the file behind an image URL unconditionally. Used for
// compensating cleanup when a row write fails after the image was saved.
func (m *Manager) Remove(imageURL string) {
	name := FilenameFromURL(imageURL)
	if name == "" {
		return
	}
	if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !os.IsNotExist(err) {
		m.log.Warn("failed to remove upload", "file", name, "error", err)
	}
}

// Reclaim deletes the file behind an image URL only if no product still
// references a matching filename. The substring match tolerates duplicate
// uploads of the same logical image.
func (m *Manager) Reclaim(imageURL string) error {
	name := FilenameFromURL(imageURL)
	if name == "" {
		return nil
	}
	cnt, err := m.catalog.CountReferencing(name)
	if err != nil {
		return err
	}
	if cnt > 0 {
		m.log.Debug("image still referenced, keeping file", "file", name, "refs", cnt)
		return nil
	}
	if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reclaim %s: %w", name, err)
	}
	return nil
}

// Sweep walks the uploads directory and deletes receipt files past their
// retention window and image files no product references. Running it twice
// with no intervening writes is a no-op the second time.
func (m *Manager) Sweep() error {
	urls, err := m.catalog.ActiveImageURLs()
	if err != nil {
		return err
	}
	active := make(map[string]bool, len(urls))
	for _, u := range urls {
		active[FilenameFromURL(u)] = true
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("read upload dir: %w", err)
	}
	now := time.Now()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()

		if strings.HasPrefix(name, ReceiptPrefix) {
			info, err := e.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) >= m.receiptTTL {
				if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
					m.log.Warn("failed to remove receipt file", "file", name, "error", err)
				}
			}
			continue
		}

		if !allowedExts[strings.ToLower(filepath.Ext(name))] || active[name] {
			continue
		}
		// Double-check against the permissive substring match before
		// unlinking, same contract as Reclaim.
		cnt, err := m.catalog.CountReferencing(name)
		if err != nil {
			return err
		}
		if cnt > 0 {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !os.IsNotExist(err) {
			m.log.Warn("failed to remove orphaned image", "file", name, "error", err)
		}
	}
	return nil
}

// Path resolves a filename inside the uploads directory, rejecting path
// traversal.
func (m *Manager) Path(filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." || filename != filepath.Base(filename) {
		return "", ErrNotFound
	}
	p := filepath.Join(m.dir, filename)
	if info, err := os.Stat(p); err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return p, nil
}

// FilenameFromURL extracts the trailing filename from an image URL.
func FilenameFromURL(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	parts := strings.Split(imageURL, "/")
	return parts[len(parts)-1]
}

// sanitizeFilename strips path components and replaces anything outside
// [A-Za-z0-9._-] with an underscore.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return unsafeChars.ReplaceAllString(name, "_")
}
