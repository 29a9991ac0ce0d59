// Package files manages the upload directory tree: safe path resolution,
// directory listings, uploads with automatic versioning, and file/directory
// creation and deletion. Every client-supplied path is validated against the
// upload root before any filesystem operation.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"llm-privacy-gateway/internal/apperr"
	"llm-privacy-gateway/internal/document"
	"llm-privacy-gateway/internal/versioning"
)

// DirEntry is one row of a directory listing. Size, format, and version
// count are only set for files; format only for recognized extensions.
type DirEntry struct {
	Name         string     `json:"name"`
	IsDir        bool       `json:"is_dir"`
	Size         *int64     `json:"size"`
	Format       *string    `json:"format"`
	ModifiedAt   *time.Time `json:"modified_at"`
	VersionCount *int       `json:"version_count"`
}

// Store operates on the upload directory tree.
type Store struct {
	root string
}

// New creates a Store rooted at the upload directory, creating it if absent.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", abs, err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute upload directory path.
func (s *Store) Root() string { return s.root }

// SafeResolve resolves a client-supplied relative path to an absolute path
// inside the upload root. The target must exist; an empty input resolves to
// the root itself.
func (s *Store) SafeResolve(relative string) (string, error) {
	if relative == "" {
		return s.root, nil
	}
	joined := filepath.Join(s.root, relative)
	canonical, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", apperr.Wrap(apperr.InvalidPath, "Invalid path", err)
	}
	base, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", fmt.Errorf("resolve upload dir: %w", err)
	}
	if !isWithin(base, canonical) {
		return "", apperr.New(apperr.InvalidPath, "Path traversal not allowed")
	}
	return canonical, nil
}

// SafeResolveNew resolves a relative path for a file or directory that does
// not exist yet. The path must be non-empty, free of "..", and its parent
// must be inside the upload root.
func (s *Store) SafeResolveNew(relative string) (string, error) {
	if relative == "" {
		return "", apperr.New(apperr.InvalidPath, "Path cannot be empty")
	}
	if strings.Contains(relative, "..") {
		return "", apperr.New(apperr.InvalidPath, "Path traversal not allowed")
	}
	target := filepath.Join(s.root, relative)
	if parent := filepath.Dir(target); parent != s.root {
		parentCanonical, err := filepath.EvalSymlinks(parent)
		if err != nil {
			return "", apperr.Wrap(apperr.InvalidPath, "Parent directory does not exist", err)
		}
		base, err := filepath.EvalSymlinks(s.root)
		if err != nil {
			return "", fmt.Errorf("resolve upload dir: %w", err)
		}
		if !isWithin(base, parentCanonical) {
			return "", apperr.New(apperr.InvalidPath, "Path traversal not allowed")
		}
	}
	return target, nil
}

// isWithin reports whether path equals base or lives under it.
func isWithin(base, path string) bool {
	return path == base || strings.HasPrefix(path, base+string(filepath.Separator))
}

// List returns the entries at a relative directory path, .versions excluded,
// directories first and alphabetical within each group.
func (s *Store) List(relative string) ([]DirEntry, error) {
	dir, err := s.SafeResolve(relative)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, apperr.New(apperr.InvalidPath, "Not a directory")
	}

	raw, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	entries := make([]DirEntry, 0, len(raw))
	for _, e := range raw {
		name := e.Name()
		if versioning.IsVersionsDir(name) {
			continue
		}
		meta, err := e.Info()
		if err != nil {
			continue
		}

		if e.IsDir() {
			modified := meta.ModTime().UTC()
			entries = append(entries, DirEntry{Name: name, IsDir: true, ModifiedAt: &modified})
			continue
		}

		path := filepath.Join(dir, name)
		size := meta.Size()
		modified := meta.ModTime().UTC()
		entry := DirEntry{Name: name, Size: &size, ModifiedAt: &modified}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if format, ok := document.FormatForExtension(ext); ok {
			f := string(format)
			entry.Format = &f
		}
		if vc := versioning.VersionCount(path); vc > 0 {
			entry.VersionCount = &vc
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// CountFiles returns the number of regular files directly inside a relative
// directory path, .versions excluded.
func (s *Store) CountFiles(relative string) int {
	dir, err := s.SafeResolve(relative)
	if err != nil {
		return 0
	}
	raw, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range raw {
		if !e.IsDir() && !versioning.IsVersionsDir(e.Name()) {
			n++
		}
	}
	return n
}

// SaveUpload writes data to a relative file path. If the file already
// exists, its current content is versioned first so an indexing pass reading
// it mid-write can always be recovered from.
func (s *Store) SaveUpload(relative string, data []byte) error {
	ext := strings.TrimPrefix(filepath.Ext(relative), ".")
	if _, ok := document.FormatForExtension(ext); !ok {
		return apperr.Newf(apperr.BadRequest, "Unsupported file extension: %s", ext)
	}

	target, err := s.SafeResolveNew(relative)
	if err != nil {
		return err
	}

	if _, err := os.Stat(target); err == nil {
		if _, err := versioning.SaveVersion(target, "Auto-saved before overwrite"); err != nil {
			return fmt.Errorf("version %s before overwrite: %w", target, err)
		}
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// Mkdir creates a directory at a relative path.
func (s *Store) Mkdir(relative string) error {
	target, err := s.SafeResolveNew(relative)
	if err != nil {
		return err
	}
	if _, err := os.Stat(target); err == nil {
		return apperr.New(apperr.Conflict, "Directory already exists")
	}
	if err := os.Mkdir(target, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", target, err)
	}
	return nil
}

// CreateFile creates a new text file at a relative path. Existing files are
// not overwritten; uploads handle that case with versioning.
func (s *Store) CreateFile(relative, content string) error {
	target, err := s.SafeResolveNew(relative)
	if err != nil {
		return err
	}
	if _, err := os.Stat(target); err == nil {
		return apperr.New(apperr.Conflict, "File already exists")
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	return nil
}

// Delete removes a file at a relative path along with its version history.
// Returns the resolved absolute path of the removed file.
func (s *Store) Delete(relative string) (string, error) {
	target, err := s.SafeResolve(relative)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.Newf(apperr.NotFound, "File not found: %s", relative)
		}
		return "", err
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", apperr.Newf(apperr.NotFound, "File not found: %s", relative)
	}
	if info.IsDir() {
		if err := os.RemoveAll(target); err != nil {
			return "", fmt.Errorf("remove directory %s: %w", target, err)
		}
		return target, nil
	}
	if err := os.Remove(target); err != nil {
		return "", fmt.Errorf("remove %s: %w", target, err)
	}
	if err := versioning.DeleteVersions(target); err != nil {
		return "", err
	}
	return target, nil
}
