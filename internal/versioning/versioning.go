// Package versioning keeps a bounded per-file version history next to the
// live files. For a file P/name.ext the layout is:
//
//	P/.versions/name.ext/meta.json
//	P/.versions/name.ext/v<N>_<unixts>.<ext>
//
// Version numbers grow monotonically within a file; the oldest entries (and
// their payload files) are evicted once the history exceeds MaxVersions.
package versioning

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"llm-privacy-gateway/internal/apperr"
)

// DirName is the per-directory version storage directory. Directory walkers
// and listings must never descend into it.
const DirName = ".versions"

// MaxVersions bounds the history length per file.
const MaxVersions = 10

// Entry describes one stored version of a file.
type Entry struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Comment   string    `json:"comment"`
}

// Meta is the persisted per-file history, stored as meta.json.
type Meta struct {
	MaxVersions int     `json:"max_versions"`
	Versions    []Entry `json:"versions"`
}

// History is the version listing returned to clients, combining the live
// file's current state with its stored versions.
type History struct {
	FilePath          string    `json:"file_path"`
	CurrentSize       int64     `json:"current_size"`
	CurrentModifiedAt time.Time `json:"current_modified_at"`
	Versions          []Entry   `json:"versions"`
}

// IsVersionsDir reports whether name is the version storage directory.
func IsVersionsDir(name string) bool {
	return name == DirName
}

// versionsDirFor returns the .versions/ directory beside the given file.
func versionsDirFor(path string) string {
	return filepath.Join(filepath.Dir(path), DirName)
}

// fileVersionDir returns the per-file storage directory under .versions/.
func fileVersionDir(path string) string {
	return filepath.Join(versionsDirFor(path), filepath.Base(path))
}

// readMeta loads meta.json for a file, or an empty Meta if none exists.
func readMeta(path string) (*Meta, error) {
	metaPath := filepath.Join(fileVersionDir(path), "meta.json")
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return &Meta{MaxVersions: MaxVersions}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", metaPath, err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", metaPath, err)
	}
	return &meta, nil
}

func writeMeta(path string, meta *Meta) error {
	verDir := fileVersionDir(path)
	if err := os.MkdirAll(verDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", verDir, err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	metaPath := filepath.Join(verDir, "meta.json")
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", metaPath, err)
	}
	return nil
}

// findVersionFile locates the on-disk payload for a version number. The
// timestamp part of the name is unknown, so it scans for the v<N>_ prefix.
func findVersionFile(verDir string, version int) (string, bool) {
	prefix := fmt.Sprintf("v%d_", version)
	entries, err := os.ReadDir(verDir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && name != "meta.json" {
			return filepath.Join(verDir, name), true
		}
	}
	return "", false
}

// SaveVersion copies the current content of path into version storage and
// returns the version number assigned. The oldest versions are evicted,
// payload included, while the history is at capacity.
func SaveVersion(path, comment string) (int, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, apperr.Newf(apperr.NotFound, "File does not exist: %s", path)
	}

	verDir := fileVersionDir(path)
	if err := os.MkdirAll(verDir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", verDir, err)
	}

	meta, err := readMeta(path)
	if err != nil {
		return 0, err
	}

	nextVersion := 1
	if n := len(meta.Versions); n > 0 {
		nextVersion = meta.Versions[n-1].Version + 1
	}

	for len(meta.Versions) >= MaxVersions {
		oldest := meta.Versions[0]
		meta.Versions = meta.Versions[1:]
		if payload, ok := findVersionFile(verDir, oldest.Version); ok {
			_ = os.Remove(payload)
		}
	}

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = "dat"
	}
	verPath := filepath.Join(verDir, fmt.Sprintf("v%d_%d.%s", nextVersion, time.Now().Unix(), ext))

	size, err := copyFile(path, verPath)
	if err != nil {
		return 0, fmt.Errorf("copy %s to version storage: %w", path, err)
	}

	meta.Versions = append(meta.Versions, Entry{
		Version:   nextVersion,
		CreatedAt: time.Now().UTC(),
		Size:      size,
		Comment:   comment,
	})

	if err := writeMeta(path, meta); err != nil {
		return 0, err
	}
	return nextVersion, nil
}

// GetHistory returns the stored versions of path along with the live file's
// current size and modification time.
func GetHistory(path string) (*History, error) {
	meta, err := readMeta(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperr.Newf(apperr.NotFound, "File does not exist: %s", path)
	}
	return &History{
		FilePath:          path,
		CurrentSize:       info.Size(),
		CurrentModifiedAt: info.ModTime().UTC(),
		Versions:          meta.Versions,
	}, nil
}

// Rollback restores path to the content of the given version. The current
// content is saved as a new version first, so a rollback is itself
// reversible.
func Rollback(path string, version int) error {
	meta, err := readMeta(path)
	if err != nil {
		return err
	}

	found := false
	for _, v := range meta.Versions {
		if v.Version == version {
			found = true
			break
		}
	}
	if !found {
		return apperr.Newf(apperr.BadRequest, "Version %d not found", version)
	}

	verDir := fileVersionDir(path)
	verFile, ok := findVersionFile(verDir, version)
	if !ok {
		return apperr.Newf(apperr.Internal, "Version file for v%d not found on disk", version)
	}

	if _, err := os.Stat(path); err == nil {
		comment := fmt.Sprintf("Auto-saved before rollback to v%d", version)
		if _, err := SaveVersion(path, comment); err != nil {
			return err
		}
	}

	if _, err := copyFile(verFile, path); err != nil {
		return fmt.Errorf("restore %s from v%d: %w", path, version, err)
	}
	return nil
}

// VersionCount returns the number of stored versions for path, 0 when the
// file has never been versioned.
func VersionCount(path string) int {
	meta, err := readMeta(path)
	if err != nil {
		return 0
	}
	return len(meta.Versions)
}

// DeleteVersions removes the entire version history of path, pruning the
// shared .versions/ directory when it becomes empty.
func DeleteVersions(path string) error {
	verDir := fileVersionDir(path)
	if _, err := os.Stat(verDir); err == nil {
		if err := os.RemoveAll(verDir); err != nil {
			return fmt.Errorf("remove %s: %w", verDir, err)
		}
	}

	parent := versionsDirFor(path)
	entries, err := os.ReadDir(parent)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(parent)
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close() //nolint:errcheck // best-effort cleanup on copy failure
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	return n, nil
}
