package document

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// VersionsDirName is the per-directory version storage directory. The walker
// never descends into it.
const VersionsDirName = ".versions"

// File is one walkable file with its classified format.
type File struct {
	Path   string
	Format Format
}

// Walk recursively enumerates every supported file under root, skipping
// .versions directories. Unreadable entries and unsupported extensions are
// silently dropped; a missing root yields an empty slice. The indexer
// tolerates files appearing or disappearing mid-pass, so there is no error
// to report here.
func Walk(root string) []File {
	var files []File
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == VersionsDirName {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if ext == "" {
			return nil
		}
		format, ok := FormatForExtension(ext)
		if !ok {
			return nil
		}
		files = append(files, File{Path: path, Format: format})
		return nil
	})
	return files
}
