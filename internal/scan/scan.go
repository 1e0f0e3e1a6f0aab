package scan

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"mergemap/internal/safeio"
)

// Kind classifies a file by extension.
type Kind int

const (
	KindIgnored Kind = iota
	KindSource
	KindDoc
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindDoc:
		return "doc"
	default:
		return "ignored"
	}
}

// File is one entry discovered under the analysis root.
type File struct {
	// Root-relative path using forward slashes (e.g., "src/app.ts").
	Path    string
	Kind    Kind
	Size    int64
	ModTime time.Time
}

// Classification is total and exclusive per extension: .js/.ts are source
// code, .md/.txt are documentation, everything else is ignored.
func Classify(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".ts":
		return KindSource
	case ".md", ".txt":
		return KindDoc
	default:
		return KindIgnored
	}
}

// VCS and dependency directories are never descended into.
var skipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "vendor": true,
	"dist": true, "build": true, ".next": true, ".cache": true,
}

// List walks the tree under sfs and returns every file (not directories) in
// directory-listing order. The order is the observable discovery order of the
// whole analysis and must stay stable for reproducible reports.
func List(sfs *safeio.SafeFS) ([]File, error) {
	var files []File
	root := sfs.Root()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		f := File{Path: rel, Kind: Classify(rel)}
		if info, ierr := d.Info(); ierr == nil {
			f.Size = info.Size()
			f.ModTime = info.ModTime()
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
