package blobstore

import (
	"io/fs"
	"path"
	"time"
)

// Descriptor is a metadata snapshot of a stored file taken immediately after
// a successful write. It reflects on-disk state at that instant and is not a
// live reference.
type Descriptor struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// FileDetails describes the current state of a file or directory inside the
// store.
type FileDetails struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// newDescriptor builds a Descriptor for the store-relative path from a stat
// result.
func newDescriptor(relPath string, info fs.FileInfo) Descriptor {
	return Descriptor{
		Path:    relPath,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

// newFileDetails builds FileDetails from a stat result.
func newFileDetails(relPath string, info fs.FileInfo) FileDetails {
	return FileDetails{
		Name:    path.Base(relPath),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}
}
