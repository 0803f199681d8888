package blobstore

import (
	"io"
	"time"
)

// Storage is the blob-store surface consumed by the repository server: it
// stores, retrieves, enumerates and deletes byte content addressed by
// slash-separated paths relative to a single root namespace.
//
// Every fallible operation returns a *Error so callers can branch on the
// failure kind (capacity denial, missing path, I/O fault) without inspecting
// raw OS errors. Paths are interpreted relative to the store's root; callers
// are responsible for rejecting traversal sequences before they reach the
// store.
type Storage interface {
	// Put stores an in-memory payload at path, creating missing parent
	// directories, and returns a descriptor of the final on-disk state.
	Put(path string, data []byte) (Descriptor, error)

	// PutReader stores a payload of unknown length. The reader is drained
	// fully before the capacity quota is consulted, so this variant has no
	// bounded-memory guarantee. Prefer PutReaderN when the length is known.
	PutReader(path string, r io.Reader) (Descriptor, error)

	// PutReaderN stores a payload whose length is declared up front. The
	// quota is consulted with size before any mutation and the payload is
	// then written in bounded chunks. The write fails if r yields a number
	// of bytes different from size.
	PutReaderN(path string, r io.Reader, size int64) (Descriptor, error)

	// Open returns the content stored at path for reading. The caller must
	// close the returned stream.
	Open(path string) (io.ReadCloser, error)

	// Stat describes the file or directory at path.
	Stat(path string) (FileDetails, error)

	// Remove deletes the file at path, or the directory at path if it is
	// empty. Removing a missing path is an error, not a silent success.
	Remove(path string) error

	// List returns the names of the immediate children of the directory at
	// path. Ordering is whatever the underlying enumeration yields.
	List(path string) ([]string, error)

	// LastModified returns the modification time of the file at path.
	LastModified(path string) (time.Time, error)

	// Size returns the byte size of the file at path.
	Size(path string) (int64, error)

	// Exists reports whether path exists. Underlying errors collapse to
	// false; this is a deliberate trade of diagnostics for caller
	// simplicity.
	Exists(path string) bool

	// IsDir reports whether path is a directory, collapsing errors to
	// false like Exists.
	IsDir(path string) bool

	// Usage returns the aggregate byte size of everything in the store.
	Usage() (int64, error)

	// IsFull reports whether the capacity quota denies even a zero-byte
	// addition.
	IsFull() bool

	// Close releases any resources held by the store.
	Close() error
}
