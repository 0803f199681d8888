package blobstore

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Local is a Storage implementation backed by a single root directory on the
// local filesystem. Paths passed to every operation are resolved against the
// root; the filesystem itself is the only state, nothing is cached between
// calls.
//
// Concurrent writes to the same path through the same Local value are
// serialized by an exclusive advisory flock held for the duration of each
// write. The lock is per-file-handle and advisory: it offers no protection
// against writers that bypass this type, other processes, or other mounts
// pointed at the same root. Reads racing a concurrent write or remove of the
// same path may observe the file mid-write or transiently missing.
type Local struct {
	root  string
	quota Quota
}

// NewLocal creates a store rooted at root, creating the directory if needed.
// The root is fixed for the lifetime of the store. A nil quota means
// unlimited capacity.
func NewLocal(root string, quota Quota) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root directory: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create root directory: %w", err)
	}

	if quota == nil {
		quota = Unlimited{}
	}

	return &Local{root: abs, quota: quota}, nil
}

// Root returns the absolute root directory of the store.
func (s *Local) Root() string {
	return s.root
}

// resolve joins a slash-separated store path onto the root. Containment is a
// caller precondition; resolve does not reject traversal sequences itself.
func (s *Local) resolve(relPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relPath))
}

func (s *Local) Put(relPath string, data []byte) (Descriptor, error) {
	return s.put(relPath, int64(len(data)), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

func (s *Local) PutReader(relPath string, r io.Reader) (Descriptor, error) {
	// The length of the stream is unknown until it is drained, and the
	// quota needs a total before anything touches the disk, so the whole
	// payload is materialized here.
	data, err := io.ReadAll(r)
	if err != nil {
		return Descriptor{}, errIO("read payload stream", err)
	}
	return s.Put(relPath, data)
}

func (s *Local) PutReaderN(relPath string, r io.Reader, size int64) (Descriptor, error) {
	if size < 0 {
		return Descriptor{}, errIO("negative payload size", fmt.Errorf("size %d", size))
	}
	return s.put(relPath, size, func(f *os.File) error {
		n, err := io.Copy(f, io.LimitReader(r, size))
		if err != nil {
			return err
		}
		if n != size {
			return fmt.Errorf("payload ended after %d of %d declared bytes", n, size)
		}
		return nil
	})
}

// put is the shared write path: quota check before any mutation, parent
// creation, then the payload written under an exclusive advisory lock. The
// file may be left created but empty if the write itself fails; there is no
// rollback of the creation.
func (s *Local) put(relPath string, size int64, write func(*os.File) error) (Descriptor, error) {
	target := s.resolve(relPath)

	if err := s.quota.CanHold(size); err != nil {
		return Descriptor{}, errInsufficientStorage(err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Descriptor{}, errIO("create parent directories", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Descriptor{}, errIO("open file for writing", err)
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		return Descriptor{}, errIO("lock file for writing", err)
	}

	// Truncate only after the lock is held so a racing writer cannot cut a
	// payload out from under the current holder.
	err = f.Truncate(0)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err == nil {
		err = write(f)
	}

	// Closing the handle releases the lock.
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Descriptor{}, errIO("write payload", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return Descriptor{}, errIO("stat written file", err)
	}
	return newDescriptor(relPath, info), nil
}

func (s *Local) Open(relPath string) (io.ReadCloser, error) {
	f, err := os.Open(s.resolve(relPath))
	if err != nil {
		return nil, errIO("open file for reading", err)
	}
	return f, nil
}

func (s *Local) Stat(relPath string) (FileDetails, error) {
	info, err := os.Stat(s.resolve(relPath))
	if err != nil {
		return FileDetails{}, errIO("stat file", err)
	}
	return newFileDetails(relPath, info), nil
}

func (s *Local) Remove(relPath string) error {
	if err := os.Remove(s.resolve(relPath)); err != nil {
		return errIO("remove file", err)
	}
	return nil
}

func (s *Local) List(relPath string) ([]string, error) {
	entries, err := os.ReadDir(s.resolve(relPath))
	if err != nil {
		return nil, errIO("list directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *Local) LastModified(relPath string) (time.Time, error) {
	info, err := os.Stat(s.resolve(relPath))
	if err != nil {
		return time.Time{}, errIO("stat file", err)
	}
	return info.ModTime(), nil
}

func (s *Local) Size(relPath string) (int64, error) {
	info, err := os.Stat(s.resolve(relPath))
	if err != nil {
		return 0, errIO("stat file", err)
	}
	return info.Size(), nil
}

func (s *Local) Exists(relPath string) bool {
	_, err := os.Stat(s.resolve(relPath))
	return err == nil
}

func (s *Local) IsDir(relPath string) bool {
	info, err := os.Stat(s.resolve(relPath))
	return err == nil && info.IsDir()
}

// Usage walks the entire root subtree and sums the sizes of regular files.
func (s *Local) Usage() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, errIO("walk storage root", err)
	}
	return total, nil
}

func (s *Local) IsFull() bool {
	return s.quota.CanHold(0) != nil
}

// Close is a no-op for the base store; it exists so wrappers holding pooled
// resources have a shutdown hook.
func (s *Local) Close() error {
	return nil
}
