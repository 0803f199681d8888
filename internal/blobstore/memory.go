package blobstore

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a Storage implementation that keeps everything in process
// memory. It exists for development and tests; directories are implicit and
// exist exactly while they have children, mirroring how object paths behave
// under the local store.
type Memory struct {
	mu    sync.RWMutex
	files map[string]memFile
	quota Quota
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// NewMemory creates an empty in-memory store. A nil quota means unlimited
// capacity.
func NewMemory(quota Quota) *Memory {
	if quota == nil {
		quota = Unlimited{}
	}
	return &Memory{
		files: make(map[string]memFile),
		quota: quota,
	}
}

// normalizePath cleans a store path into the canonical slash form used as a
// map key. The empty string addresses the root directory.
func normalizePath(relPath string) string {
	clean := path.Clean("/" + relPath)
	return strings.TrimPrefix(clean, "/")
}

func (s *Memory) Put(relPath string, data []byte) (Descriptor, error) {
	key := normalizePath(relPath)
	if key == "" {
		return Descriptor{}, errIO("put file", fmt.Errorf("path resolves to the storage root"))
	}

	// The quota may read Usage, which takes the read lock, so it has to be
	// consulted before the write lock is held.
	if err := s.quota.CanHold(int64(len(data))); err != nil {
		return Descriptor{}, errInsufficientStorage(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := memFile{
		data:    bytes.Clone(data),
		modTime: time.Now(),
	}
	s.files[key] = stored

	return Descriptor{
		Path:    key,
		Size:    int64(len(stored.data)),
		ModTime: stored.modTime,
	}, nil
}

func (s *Memory) PutReader(relPath string, r io.Reader) (Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Descriptor{}, errIO("read payload stream", err)
	}
	return s.Put(relPath, data)
}

func (s *Memory) PutReaderN(relPath string, r io.Reader, size int64) (Descriptor, error) {
	if size < 0 {
		return Descriptor{}, errIO("negative payload size", fmt.Errorf("size %d", size))
	}

	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return Descriptor{}, errIO("read payload stream", err)
	}
	if int64(len(data)) != size {
		return Descriptor{}, errIO("write payload",
			fmt.Errorf("payload ended after %d of %d declared bytes", len(data), size))
	}
	return s.Put(relPath, data)
}

func (s *Memory) Open(relPath string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[normalizePath(relPath)]
	if !ok {
		return nil, errNotFound("open file for reading: no such file")
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(f.data))), nil
}

func (s *Memory) Stat(relPath string) (FileDetails, error) {
	key := normalizePath(relPath)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.files[key]; ok {
		return FileDetails{
			Name:    path.Base(key),
			Size:    int64(len(f.data)),
			ModTime: f.modTime,
		}, nil
	}
	if s.isDirLocked(key) {
		return FileDetails{
			Name:    path.Base("/" + key),
			ModTime: s.dirModTimeLocked(key),
			IsDir:   true,
		}, nil
	}
	return FileDetails{}, errNotFound("stat file: no such file or directory")
}

func (s *Memory) Remove(relPath string) error {
	key := normalizePath(relPath)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		if s.isDirLocked(key) {
			// Directories are implicit here and non-empty by definition.
			return errIO("remove file", fmt.Errorf("directory not empty"))
		}
		return errNotFound("remove file: no such file or directory")
	}
	delete(s.files, key)
	return nil
}

func (s *Memory) List(relPath string) ([]string, error) {
	key := normalizePath(relPath)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[key]; ok {
		return nil, errIO("list directory", fmt.Errorf("not a directory"))
	}
	if key != "" && !s.isDirLocked(key) {
		return nil, errNotFound("list directory: no such directory")
	}

	prefix := key
	if prefix != "" {
		prefix += "/"
	}

	seen := make(map[string]struct{})
	for p := range s.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if idx := strings.IndexByte(rest, '/'); idx != -1 {
			rest = rest[:idx]
		}
		seen[rest] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Memory) LastModified(relPath string) (time.Time, error) {
	key := normalizePath(relPath)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if f, ok := s.files[key]; ok {
		return f.modTime, nil
	}
	if s.isDirLocked(key) {
		return s.dirModTimeLocked(key), nil
	}
	return time.Time{}, errNotFound("stat file: no such file or directory")
}

func (s *Memory) Size(relPath string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[normalizePath(relPath)]
	if !ok {
		return 0, errNotFound("stat file: no such file")
	}
	return int64(len(f.data)), nil
}

func (s *Memory) Exists(relPath string) bool {
	key := normalizePath(relPath)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[key]; ok {
		return true
	}
	return s.isDirLocked(key)
}

func (s *Memory) IsDir(relPath string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isDirLocked(normalizePath(relPath))
}

func (s *Memory) Usage() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, f := range s.files {
		total += int64(len(f.data))
	}
	return total, nil
}

func (s *Memory) IsFull() bool {
	return s.quota.CanHold(0) != nil
}

func (s *Memory) Close() error {
	return nil
}

// isDirLocked reports whether key has at least one stored file beneath it.
// The root directory always exists. Callers must hold mu.
func (s *Memory) isDirLocked(key string) bool {
	if key == "" {
		return true
	}
	prefix := key + "/"
	for p := range s.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// dirModTimeLocked returns the newest modification time beneath the implicit
// directory at key. Callers must hold mu.
func (s *Memory) dirModTimeLocked(key string) time.Time {
	prefix := key
	if prefix != "" {
		prefix += "/"
	}
	var newest time.Time
	for p, f := range s.files {
		if strings.HasPrefix(p, prefix) && f.modTime.After(newest) {
			newest = f.modTime
		}
	}
	return newest
}
