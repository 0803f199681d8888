package blobstore

import (
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive advisory flock on the open file, blocking
// until it is acquired. The lock is tied to the file description and is
// released when the handle is closed. flock semantics vary by platform and
// filesystem; NFS mounts in particular may not honor them, which is why the
// write lock is documented as best-effort rather than a mutual exclusion
// guarantee.
func lockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}
