package blobstore_test

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"depot/internal/blobstore"

	"github.com/stretchr/testify/require"
)

// denyQuota refuses every request, including zero-byte probes.
type denyQuota struct{}

func (denyQuota) CanHold(int64) error {
	return blobstore.ErrQuotaExceeded
}

func newLocalStore(t *testing.T, quota blobstore.Quota) *blobstore.Local {
	t.Helper()

	store, err := blobstore.NewLocal(t.TempDir(), quota)
	require.NoError(t, err, "NewLocal error")
	return store
}

func TestLocalPutRoundTrip(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)
	payload := []byte("artifact bytes, round and back")

	desc, err := store.Put("libs/demo/demo-1.0.jar", payload)
	require.NoError(t, err, "Put error")
	require.Equal(t, int64(len(payload)), desc.Size, "descriptor size")
	require.False(t, desc.ModTime.IsZero(), "descriptor mod time should be set")

	rc, err := store.Open("libs/demo/demo-1.0.jar")
	require.NoError(t, err, "Open error")
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err, "reading stored payload")
	require.Equal(t, payload, got, "payload mismatch")

	size, err := store.Size("libs/demo/demo-1.0.jar")
	require.NoError(t, err, "Size error")
	require.Equal(t, int64(len(payload)), size, "Size mismatch")
}

func TestLocalPutCreatesMissingParents(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	_, err := store.Put("a/b/c/d.bin", []byte{1, 2, 3})
	require.NoError(t, err, "Put error")

	require.True(t, store.Exists("a"), "ancestor a should exist")
	require.True(t, store.IsDir("a/b/c"), "ancestor a/b/c should be a directory")
	require.True(t, store.Exists("a/b/c/d.bin"), "file should exist")
	require.False(t, store.IsDir("a/b/c/d.bin"), "file should not be a directory")
}

func TestLocalPutQuotaDeniedLeavesNoFile(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)
	limited, err := blobstore.NewLocal(store.Root(), blobstore.NewByteLimit(0, store.Usage))
	require.NoError(t, err, "NewLocal error")

	_, err = limited.Put("x.txt", []byte("0123456789"))
	require.Error(t, err, "expected quota denial")
	require.True(t, blobstore.IsInsufficientStorage(err), "expected insufficient-storage error, got %v", err)
	require.False(t, limited.Exists("x.txt"), "denied write must leave no file behind")
}

func TestLocalOverwriteTruncates(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	_, err := store.Put("f.bin", bytes.Repeat([]byte{'a'}, 100))
	require.NoError(t, err, "first Put error")

	short := []byte("short")
	_, err = store.Put("f.bin", short)
	require.NoError(t, err, "second Put error")

	size, err := store.Size("f.bin")
	require.NoError(t, err, "Size error")
	require.Equal(t, int64(len(short)), size, "overwrite should truncate previous content")
}

func TestLocalPutReaderDrainsStream(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)
	payload := strings.Repeat("stream-chunk-", 1000)

	desc, err := store.PutReader("streamed.dat", strings.NewReader(payload))
	require.NoError(t, err, "PutReader error")
	require.Equal(t, int64(len(payload)), desc.Size, "descriptor size")

	rc, err := store.Open("streamed.dat")
	require.NoError(t, err, "Open error")
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err, "reading stored payload")
	require.Equal(t, payload, string(got), "payload mismatch")
}

func TestLocalPutReaderNDeclaredSize(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)
	payload := []byte("sized payload")

	desc, err := store.PutReaderN("sized.dat", bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err, "PutReaderN error")
	require.Equal(t, int64(len(payload)), desc.Size, "descriptor size")

	// A reader that ends before the declared size must fail the write.
	_, err = store.PutReaderN("truncated.dat", strings.NewReader("abc"), 10)
	require.Error(t, err, "expected error for short payload")
	require.False(t, blobstore.IsInsufficientStorage(err), "short payload is an I/O fault, not a quota denial")
}

func TestLocalIsFullMatchesZeroByteProbe(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name  string
		quota blobstore.Quota
	}{
		{name: "unlimited", quota: blobstore.Unlimited{}},
		{name: "deny all", quota: denyQuota{}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, err := blobstore.NewLocal(t.TempDir(), tt.quota)
			require.NoError(t, err, "NewLocal error")
			require.Equal(t, tt.quota.CanHold(0) != nil, store.IsFull(),
				"IsFull must mirror a zero-byte quota probe")
		})
	}
}

func TestLocalRemoveMissingPath(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	err := store.Remove("never/put/here.txt")
	require.Error(t, err, "removing a missing path must not silently succeed")
	require.True(t, blobstore.IsNotFound(err), "expected not-found error, got %v", err)
}

func TestLocalOpenMissingPath(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	_, err := store.Open("missing.bin")
	require.Error(t, err, "expected error for missing file")
	require.True(t, blobstore.IsNotFound(err), "expected not-found error, got %v", err)
}

func TestLocalStatDistinguishesFilesAndDirectories(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	_, err := store.Put("dir/file.txt", []byte("content"))
	require.NoError(t, err, "Put error")

	fileDetails, err := store.Stat("dir/file.txt")
	require.NoError(t, err, "Stat file error")
	require.False(t, fileDetails.IsDir, "file should not report as directory")
	require.Equal(t, "file.txt", fileDetails.Name, "file name")
	require.Equal(t, int64(len("content")), fileDetails.Size, "file size")

	dirDetails, err := store.Stat("dir")
	require.NoError(t, err, "Stat dir error")
	require.True(t, dirDetails.IsDir, "directory should report as directory")

	_, err = store.Stat("nope")
	require.True(t, blobstore.IsNotFound(err), "expected not-found for missing path")
}

func TestLocalListNonDirectory(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	_, err := store.Put("plain.txt", []byte("x"))
	require.NoError(t, err, "Put error")

	_, err = store.List("plain.txt")
	require.Error(t, err, "listing a regular file must fail")

	_, err = store.List("absent-dir")
	require.Error(t, err, "listing a missing directory must fail")
}

func TestLocalUsageAggregatesSubtree(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	_, err := store.Put("a/one.bin", bytes.Repeat([]byte{1}, 10))
	require.NoError(t, err, "Put one error")
	_, err = store.Put("a/b/two.bin", bytes.Repeat([]byte{2}, 25))
	require.NoError(t, err, "Put two error")

	used, err := store.Usage()
	require.NoError(t, err, "Usage error")
	require.Equal(t, int64(35), used, "usage should sum all regular files")
}

func TestLocalConcurrentSamePathWrites(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	payloadA := bytes.Repeat([]byte{'A'}, 64*1024)
	payloadB := bytes.Repeat([]byte{'B'}, 48*1024)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	for _, payload := range [][]byte{payloadA, payloadB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Put("contended.bin", payload)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err, "concurrent Put error")
	}

	rc, err := store.Open("contended.bin")
	require.NoError(t, err, "Open error")
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err, "reading contended payload")

	// The winner is unspecified, but the stored content must be exactly one
	// of the two payloads with no interleaved bytes.
	if !bytes.Equal(got, payloadA) && !bytes.Equal(got, payloadB) {
		t.Fatalf("stored content matches neither payload (len=%d)", len(got))
	}
}

func TestLocalStoreScenario(t *testing.T) {
	t.Parallel()

	base, err := blobstore.NewLocal(t.TempDir(), nil)
	require.NoError(t, err, "NewLocal error")
	store, err := blobstore.NewLocal(base.Root(), blobstore.NewByteLimit(1000, base.Usage))
	require.NoError(t, err, "NewLocal with quota error")

	desc, err := store.Put("a/b.jar", bytes.Repeat([]byte{0xCA}, 100))
	require.NoError(t, err, "Put error")
	require.Equal(t, int64(100), desc.Size, "descriptor size")

	names, err := store.List("a")
	require.NoError(t, err, "List error")
	require.Contains(t, names, "b.jar", "listing should contain the stored file")

	require.NoError(t, store.Remove("a/b.jar"), "Remove error")
	require.False(t, store.Exists("a/b.jar"), "file should be gone after Remove")
}

func TestLocalDeniedWriteScenario(t *testing.T) {
	t.Parallel()

	base, err := blobstore.NewLocal(t.TempDir(), nil)
	require.NoError(t, err, "NewLocal error")
	store, err := blobstore.NewLocal(base.Root(), blobstore.NewByteLimit(0, base.Usage))
	require.NoError(t, err, "NewLocal with quota error")

	_, err = store.Put("x.txt", []byte("0123456789"))
	require.True(t, blobstore.IsInsufficientStorage(err), "expected insufficient-storage error, got %v", err)
	require.False(t, store.Exists("x.txt"), "denied write must leave the path absent")
}

func TestLocalProbesSwallowErrors(t *testing.T) {
	t.Parallel()

	store := newLocalStore(t, nil)

	require.False(t, store.Exists("no/such/path"), "Exists must collapse errors to false")
	require.False(t, store.IsDir("no/such/path"), "IsDir must collapse errors to false")
}
