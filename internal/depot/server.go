// Package depot implements the artifact repository server: an HTTP API over
// a quota-enforcing blob store, with a SQLite index of artifact metadata.
package depot

import (
	"context"
	"database/sql"
	"embed"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"depot/internal/auth"
	"depot/internal/blobstore"
	"depot/internal/metrics"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds everything the server needs to run.
type Config struct {
	// DataDir is where the metadata database lives. When empty the index
	// is kept in memory, which suits tests and the memory storage backend.
	DataDir string

	// Store is the blob store holding artifact payloads.
	Store blobstore.Storage

	// MaxBytes is the configured storage cap, reported on the status
	// endpoint. Zero means unlimited. Enforcement happens inside the
	// store's quota; this value is informational.
	MaxBytes int64

	// Authenticator guards write requests (and reads unless AnonymousRead
	// is set). A nil engine disables authentication entirely.
	Authenticator auth.Engine

	// AnonymousRead allows GET and HEAD requests without credentials.
	AnonymousRead bool

	// Metrics receives request and storage observations. A nil value
	// disables instrumentation.
	Metrics *metrics.Metrics
}

// Server serves the artifact repository HTTP API.
type Server struct {
	cfg Config
	db  *sql.DB
}

// initSchema initializes the metadata database schema by applying all SQL
// files in the embedded migrations in lexicographical order.
func initSchema(ctx context.Context, db *sql.DB) error {
	return fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, readError := migrationsFS.ReadFile(path)
		if readError != nil {
			return fmt.Errorf("error reading SQL file: %w", readError)
		}

		slog.Info("Running migration", "path", path)
		_, execError := db.ExecContext(ctx, string(content))
		return execError
	})
}

// NewServer initializes the metadata database and returns a new Server.
func NewServer(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("Store must not be nil")
	}

	dbPath := ":memory:"
	if cfg.DataDir != "" {
		dbPath = path.Join(cfg.DataDir, "metadata.sqlite")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if cfg.DataDir == "" {
		// Every pooled connection to :memory: would get its own database,
		// so pin the pool to a single connection.
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Server{cfg: cfg, db: db}, nil
}

// Close closes any resources held by the Server.
func (s *Server) Close() error {
	storeErr := s.cfg.Store.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return storeErr
}

// writeError writes an XML error response with the given code and status.
func writeError(w http.ResponseWriter, code string, message string, resource string, status int) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(ErrorResponse{
		Code:     code,
		Message:  message,
		Resource: resource,
	})
}

// writeStoreError maps a blob-store failure onto the API error surface:
// capacity denials become 507, missing paths 404, anything else 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var se *blobstore.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case blobstore.KindInsufficientStorage:
			writeError(w, CodeInsufficientStorage, se.Message, r.URL.Path, se.Status)
			return
		case blobstore.KindNotFound:
			writeError(w, CodeNoSuchArtifact, "The specified artifact does not exist.", r.URL.Path, se.Status)
			return
		}
	}
	slog.Error("Storage operation failed", "path", r.URL.Path, "err", err)
	writeError(w, CodeInternalError, "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
}

// writeXMLResponse encodes v as XML and writes it to w with a 200 OK status.
func writeXMLResponse(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	return xml.NewEncoder(w).Encode(v)
}

// writeXMLBody encodes v as XML after the caller has written its own status.
func writeXMLBody(w http.ResponseWriter, v any) error {
	return xml.NewEncoder(w).Encode(v)
}

// isValidArtifactPath enforces the path constraints guaranteed to the blob
// store: non-empty, at most 1024 bytes, no control characters, and no
// segment that would escape the storage root.
func isValidArtifactPath(p string) bool {
	if len(p) == 0 || len(p) > 1024 {
		return false
	}

	if strings.ContainsFunc(p, func(c rune) bool {
		return c < 0x20 || c == 0x7f
	}) {
		return false
	}

	if strings.HasPrefix(p, "/") {
		return false
	}

	for _, segment := range strings.Split(p, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}
	return true
}

// validateArtifactPathOrError writes an InvalidArtifactPath error and
// returns false if the path does not meet the repository path rules.
func validateArtifactPathOrError(w http.ResponseWriter, r *http.Request, p string) bool {
	if !isValidArtifactPath(p) {
		writeError(w, CodeInvalidArtifactPath, "The specified artifact path is not valid.", r.URL.Path, http.StatusBadRequest)
		return false
	}
	return true
}
