package depot

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"depot/internal/blobstore"
)

// handlePutArtifact implements PUT /repository/{path...}: the payload is
// written through the blob store's quota gate, its SHA-256 is computed while
// it streams, and the metadata index is updated on success.
func (s *Server) handlePutArtifact(w http.ResponseWriter, r *http.Request, artifactPath string) {
	if !validateArtifactPathOrError(w, r, artifactPath) {
		return
	}
	defer r.Body.Close()

	hasher := sha256.New()
	body := io.TeeReader(r.Body, hasher)

	var (
		desc blobstore.Descriptor
		err  error
	)
	if r.ContentLength >= 0 {
		// Known length: quota-check up front and stream in bounded chunks.
		desc, err = s.cfg.Store.PutReaderN(artifactPath, body, r.ContentLength)
	} else {
		// Chunked upload with no declared length; the store has to buffer
		// the payload to measure it before the quota decision.
		desc, err = s.cfg.Store.PutReader(artifactPath, body)
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.db.ExecContext(r.Context(),
		`INSERT INTO artifacts(path, size, checksum, content_type, created_at)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		 	size=excluded.size,
		 	checksum=excluded.checksum,
		 	content_type=excluded.content_type,
		 	created_at=excluded.created_at`,
		artifactPath, desc.Size, checksum, contentType, time.Now().UTC(),
	)
	if err != nil {
		slog.Error("Upsert artifact metadata", "path", artifactPath, "err", err)
		writeError(w, CodeInternalError, "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("ETag", fmt.Sprintf("%q", checksum))
	w.WriteHeader(http.StatusCreated)
	_ = writeXMLBody(w, PutArtifactResult{
		Path:         desc.Path,
		Size:         desc.Size,
		LastModified: desc.ModTime.UTC().Format(time.RFC3339),
		Checksum:     checksum,
	})
}

// handleGetArtifact implements GET /repository/{path...}. Directory paths
// (including the repository root) return an XML listing; file paths stream
// the stored payload.
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request, artifactPath string) {
	// Validate before the directory probe so a traversal path can never
	// reach the store.
	if artifactPath != "" && !validateArtifactPathOrError(w, r, artifactPath) {
		return
	}

	if artifactPath == "" || s.cfg.Store.IsDir(artifactPath) {
		s.handleListDirectory(w, r, artifactPath)
		return
	}

	details, err := s.cfg.Store.Stat(artifactPath)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	rc, err := s.cfg.Store.Open(artifactPath)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	defer rc.Close()

	s.writeArtifactHeaders(w, r, artifactPath, details)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("Stream artifact", "path", artifactPath, "err", err)
	}
}

// handleHeadArtifact implements HEAD /repository/{path...}: metadata headers
// only, no body.
func (s *Server) handleHeadArtifact(w http.ResponseWriter, r *http.Request, artifactPath string) {
	if !validateArtifactPathOrError(w, r, artifactPath) {
		return
	}

	details, err := s.cfg.Store.Stat(artifactPath)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	s.writeArtifactHeaders(w, r, artifactPath, details)
	w.WriteHeader(http.StatusOK)
}

// handleDeleteArtifact implements DELETE /repository/{path...}, removing the
// payload and its index row.
func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request, artifactPath string) {
	if !validateArtifactPathOrError(w, r, artifactPath) {
		return
	}

	if err := s.cfg.Store.Remove(artifactPath); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if _, err := s.db.ExecContext(r.Context(), `DELETE FROM artifacts WHERE path = ?`, artifactPath); err != nil {
		slog.Error("Delete artifact metadata", "path", artifactPath, "err", err)
		writeError(w, CodeInternalError, "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListDirectory returns the immediate children of a directory in the
// repository tree. Entry order is whatever the store yields.
func (s *Server) handleListDirectory(w http.ResponseWriter, r *http.Request, dirPath string) {
	names, err := s.cfg.Store.List(dirPath)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	entries := make([]DirectoryEntry, 0, len(names))
	for _, name := range names {
		childPath := name
		if dirPath != "" {
			childPath = dirPath + "/" + name
		}

		details, err := s.cfg.Store.Stat(childPath)
		if err != nil {
			// The child may have been removed between List and Stat.
			continue
		}
		entries = append(entries, DirectoryEntry{
			Name:         details.Name,
			Size:         details.Size,
			LastModified: details.ModTime.UTC().Format(time.RFC3339),
			Directory:    details.IsDir,
		})
	}

	if err := writeXMLResponse(w, ListDirectoryResult{Path: dirPath, Entries: entries}); err != nil {
		slog.Error("Encode directory listing", "path", dirPath, "err", err)
	}
}

// handleStatus implements GET /api/status: live usage and quota headroom for
// operators watching capacity pressure.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	usage, err := s.cfg.Store.Usage()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	full := s.cfg.Store.IsFull()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SetStorage(usage, s.cfg.MaxBytes, full)
	}

	if err := writeXMLResponse(w, StorageStatus{
		UsageBytes: usage,
		LimitBytes: s.cfg.MaxBytes,
		Full:       full,
	}); err != nil {
		slog.Error("Encode storage status", "err", err)
	}
}

// handleSearch implements GET /api/artifacts[?prefix=&limit=], a query over
// the metadata index rather than the filesystem tree.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prefix := q.Get("prefix")

	limit := 1000
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	args := []any{}
	query := `SELECT path, size, checksum, content_type, created_at FROM artifacts`
	if prefix != "" {
		query += ` WHERE path LIKE ?`
		args = append(args, prefix+"%")
	}
	query += ` ORDER BY path LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		slog.Error("Search artifacts", "prefix", prefix, "err", err)
		writeError(w, CodeInternalError, "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var records []ArtifactRecord
	for rows.Next() {
		var (
			rec         ArtifactRecord
			contentType sql.NullString
			createdAt   time.Time
		)
		if err := rows.Scan(&rec.Path, &rec.Size, &rec.Checksum, &contentType, &createdAt); err != nil {
			slog.Error("Scan artifact row", "err", err)
			continue
		}
		if contentType.Valid {
			rec.ContentType = contentType.String
		}
		rec.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		records = append(records, rec)
	}

	if err := writeXMLResponse(w, SearchResult{Prefix: prefix, Artifacts: records}); err != nil {
		slog.Error("Encode search result", "err", err)
	}
}

// writeArtifactHeaders sets the metadata headers shared by GET and HEAD,
// pulling the checksum and content type from the index when present.
func (s *Server) writeArtifactHeaders(w http.ResponseWriter, r *http.Request, artifactPath string, details blobstore.FileDetails) {
	var (
		checksum    string
		contentType sql.NullString
	)
	err := s.db.QueryRowContext(r.Context(),
		`SELECT checksum, content_type FROM artifacts WHERE path = ?`,
		artifactPath,
	).Scan(&checksum, &contentType)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.Error("Lookup artifact metadata", "path", artifactPath, "err", err)
	}

	if contentType.Valid && contentType.String != "" {
		w.Header().Set("Content-Type", contentType.String)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Length", strconv.FormatInt(details.Size, 10))
	w.Header().Set("Last-Modified", details.ModTime.UTC().Format(http.TimeFormat))
	if checksum != "" {
		w.Header().Set("ETag", fmt.Sprintf("%q", checksum))
	}
}
