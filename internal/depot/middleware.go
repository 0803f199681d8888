package depot

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ResponseWriterWrapper is a wrapper around the default http.ResponseWriter.
// It intercepts the WriteHeader call and saves the response status code.
type ResponseWriterWrapper struct {
	http.ResponseWriter
	WrittenResponseCode int
}

// WriteHeader intercepts the status code and stores it, then calls the original WriteHeader.
func (w *ResponseWriterWrapper) WriteHeader(statusCode int) {
	w.WrittenResponseCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write calls the underlying ResponseWriter's Write method.
func (w *ResponseWriterWrapper) Write(b []byte) (int, error) {
	if w.WrittenResponseCode == 0 {
		w.WrittenResponseCode = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// logRequest is middleware that logs incoming HTTP requests and feeds the
// request counter.
func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		start := time.Now()

		writer := ResponseWriterWrapper{ResponseWriter: w}
		next.ServeHTTP(&writer, r)
		elapsed := time.Since(start).Nanoseconds()

		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ObserveRequest(r.Method, writer.WrittenResponseCode)
		}

		userAttrs := slog.Group("user", "ip", r.RemoteAddr)
		requestAttrs := slog.Group("request",
			"proto", r.Proto,
			"method", r.Method,
			"url", r.URL.String(),
			"duration_ms", float64(elapsed)/float64(time.Millisecond),
			"status_code", writer.WrittenResponseCode,
		)

		if writer.WrittenResponseCode >= 400 {
			slog.Error("Request", userAttrs, requestAttrs)
		} else {
			slog.Info("Request", userAttrs, requestAttrs)
		}
	})
}

// requireAuthentication enforces the server's access policy on repository
// routes: reads pass when AnonymousRead is set, everything else needs the
// configured engine to accept the request. Operator endpoints (/api,
// /metrics) stay open.
func (s *Server) requireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		if s.cfg.Authenticator == nil || !strings.HasPrefix(r.URL.Path, "/repository") {
			next.ServeHTTP(w, r)
			return
		}

		isRead := r.Method == http.MethodGet || r.Method == http.MethodHead
		if isRead && s.cfg.AnonymousRead {
			next.ServeHTTP(w, r)
			return
		}

		ok, err := s.cfg.Authenticator.Authenticate(r.Context(), r)
		if err != nil {
			slog.Error("Authentication check failed", "err", err)
			writeError(w, CodeInternalError, "We encountered an internal error. Please try again.", r.URL.Path, http.StatusInternalServerError)
			return
		}
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="depot"`)
			writeError(w, CodeAccessDenied, "Access Denied", r.URL.Path, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// slashFix collapses duplicate slashes and strips the trailing slash so path
// parameters resolve consistently.
func slashFix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for strings.Contains(r.URL.Path, "//") {
			r.URL.Path = strings.ReplaceAll(r.URL.Path, "//", "/")
		}

		if r.URL.Path != "/" && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimSuffix(r.URL.Path, "/")
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns an http.Handler implementing the depot API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Repository tree
	mux.HandleFunc("GET /repository", func(w http.ResponseWriter, r *http.Request) {
		s.handleListDirectory(w, r, "")
	})
	mux.HandleFunc("PUT /repository/{path...}", func(w http.ResponseWriter, r *http.Request) {
		s.handlePutArtifact(w, r, r.PathValue("path"))
	})
	mux.HandleFunc("GET /repository/{path...}", func(w http.ResponseWriter, r *http.Request) {
		s.handleGetArtifact(w, r, r.PathValue("path"))
	})
	mux.HandleFunc("HEAD /repository/{path...}", func(w http.ResponseWriter, r *http.Request) {
		s.handleHeadArtifact(w, r, r.PathValue("path"))
	})
	mux.HandleFunc("DELETE /repository/{path...}", func(w http.ResponseWriter, r *http.Request) {
		s.handleDeleteArtifact(w, r, r.PathValue("path"))
	})

	// Operator endpoints
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/artifacts", s.handleSearch)
	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	}

	return s.logRequest(s.requireAuthentication(slashFix(mux)))
}
