package main

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
)

var devMode bool

// logError logs an error with context
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
}

// server wires the HTTP API to the moderator
type server struct {
	moderator *Moderator
	store     Store
	reg       *Registry
	hub       *Hub
	code      string
}

func newServer(m *Moderator, store Store, reg *Registry, hub *Hub, code string) *server {
	return &server{moderator: m, store: store, reg: reg, hub: hub, code: code}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logError("writeJSON", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrNightInProgress),
		errors.Is(err, ErrInvalidSetup),
		errors.Is(err, ErrPlayerDead):
		return http.StatusConflict
	case errors.Is(err, ErrUnknownPlayer),
		errors.Is(err, ErrUnknownRole),
		errors.Is(err, ErrUnknownCommand),
		errors.Is(err, ErrUnknownFaction):
		return http.StatusBadRequest
	case errors.Is(err, ErrGameNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.moderator.View())
}

func (s *server) handleRoles(w http.ResponseWriter, r *http.Request) {
	roles := catalogOrder(s.reg)
	if f := r.URL.Query().Get("faction"); f != "" {
		roles = s.reg.ByFaction(Faction(f))
	}
	writeJSON(w, http.StatusOK, roles)
}

func (s *server) handleWake(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.moderator.View().Wake)
}

func (s *server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed command")
		return
	}

	res, err := s.moderator.Apply(r.Context(), cmd)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			logError("handleCommand: "+cmd.Action, err)
			writeError(w, status, "Something went wrong")
			return
		}
		DebugLog("Command %s rejected: %v", cmd.Action, err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// routes builds the HTTP handler
func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	// Wrap handlers with compression, caching control, and optional logging
	wrapHandler := func(pattern string, handler http.HandlerFunc) {
		var h http.Handler = handler
		h = compress(h)
		h = disableCaching(h)
		if appLogger != nil && appLogger.logRequests {
			mux.Handle(pattern, &LoggingHandler{Handler: h, Logger: appLogger})
		} else {
			mux.Handle(pattern, h)
		}
	}

	wrapHandler("POST /login", s.handleLogin)
	wrapHandler("POST /logout", s.handleLogout)
	wrapHandler("GET /api/state", s.requireSession(s.handleState))
	wrapHandler("GET /api/roles", s.requireSession(s.handleRoles))
	wrapHandler("GET /api/wake", s.requireSession(s.handleWake))
	wrapHandler("POST /api/command", s.requireSession(s.handleCommand))

	// WebSocket upgrades need the raw ResponseWriter (http.Hijacker)
	if appLogger != nil && appLogger.logRequests {
		mux.Handle("GET /ws", &LoggingHandler{Handler: http.HandlerFunc(s.handleWebSocket), Logger: appLogger})
	} else {
		mux.HandleFunc("GET /ws", s.handleWebSocket)
	}

	return mux
}

func disableCaching(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Cache-Control", "no-cache")

		next.ServeHTTP(w, r)
	})
}

// shouldCompress determines if a content type should be gzip compressed
func shouldCompress(contentType string) bool {
	compressiblePrefixes := []string{
		"text/",
		"application/json",
	}
	for _, prefix := range compressiblePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to handle conditional gzip compression
type responseWriter struct {
	http.ResponseWriter
	gz         *gzip.Writer
	acceptGzip bool
	headerSent bool
}

// WriteHeader checks content type and sets up compression if appropriate
func (w *responseWriter) WriteHeader(statusCode int) {
	if w.headerSent {
		return
	}
	w.headerSent = true

	// Only compress if content type is compressible and client supports gzip
	contentType := w.Header().Get("Content-Type")
	if contentType != "" && shouldCompress(contentType) && w.acceptGzip {
		w.gz = gzip.NewWriter(w.ResponseWriter)
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}

	w.ResponseWriter.WriteHeader(statusCode)
}

// Write writes to gzip writer if it exists, otherwise to original writer
func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.headerSent {
		w.WriteHeader(http.StatusOK)
	}

	if w.gz != nil {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Flush flushes both gzip and response writer
func (w *responseWriter) Flush() {
	if w.gz != nil {
		w.gz.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Close closes the gzip writer if it exists
func (w *responseWriter) Close() error {
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}

// compress adds gzip compression to compressible responses
func compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{
			ResponseWriter: w,
			acceptGzip:     strings.Contains(r.Header.Get("Accept-Encoding"), "gzip"),
		}
		defer wrapped.Close()

		next.ServeHTTP(wrapped, r)
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
