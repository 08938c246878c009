package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/oeisdb/oeis"
	"github.com/hazyhaar/oeisdb/mirror/store"
)

// Handler returns the read-only HTTP surface: store status and lookup by
// entry id (the mirror deliberately has no broader query capability).
func (m *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", m.handleStatus)
	r.Get("/entries/{id}", m.handleEntry)
	r.Get("/entries/{id}/parsed", m.handleEntryParsed)
	return r
}

// Serve runs the HTTP surface on the configured address until the
// context is cancelled, then shuts down gracefully.
func (m *Service) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              m.config.HTTPAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		m.logger.Info("http surface listening", "addr", m.config.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (m *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := m.store.Stats(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, stats)
}

func (m *Service) handleEntry(w http.ResponseWriter, r *http.Request) {
	rec, ok := m.lookupEntry(w, r)
	if !ok {
		return
	}
	writeJSON(w, 200, rec)
}

func (m *Service) handleEntryParsed(w http.ResponseWriter, r *http.Request) {
	rec, ok := m.lookupEntry(w, r)
	if !ok {
		return
	}
	entry, issues, err := oeis.ParseEntry(rec.OeisID, rec.MainContent, rec.BFileContent)
	if err != nil {
		writeError(w, 422, err)
		return
	}
	writeJSON(w, 200, map[string]any{"entry": entry, "issues": issues})
}

// lookupEntry resolves the {id} URL parameter to a stored record. It
// writes the error response itself when it cannot.
func (m *Service) lookupEntry(w http.ResponseWriter, r *http.Request) (*store.Record, bool) {
	id, err := parseEntryID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, 400, err)
		return nil, false
	}
	rec, err := m.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, 500, err)
		return nil, false
	}
	if rec == nil {
		writeJSON(w, 404, map[string]string{"error": oeis.FormatID(id) + " not in mirror"})
		return nil, false
	}
	return rec, true
}

// parseEntryID accepts the 45, A000045 and a000045 forms.
func parseEntryID(s string) (int, error) {
	digits := s
	if digits != "" && (digits[0] == 'A' || digits[0] == 'a') {
		digits = digits[1:]
	}
	id, err := strconv.Atoi(digits)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("bad entry id %q", s)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
