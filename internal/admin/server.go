// Package admin exposes the decision record store and rule engine over a
// local JSON API for inspection and debugging.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/edgefilter/bodyroute/api"
	"github.com/edgefilter/bodyroute/internal/record"
	"github.com/edgefilter/bodyroute/internal/rules"
)

// Server is the admin HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	store  record.Store
	engine rules.Engine
	addr   string
}

// NewServer creates a new admin server.
func NewServer(addr string, store record.Store, engine rules.Engine, logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		store:  store,
		engine: engine,
		addr:   addr,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/records", s.handleRecords)
	s.mux.HandleFunc("GET /api/v1/records/stream", s.handleRecordStream)
	s.mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	s.mux.HandleFunc("POST /api/v1/check", s.handleCheck)
}

// ListenAndServe starts the admin HTTP server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Info("starting admin server", "addr", s.addr)
	return srv.ListenAndServe()
}

// Handler returns the HTTP handler for embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := api.QueryFilter{
		Route: q.Get("route"),
		Rule:  q.Get("rule"),
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.store.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to query decision log", http.StatusInternalServerError)
		return
	}

	// Newest first; the limit applies after reversal so it keeps the
	// newest records, not the oldest.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	if len(records) > limit {
		records = records[:limit]
	}

	writeJSON(w, records)
}

func (s *Server) handleRecordStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.store.Subscribe(r.Context())
	defer cancel()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: decision\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signal  string `json:"signal"`
		Present *bool  `json:"present,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	present := req.Present == nil || *req.Present
	result, err := s.engine.Evaluate(r.Context(), &rules.EvalInput{
		Signal:  req.Signal,
		Present: present,
	})
	if err != nil {
		http.Error(w, "evaluation error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, api.CheckResult{Route: result.Route, Rule: result.Rule})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
