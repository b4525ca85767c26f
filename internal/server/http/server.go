// Package httpserver exposes the provider facade as a small JSON API.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rzbill/ystore/internal/blob"
	"github.com/rzbill/ystore/internal/runtime"
	"github.com/rzbill/ystore/internal/yerr"
	logpkg "github.com/rzbill/ystore/pkg/log"
)

// Server serves the ystore HTTP API.
type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger *logpkg.Logger
}

// New builds a Server over rt.
func New(rt *runtime.Runtime, logger *logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.Nop()
	}
	s := &Server{rt: rt, logger: logger.WithComponent("http")}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/docs", s.handleListDocs)
	mux.HandleFunc("/v1/docs/clock", s.handleClock)
	mux.HandleFunc("/v1/docs/update", s.handleStoreUpdate)
	mux.HandleFunc("/v1/docs/updates", s.handleReadUpdates)
	mux.HandleFunc("/v1/docs/state-vector", s.handleStateVector)
	mux.HandleFunc("/v1/docs/flush", s.handleFlush)

	cfg := rt.Config()
	var handler http.Handler = mux
	handler = rateLimit(handler, cfg.WriteRatePerSec, cfg.WriteBurst)
	handler = requestID(handler, s.logger)
	s.srv = &http.Server{Handler: handler}
	return s
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("listening", "addr", l.Addr().String())
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// Addr returns the bound listen address (for tests using port 0).
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, yerr.ErrValidation), errors.Is(err, yerr.ErrUsage):
		status = http.StatusBadRequest
	case errors.Is(err, yerr.ErrIntegrity):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListDocs(w http.ResponseWriter, r *http.Request) {
	names, err := s.rt.Provider().ListAllDocumentNames(r.Context(), r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"docs": names})
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	doc := r.URL.Query().Get("doc")
	clock, err := s.rt.Provider().GetCurrentClock(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc": doc, "clock": clock})
}

type storeUpdateReq struct {
	Doc    string `json:"doc"`
	Update []byte `json:"update"`
}

func (s *Server) handleStoreUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req storeUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, yerr.Validationf("invalid request body: %v", err))
		return
	}
	clock, err := s.rt.Provider().StoreUpdate(r.Context(), req.Doc, req.Update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"doc": req.Doc, "clock": clock})
}

func (s *Server) handleReadUpdates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doc := q.Get("doc")
	from := parseUint32(q.Get("from"), 0)
	to := parseUint32(q.Get("to"), ^uint32(0))
	opts := blob.ReadOptions{
		Limit:   int(parseUint32(q.Get("limit"), 0)),
		Reverse: q.Get("reverse") == "true",
	}

	var (
		recs []blob.Record
		err  error
	)
	if from == 0 && to == ^uint32(0) && opts.Limit == 0 && !opts.Reverse {
		// The whole-log read path coalesces across concurrent requests.
		var payloads [][]byte
		payloads, err = s.rt.Provider().GetUpdates(r.Context(), doc)
		if errors.Is(err, yerr.ErrUsage) {
			// coalescing unavailable (per-document keyspace); serve directly
			recs, err = s.rt.Provider().ReadUpdates(r.Context(), doc, from, to, opts)
		} else if err == nil {
			recs = make([]blob.Record, len(payloads))
			for i, p := range payloads {
				recs[i] = blob.Record{Payload: p}
			}
		}
	} else {
		recs, err = s.rt.Provider().ReadUpdates(r.Context(), doc, from, to, opts)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	updates := make([][]byte, len(recs))
	for i, rec := range recs {
		updates[i] = rec.Payload
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc": doc, "updates": updates})
}

type stateVectorReq struct {
	Doc    string `json:"doc"`
	Vector []byte `json:"vector"`
	Clock  uint32 `json:"clock"`
}

func (s *Server) handleStateVector(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		doc := r.URL.Query().Get("doc")
		vec, clock, err := s.rt.Provider().ReadStateVector(r.Context(), doc)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"doc": doc, "vector": vec, "clock": clock})
	case http.MethodPost:
		var req stateVectorReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, yerr.Validationf("invalid request body: %v", err))
			return
		}
		if err := s.rt.Provider().WriteStateVector(r.Context(), req.Doc, req.Vector, req.Clock); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type flushReq struct {
	Doc        string `json:"doc"`
	FullUpdate []byte `json:"fullUpdate"`
	Vector     []byte `json:"vector"`
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req flushReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, yerr.Validationf("invalid request body: %v", err))
		return
	}
	var (
		clock uint32
		err   error
	)
	if len(req.FullUpdate) > 0 {
		clock, err = s.rt.Provider().FlushDocument(r.Context(), req.Doc, req.FullUpdate, req.Vector)
	} else {
		clock, err = s.rt.Provider().Flush(r.Context(), req.Doc)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc": req.Doc, "clock": clock})
}

func parseUint32(s string, def uint32) uint32 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}
