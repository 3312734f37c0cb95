package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ScoreLedger/internal/ledger"
	"ScoreLedger/internal/logger"
)

const (
	// maxRequestSize is the maximum attest request size in bytes.
	maxRequestSize = 64 << 10 // 64 KB
)

// Server is the HTTP API server. It is the host boundary of the ledger:
// it verifies caller identity, stamps each call with its clock, and invokes
// the store. The ledger itself serializes writes.
type Server struct {
	addr   string         // addr is the HTTP listen address
	ledger *ledger.Ledger // ledger is the attestation store
	server *http.Server   // server is the underlying HTTP server
	now    func() uint64  // now supplies call timestamps in epoch nanoseconds
}

// callContext carries the ambient facts of one call into the ledger.
type callContext struct {
	ts     uint64
	caller string
}

func (c callContext) Timestamp() uint64 { return c.ts }
func (c callContext) Caller() string    { return c.caller }

// New creates a new HTTP API server over the given ledger.
func New(addr string, l *ledger.Ledger) *Server {
	return &Server{
		addr:   addr,
		ledger: l,
		now:    func() uint64 { return uint64(time.Now().UnixNano()) },
	}
}

// Handler returns the route handler for the server's endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /attest", s.handleAttest)
	mux.HandleFunc("GET /attestation/{id}", s.handleVerify)
	mux.HandleFunc("GET /count", s.handleCount)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// attestRequest is the JSON body of POST /attest.
// Attester is the caller's hex Ed25519 public key; Signature covers the
// blake3 digest of the canonical request bytes.
type attestRequest struct {
	SessionID string `json:"session_id"`
	ScoreHash string `json:"score_hash"`
	Attester  string `json:"attester"`
	Signature string `json:"signature"`
}

// handleAttest handles POST /attest requests.
func (s *Server) handleAttest(w http.ResponseWriter, r *http.Request) {
	var req attestRequest

	body := http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caller, err := validateAttest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := callContext{ts: s.now(), caller: caller}

	if err := s.ledger.Attest(ctx, req.SessionID, req.ScoreHash); err != nil {
		if errors.Is(err, ledger.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		logger.Error("attest failed", "session", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "commit failed")

		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": req.SessionID,
	})
}

// handleVerify handles GET /attestation/{id} requests.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	record, found := s.ledger.Verify(sessionID)
	if !found {
		writeError(w, http.StatusNotFound, "no attestation for session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"score_hash": record.ScoreHash,
		"timestamp":  record.Timestamp,
		"attester":   record.Attester,
	})
}

// handleCount handles GET /count requests.
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{
		"count": s.ledger.AttestationCount(),
	})
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleSnapshot handles GET /snapshot requests (operator backup).
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.ExportSnapshot()
	if err != nil {
		logger.Error("snapshot export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "snapshot failed")

		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(snap)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
