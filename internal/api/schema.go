package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
)

// maxSchemaVersion is the largest version the database header can store.
const maxSchemaVersion = math.MaxInt32

// validVersion reports whether v is a storable, non-negative schema version.
func validVersion(v int) bool {
	return v >= 0 && v <= maxSchemaVersion
}

// migrateRequest is the body of POST /schema/migrations.
type migrateRequest struct {
	SQL         string `json:"sql"`
	FromVersion *int   `json:"from_version"`
	ToVersion   *int   `json:"to_version"`
}

// resetRequest is the body of POST /schema/reset.
type resetRequest struct {
	SQL     string `json:"sql"`
	Version *int   `json:"version"`
}

// schemaResponse reports the session's schema version.
type schemaResponse struct {
	SessionID string `json:"session_id"`
	Version   int    `json:"version"`
}

// handleGetSchema returns the current schema version.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.SchemaVersion(r.Context())
	if err != nil {
		s.writeSessionError(w, r, "reading schema version", err)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{SessionID: s.store.ID(), Version: version})
}

// handleMigrate applies one migration step.
func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.FromVersion == nil || req.ToVersion == nil {
		writeValidationError(w, "from_version and to_version are required")
		return
	}
	if !validVersion(*req.FromVersion) || !validVersion(*req.ToVersion) {
		writeValidationError(w, fmt.Sprintf("versions must be between 0 and %d", maxSchemaVersion))
		return
	}

	if err := s.store.Migrate(r.Context(), req.SQL, *req.FromVersion, *req.ToVersion); err != nil {
		s.writeSessionError(w, r, "migration", err)
		return
	}

	writeJSON(w, http.StatusOK, schemaResponse{SessionID: s.store.ID(), Version: *req.ToVersion})
}

// handleReset wipes the database and reseeds it from the request schema.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		writeValidationError(w, "sql is required")
		return
	}
	if req.Version == nil || !validVersion(*req.Version) {
		writeValidationError(w, fmt.Sprintf("version is required and must be between 0 and %d", maxSchemaVersion))
		return
	}

	s.logger.Warn("database reset requested",
		"session_id", s.store.ID(),
		"version", *req.Version,
		"subject", r.Context().Value(ctxKeySubject),
	)

	if err := s.store.ResetDatabase(r.Context(), req.SQL, *req.Version); err != nil {
		s.writeSessionError(w, r, "reset", err)
		return
	}

	writeJSON(w, http.StatusOK, schemaResponse{SessionID: s.store.ID(), Version: *req.Version})
}
