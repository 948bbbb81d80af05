package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ChangeSyncModeRequest is the body of PUT /sync/mode. Mode is either
// "realtime" or a whole number of minutes, as a JSON string or number.
// @Description Sync mode change request
type ChangeSyncModeRequest struct {
	Mode json.RawMessage `json:"mode" swaggertype:"string" example:"15"`
}

// ChangeSyncModeResponse reports the installed mode
// @Description Sync mode change result
type ChangeSyncModeResponse struct {
	Changed bool   `json:"changed" example:"true"`
	Mode    string `json:"mode" example:"15"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings PostgreSQL and, when configured, Redis
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A dependency is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("readiness: database unreachable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			s.logger.Warn("readiness: redis unreachable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Sync endpoints

// handleTriggerSync godoc
// @Summary      Trigger manual sync
// @Description  Run a sync batch now. connection_id wins over tenant_id; an empty body syncs every active connection (admin only). Members may only sync their own tenant.
// @Tags         Sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.ManualSyncRequest  false  "Sync scope"
// @Success      200      {object}  domain.BatchSummary
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden"
// @Failure      404      {object}  ErrorResponse  "Connection not found"
// @Router       /sync [post]
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	var req driving.ManualSyncRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	auth := GetAuthContext(r.Context())
	if auth == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !auth.IsAdmin() {
		// Members cannot name connections directly; scope to their tenant
		if req.ConnectionID != "" {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		if req.TenantID == "" {
			req.TenantID = auth.TenantID
		}
		if !auth.CanAccessTenant(req.TenantID) {
			writeError(w, http.StatusForbidden, "tenant access denied")
			return
		}
	}

	summary, err := s.syncService.TriggerManualSync(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err, "sync failed")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleChangeSyncMode godoc
// @Summary      Change sync mode
// @Description  Install a new scheduler mode, "realtime" or 1-1440 minutes (admin only)
// @Tags         Sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ChangeSyncModeRequest  true  "New mode"
// @Success      200      {object}  ChangeSyncModeResponse
// @Failure      400      {object}  ErrorResponse  "Invalid sync mode"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      500      {object}  ErrorResponse  "Mode could not be persisted"
// @Router       /sync/mode [put]
func (s *Server) handleChangeSyncMode(w http.ResponseWriter, r *http.Request) {
	var req ChangeSyncModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw := rawModeValue(req.Mode)
	changed, err := s.syncService.ChangeSyncMode(r.Context(), raw)
	if err != nil {
		s.writeServiceError(w, err, "failed to change sync mode")
		return
	}

	mode, _ := domain.ParseSyncMode(raw)
	writeJSON(w, http.StatusOK, ChangeSyncModeResponse{Changed: changed, Mode: mode.String()})
}

// handleGetSyncStatus godoc
// @Summary      Get sync status
// @Description  Current mode, per-connection sync state and the rate limiter snapshot (admin only)
// @Tags         Sync
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  driving.SyncStatus
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /sync/status [get]
func (s *Server) handleGetSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.syncService.GetSyncStatus(r.Context())
	if err != nil {
		s.writeServiceError(w, err, "failed to get sync status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Connection endpoints

// handleListAdAccounts godoc
// @Summary      List ad accounts
// @Description  Ad accounts visible to a connection's credential (admin only)
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Connection ID"
// @Success      200  {array}   domain.AdAccount
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      404  {object}  ErrorResponse  "Connection not found"
// @Failure      409  {object}  ErrorResponse  "Connection has no usable credential"
// @Router       /connections/{id}/ad-accounts [get]
func (s *Server) handleListAdAccounts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing connection id")
		return
	}

	accounts, err := s.syncService.ListAdAccounts(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err, "failed to list ad accounts")
		return
	}
	if accounts == nil {
		accounts = []*domain.AdAccount{}
	}

	writeJSON(w, http.StatusOK, accounts)
}

// Helper functions

// decodeOptionalBody decodes a JSON body, treating an absent body as empty
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// rawModeValue accepts "15", 15 and "realtime" alike
func rawModeValue(msg json.RawMessage) string {
	var str string
	if err := json.Unmarshal(msg, &str); err == nil {
		return str
	}
	return strings.TrimSpace(string(msg))
}

// writeServiceError maps domain errors to status codes
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidSyncMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCredentialMissing), errors.Is(err, domain.ErrCredentialInvalid):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSyncInProgress):
		writeError(w, http.StatusConflict, "sync already in progress")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		s.logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
