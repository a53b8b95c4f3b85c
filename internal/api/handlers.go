package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blulok/blulok-core/internal/device"
	"github.com/blulok/blulok-core/internal/distribution"
	"github.com/blulok/blulok-core/internal/routepass"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 5 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.HealthCheck(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	s.writeJSON(w, status, body)
}

type routePassRequest struct {
	UserID   string              `json:"user_id"`
	DeviceID string              `json:"device_id"`
	Schedule *routepass.Schedule `json:"schedule,omitempty"`
}

type routePassResponse struct {
	Token     string   `json:"token"`
	PassID    string   `json:"pass_id"`
	Audiences []string `json:"audiences"`
	ExpiresAt int64    `json:"expires_at"`
}

func (s *Server) handleIssueRoutePass(w http.ResponseWriter, r *http.Request) {
	var req routePassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.DeviceID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and device_id are required")
		return
	}

	token, claims, err := s.issuer.Issue(r.Context(), req.UserID, req.DeviceID, req.Schedule)
	if err != nil {
		s.routePassError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, routePassResponse{
		Token:     token,
		PassID:    claims.ID,
		Audiences: []string(claims.Audience),
		ExpiresAt: claims.ExpiresAt.Unix(),
	})
}

func (s *Server) routePassError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound), errors.Is(err, routepass.ErrDeviceOwnership):
		s.writeError(w, http.StatusNotFound, "device not found")
	case errors.Is(err, routepass.ErrNoAccess):
		s.writeError(w, http.StatusForbidden, "no accessible locks")
	case errors.Is(err, routepass.ErrDeviceNotActive), errors.Is(err, routepass.ErrDeviceMissingKey):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, routepass.ErrInvalidSchedule):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("route pass issuance failed",
			"path", r.URL.Path,
			"error", err,
		)
		s.writeError(w, http.StatusInternalServerError, "issuance failed")
	}
}

type tenancyChangedEvent struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleTenancyChanged(w http.ResponseWriter, r *http.Request) {
	var event tenancyChangedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil || event.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	// Reconciliation failures are captured per row; anything surfacing
	// here is logged without failing the event delivery.
	if err := s.reconciler.OnTenancyChange(r.Context(), event.UserID); err != nil {
		s.logger.Error("tenancy reconciliation failed", "user_id", event.UserID, "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type lockAddedEvent struct {
	LockID string `json:"lock_id"`
	UnitID string `json:"unit_id"`
}

func (s *Server) handleLockAdded(w http.ResponseWriter, r *http.Request) {
	var event lockAddedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil || event.LockID == "" || event.UnitID == "" {
		s.writeError(w, http.StatusBadRequest, "lock_id and unit_id are required")
		return
	}

	if err := s.reconciler.OnLockAdded(r.Context(), event.LockID, event.UnitID); err != nil {
		s.logger.Error("lock grant reconciliation failed",
			"lock_id", event.LockID,
			"unit_id", event.UnitID,
			"error", err,
		)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type accessRevocationEvent struct {
	UserID    string   `json:"user_id"`
	ExpiresAt *int64   `json:"expires_at,omitempty"`
	LockIDs   []string `json:"lock_ids,omitempty"`
}

func (s *Server) handleAccessRevoked(w http.ResponseWriter, r *http.Request) {
	event, ok := s.decodeRevocation(w, r)
	if !ok {
		return
	}

	if err := s.revoker.RevokeUser(r.Context(), event.UserID, event.ExpiresAt, event.LockIDs); err != nil {
		s.logger.Error("denylist revocation failed", "user_id", event.UserID, "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleAccessRestored(w http.ResponseWriter, r *http.Request) {
	event, ok := s.decodeRevocation(w, r)
	if !ok {
		return
	}

	if err := s.revoker.RestoreUser(r.Context(), event.UserID, event.ExpiresAt, event.LockIDs); err != nil {
		s.logger.Error("denylist restore failed", "user_id", event.UserID, "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) decodeRevocation(w http.ResponseWriter, r *http.Request) (accessRevocationEvent, bool) {
	var event accessRevocationEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil || event.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return event, false
	}
	return event, true
}

type rotateKeysRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleRotateKeys(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var req rotateKeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	err := s.reconciler.RotateKeys(r.Context(), req.UserID, deviceID)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "rotation enqueued"})
	case errors.Is(err, distribution.ErrRotationInProgress):
		s.writeError(w, http.StatusConflict, "rotation already in progress")
	case errors.Is(err, device.ErrDeviceNotFound):
		s.writeError(w, http.StatusNotFound, "device not found")
	default:
		s.logger.Error("key rotation failed", "device_id", deviceID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "rotation failed")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("writing response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
