package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/authcore-io/authcore/auth"
	autherrors "github.com/authcore-io/authcore/internal/errors"
)

// outcomeStatus maps each terminal outcome to its HTTP status. MFA-required
// and rate-limited are intentionally distinguishable; the rest of the
// failures stay generic.
var outcomeStatus = map[auth.Outcome]int{
	auth.OutcomeSuccess:              http.StatusOK,
	auth.OutcomeInvalidCredentials:   http.StatusUnauthorized,
	auth.OutcomeAccountLocked:        http.StatusLocked,
	auth.OutcomeMFARequired:          http.StatusUnauthorized,
	auth.OutcomeRiskAssessmentFailed: http.StatusForbidden,
	auth.OutcomeRateLimited:          http.StatusTooManyRequests,
}

func (s *Server) AuthenticateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.AuthenticationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if req.IPAddress == "" {
			req.IPAddress = clientIP(r)
		}
		if req.UserAgent == "" {
			req.UserAgent = r.UserAgent()
		}

		result, err := s.deps.Auth.Authenticate(r.Context(), &req)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}

		status, ok := outcomeStatus[result.Outcome]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, result)
	}
}

func (s *Server) AgentAuthenticateHandler() http.HandlerFunc {
	type agentRequest struct {
		APIKey          string `json:"api_key"`
		CertFingerprint string `json:"cert_fingerprint,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Agents == nil {
			writeError(w, http.StatusNotFound, "agent authentication not enabled")
			return
		}
		var req agentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		result := s.deps.Agents.AuthenticateAgent(r.Context(), req.APIKey, req.CertFingerprint)
		status := http.StatusOK
		if !result.Valid {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, result)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	type refreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "refresh_token is required")
			return
		}
		pair, err := s.deps.Tokens.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			if autherrors.Retryable(err) {
				writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *Server) RevokeHandler() http.HandlerFunc {
	type revokeRequest struct {
		Token  string `json:"token"`
		Reason string `json:"reason,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req revokeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
			writeError(w, http.StatusBadRequest, "token is required")
			return
		}
		if req.Reason == "" {
			req.Reason = "revoked by caller"
		}
		// RFC 7009: revocation of an unknown token is not an error.
		if err := s.deps.Tokens.Revoke(r.Context(), req.Token, req.Reason); err != nil && autherrors.Retryable(err) {
			writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) IntrospectHandler() http.HandlerFunc {
	type introspectRequest struct {
		Token string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req introspectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		writeJSON(w, http.StatusOK, s.deps.Tokens.Introspect(r.Context(), req.Token))
	}
}

func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jwks, err := s.deps.Tokens.JWKS()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to build key set")
			return
		}
		writeJSON(w, http.StatusOK, jwks)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// writeAuthError maps orchestrator errors: validation failures are the
// caller's fault, dependency failures are retryable, anything else is opaque.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case autherrors.Is(err, autherrors.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case autherrors.Retryable(err):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		s.logger.Error().Err(err).Msg("authentication failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// clientIP extracts the caller address, preferring the forwarding header set
// by the edge proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
