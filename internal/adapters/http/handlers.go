package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jobrunner/catena/internal/application"
	"github.com/jobrunner/catena/internal/catalog"
)

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":             boolToStatus(details.Healthy),
		"ready":              details.Ready,
		"members_composed":   details.MembersComposed,
		"composition_errors": details.CompositionErrors,
		"components":         details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleCatalog returns the composed catalog summary with its root members.
func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	rootIDs := s.catalog.Roots()

	roots := make([]map[string]interface{}, 0, len(rootIDs))
	for _, id := range rootIDs {
		member, ok := s.catalog.Member(id)
		if !ok {
			continue
		}
		roots = append(roots, s.formatMemberSummary(member))
	}

	response := map[string]interface{}{
		"roots":        roots,
		"member_count": s.catalog.MemberCount(),
	}
	if s.catalog.HasComposed() {
		response["composed_at"] = s.catalog.ComposedAt()
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListMembers returns all registered catalog members.
func (s *Server) handleListMembers(w http.ResponseWriter, _ *http.Request) {
	members := s.catalog.Members()

	response := make([]map[string]interface{}, len(members))
	for i, m := range members {
		response[i] = s.formatMemberSummary(m)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"members": response,
		"count":   len(members),
	})
}

// handleGetMember returns one member with its composed traits.
func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	memberID := vars["memberId"]

	member, ok := s.catalog.Member(memberID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Member not found")
		return
	}

	s.writeJSON(w, http.StatusOK, s.formatMember(member))
}

// handleRecompose handles the recompose trigger endpoint.
func (s *Server) handleRecompose(w http.ResponseWriter, r *http.Request) {
	if s.recompose == nil {
		s.writeError(w, http.StatusNotFound, "Recompose service not available")
		return
	}

	result, err := s.recompose.TriggerRecompose(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("recompose failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Recompose failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// formatMemberSummary formats a member without its full traits.
func (s *Server) formatMemberSummary(m *catalog.Member) map[string]interface{} {
	traits := m.Traits()

	summary := map[string]interface{}{
		"id":       m.ID,
		"type":     m.Type,
		"name":     traits.Name,
		"is_group": m.IsGroup(),
	}
	if m.IsGroup() {
		summary["child_count"] = len(m.Children())
	}
	return summary
}

// formatMember formats a member with its composed traits and children.
func (s *Server) formatMember(m *catalog.Member) map[string]interface{} {
	traits := m.Traits()

	out := map[string]interface{}{
		"id":       m.ID,
		"type":     m.Type,
		"name":     traits.Name,
		"is_group": m.IsGroup(),
		"traits":   traits,
	}
	if m.IsGroup() {
		out["children"] = m.Children()
	}
	return out
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
