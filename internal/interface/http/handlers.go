// Package http implements the REST API for the learning analytics service.
package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/application/command"
	"github.com/brightpath-edu/learning-analytics/internal/application/query"
	"github.com/brightpath-edu/learning-analytics/internal/domain/identity"
	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
	"github.com/brightpath-edu/learning-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Learning Analytics API",
		"version":     "v1",
		"description": "Learning progress and mastery analytics for the tutoring platform",
		"endpoints": map[string]string{
			"health":       "/health",
			"interactions": "/api/v1/interactions",
			"usage":        "/api/v1/usage/events",
			"progress":     "/api/v1/students/{id}/progress",
			"analytics":    "/api/v1/analytics/class",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// recordInteractionRequest is the request body for POST /api/v1/interactions.
type recordInteractionRequest struct {
	StudentID      string `json:"student_id,omitempty"`
	Subject        string `json:"subject"`
	Grade          string `json:"grade"`
	Topic          string `json:"topic"`
	Type           string `json:"type"`
	IsCorrect      *bool  `json:"is_correct,omitempty"`
	TextbookID     string `json:"textbook_id,omitempty"`
	ChapterID      string `json:"chapter_id,omitempty"`
	TopicID        string `json:"topic_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// recordInteractionResponse is the response body for POST /api/v1/interactions.
type recordInteractionResponse struct {
	InteractionID string    `json:"interaction_id"`
	MasteryLevel  string    `json:"mastery_level"`
	LevelChanged  bool      `json:"level_changed"`
	StudentLevel  string    `json:"student_level"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// handleRecordInteraction handles POST /api/v1/interactions
func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordInteractionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Interaction recording not configured")
		return
	}

	var req recordInteractionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	// An omitted student_id means the caller records for themselves.
	if req.StudentID == "" {
		if id, ok := identity.FromContext(r.Context()); ok {
			req.StudentID = id.StudentID.String()
		}
	}

	if !interaction.Type(req.Type).IsValid() {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Unknown interaction type: "+req.Type)
		return
	}

	cmd := command.RecordInteractionCommand{
		StudentID: req.StudentID,
		Subject:   req.Subject,
		Grade:     req.Grade,
		Topic:     req.Topic,
		Type:      interaction.Type(req.Type),
		IsCorrect: req.IsCorrect,
		Refs: interaction.Refs{
			TextbookID:     req.TextbookID,
			ChapterID:      req.ChapterID,
			TopicID:        req.TopicID,
			ConversationID: req.ConversationID,
		},
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.RecordInteractionHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, recordInteractionResponse{
		InteractionID: result.InteractionID.String(),
		MasteryLevel:  result.MasteryLevel.String(),
		LevelChanged:  result.LevelChanged,
		StudentLevel:  result.StudentLevel.String(),
		RecordedAt:    result.RecordedAt,
	})
}

// recordUsageEventRequest is the request body for POST /api/v1/usage/events.
type recordUsageEventRequest struct {
	StudentID string `json:"student_id,omitempty"`
	Type      string `json:"type"`
	Model     string `json:"model,omitempty"`
}

// recordUsageEventResponse is the response body for POST /api/v1/usage/events.
type recordUsageEventResponse struct {
	UsageID    string    `json:"usage_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// handleRecordUsageEvent handles POST /api/v1/usage/events
func (s *Server) handleRecordUsageEvent(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordUsageEventHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Usage recording not configured")
		return
	}

	var req recordUsageEventRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.StudentID == "" {
		if id, ok := identity.FromContext(r.Context()); ok {
			req.StudentID = id.StudentID.String()
		}
	}

	if !usage.EventType(req.Type).IsValid() {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Unknown usage event type: "+req.Type)
		return
	}

	cmd := command.RecordUsageEventCommand{
		StudentID: req.StudentID,
		Type:      usage.EventType(req.Type),
		Model:     req.Model,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.deps.RecordUsageEventHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, recordUsageEventResponse{
		UsageID:    result.UsageID.String(),
		RecordedAt: result.RecordedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT READ MODEL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetInteractions handles GET /api/v1/students/{id}/interactions
func (s *Server) handleGetInteractions(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetInteractionsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Interactions handler not configured")
		return
	}

	q := query.GetInteractionsQuery{
		StudentID: pathStudentID(r),
		Limit:     getQueryParamInt(r, "limit", 50),
		Offset:    getQueryParamInt(r, "offset", 0),
	}

	result, err := s.deps.GetInteractionsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetMastery handles GET /api/v1/students/{id}/mastery
func (s *Server) handleGetMastery(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetMasteryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Mastery handler not configured")
		return
	}

	q := query.GetMasteryQuery{StudentID: pathStudentID(r)}

	result, err := s.deps.GetMasteryHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetWeakTopics handles GET /api/v1/students/{id}/mastery/weak
func (s *Server) handleGetWeakTopics(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetWeakTopicsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Weak topics handler not configured")
		return
	}

	q := query.GetWeakTopicsQuery{StudentID: pathStudentID(r)}

	result, err := s.deps.GetWeakTopicsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetProgress handles GET /api/v1/students/{id}/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetProgressQuery{StudentID: pathStudentID(r)}

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetClassProgress handles GET /api/v1/analytics/class
func (s *Server) handleGetClassProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetClassProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Class progress handler not configured")
		return
	}

	q := query.GetClassProgressQuery{
		SortBy: getQueryParam(r, "sort_by", ""),
	}

	result, err := s.deps.GetClassProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStudentsBehind handles GET /api/v1/analytics/students-behind
func (s *Server) handleGetStudentsBehind(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentsBehindHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Students behind handler not configured")
		return
	}

	result, err := s.deps.GetStudentsBehindHandler.Handle(r.Context(), query.GetStudentsBehindQuery{})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetUsageStats handles GET /api/v1/analytics/usage
func (s *Server) handleGetUsageStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUsageStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Usage stats handler not configured")
		return
	}

	result, err := s.deps.GetUsageStatsHandler.Handle(r.Context(), query.GetUsageStatsQuery{})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCheckAnomalies handles GET /api/v1/analytics/anomalies
func (s *Server) handleCheckAnomalies(w http.ResponseWriter, r *http.Request) {
	if s.deps.CheckAnomaliesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Anomaly handler not configured")
		return
	}

	result, err := s.deps.CheckAnomaliesHandler.Handle(r.Context(), query.CheckAnomaliesQuery{})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// pathStudentID returns the {id} path segment. The literal "me" maps to
// an empty student ID, which the query layer resolves to the caller.
func pathStudentID(r *http.Request) string {
	id := r.PathValue("id")
	if id == "me" {
		return ""
	}
	return id
}

// decodeBody decodes a JSON request body into dst. Writes a 400 response
// and returns false when the body is malformed.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		s.logger.Warn("malformed request body",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return false
	}

	return true
}
