package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/service"
	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/keybridge/types"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

// --- enrollment ---

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req types.EnrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	initiatedBy := strings.TrimSpace(r.Header.Get("X-Operator"))
	if initiatedBy == "" {
		initiatedBy = "api"
	}

	resp, err := s.enroll.Start(r.Context(), req, initiatedBy)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, service.ErrInvalidEmployeeID):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, store.ErrEmployeeNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrEmployeeEnrolling):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		s.logger.Printf("http: enrollment start failed: %v", err)
		writeError(w, http.StatusBadGateway, "publish_failed", "could not reach the reader")
	}
}

func (s *Server) handleEnrollCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reader string `json:"reader"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Reader) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "reader is required")
		return
	}

	err := s.enroll.Cancel(r.Context(), req.Reader)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "reader": req.Reader})
	case errors.Is(err, service.ErrNoSession):
		writeError(w, http.StatusNotFound, "no_enrollment_session", err.Error())
	default:
		s.logger.Printf("http: enrollment cancel failed: %v", err)
		writeError(w, http.StatusBadGateway, "publish_failed", "could not reach the reader")
	}
}

// --- tags ---

func (s *Server) handleSaveTag(w http.ResponseWriter, r *http.Request) {
	var req types.SaveTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	resp, err := s.tags.SaveEnrolled(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, service.ErrNoSession):
		writeError(w, http.StatusBadRequest, "no_enrollment_session", err.Error())
	case errors.Is(err, store.ErrTagAssigned):
		writeError(w, http.StatusConflict, "tag_assigned", err.Error())
	default:
		s.logger.Printf("http: saving enrolled tag failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "saving tag failed")
	}
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	recs, err := s.tags.ListTags(r.Context())
	if err != nil {
		s.logger.Printf("http: listing tags failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "listing tags failed")
		return
	}

	type tagView struct {
		TagID      string `json:"tagId"`
		EmployeeID *int64 `json:"employeeId,omitempty"`
		HasSecret  bool   `json:"hasSecret"`
	}
	out := make([]tagView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, tagView{
			TagID:      rec.TagID,
			EmployeeID: rec.EmployeeID,
			HasSecret:  rec.Secret != nil,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": out})
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	err := s.tags.DeleteTag(r.Context(), r.PathValue("tagId"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, store.ErrTagNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Printf("http: deleting tag failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "deleting tag failed")
	}
}

func (s *Server) handleUpdateSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	err := s.tags.UpdateSecret(r.Context(), r.PathValue("tagId"), req.Secret)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, service.ErrMissingFields), errors.Is(err, service.ErrInvalidSecret):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, store.ErrTagNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Printf("http: updating tag secret failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "updating secret failed")
	}
}

// --- access ---

// handleCheckAccess answers hardware, so both ALLOW and DENY are 200
// responses; non-200 means the server itself failed.
func (s *Server) handleCheckAccess(w http.ResponseWriter, r *http.Request) {
	req := types.AccessCheckRequest{
		TagID:  r.PathValue("uid"),
		Reader: r.Header.Get("X-Reader"),
		Secret: r.Header.Get("X-Tag-Secret"),
	}
	if req.Reader == "" {
		req.Reader = r.URL.Query().Get("reader")
	}

	resp, err := s.access.Check(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, service.ErrInvalidTagID):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		s.logger.Printf("http: access check failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "access check failed")
	}
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.events.ListEvents(r.Context(), limit)
	if err != nil {
		s.logger.Printf("http: listing access events failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "listing events failed")
		return
	}

	type eventView struct {
		EventID    int64  `json:"eventId"`
		TagID      string `json:"tagId"`
		Reader     string `json:"reader,omitempty"`
		Granted    bool   `json:"granted"`
		Reason     string `json:"reason"`
		EmployeeID *int64 `json:"employeeId,omitempty"`
		DecidedAt  string `json:"decidedAt"`
	}
	out := make([]eventView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, eventView{
			EventID:    rec.EventID,
			TagID:      rec.TagID,
			Reader:     rec.Reader,
			Granted:    rec.Granted,
			Reason:     rec.Reason,
			EmployeeID: rec.EmployeeID,
			DecidedAt:  rec.DecidedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

// --- readers ---

type readerView struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
	Online   bool   `json:"online"`
	LastSeen string `json:"lastSeen,omitempty"`
}

func toReaderView(rec store.ReaderRecord) readerView {
	v := readerView{
		DeviceID: rec.DeviceID,
		Name:     rec.Name,
		Location: rec.Location,
		Online:   rec.Online,
	}
	if rec.LastSeen != nil {
		v.LastSeen = rec.LastSeen.Format(time.RFC3339)
	}
	return v
}

func (s *Server) handleListReaders(w http.ResponseWriter, r *http.Request) {
	recs, err := s.readers.ListReaders(r.Context())
	if err != nil {
		s.logger.Printf("http: listing readers failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "listing readers failed")
		return
	}
	out := make([]readerView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toReaderView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"readers": out})
}

func (s *Server) handleAddReader(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"deviceId"`
		Name     string `json:"name"`
		Location string `json:"location"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.DeviceID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "deviceId is required")
		return
	}

	rec := store.ReaderRecord{
		DeviceID: strings.TrimSpace(req.DeviceID),
		Name:     strings.TrimSpace(req.Name),
		Location: strings.TrimSpace(req.Location),
	}
	if err := s.readers.UpsertReader(r.Context(), rec); err != nil {
		s.logger.Printf("http: adding reader failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "adding reader failed")
		return
	}
	writeJSON(w, http.StatusCreated, toReaderView(rec))
}

func (s *Server) handleRenameReader(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	err := s.readers.RenameReader(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Name))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, store.ErrReaderNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Printf("http: renaming reader failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "renaming reader failed")
	}
}

func (s *Server) handleDeleteReader(w http.ResponseWriter, r *http.Request) {
	err := s.readers.DeleteReader(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, store.ErrReaderNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Printf("http: deleting reader failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "deleting reader failed")
	}
}

// --- controller commands / status ---

func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"deviceId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	err := s.gateway.TriggerScan(r.Context(), strings.TrimSpace(req.DeviceID))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, service.ErrNoTransport):
		writeError(w, http.StatusBadGateway, "no_transport", "no controller reachable")
	default:
		s.logger.Printf("http: trigger scan failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "trigger scan failed")
	}
}

func (s *Server) handleFanoutStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"namespaces": s.hub.Counts(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	brokerUp := s.broker != nil && s.broker.IsConnected()
	if !brokerUp {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"brokerConnected": brokerUp,
		"time":            time.Now().UTC().Format(time.RFC3339),
	})
}
