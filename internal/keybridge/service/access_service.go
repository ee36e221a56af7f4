package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/store"
	"github.com/accesslab/keybridge/internal/keybridge/types"
	"github.com/accesslab/keybridge/internal/rtfanout"
)

var ErrInvalidTagID = errors.New("tag_id is required")

// AccessService decides whether a scanned tag is granted physical
// access. The decision is a pure function of the tag record, the
// supplied secret and the bound employee; everything after the decision
// (audit event, fan-out, work tracking) is side effect and never alters
// the outcome already computed.
type AccessService struct {
	tags      store.TagStore
	employees store.EmployeeStore
	events    store.AccessEventStore
	tracker   *WorkTracker
	fanout    Broadcaster
	logger    *log.Logger
}

func NewAccessService(
	tags store.TagStore,
	employees store.EmployeeStore,
	events store.AccessEventStore,
	tracker *WorkTracker,
	fanout Broadcaster,
	logger *log.Logger,
) *AccessService {
	return &AccessService{
		tags:      tags,
		employees: employees,
		events:    events,
		tracker:   tracker,
		fanout:    fanout,
		logger:    logger,
	}
}

// Check runs the decision chain: tag must exist; if the tag carries a
// secret the supplied one must match; if the tag is bound to an
// employee that employee must exist. First failing check wins.
func (s *AccessService) Check(ctx context.Context, req types.AccessCheckRequest) (types.AccessCheckResponse, error) {
	now := time.Now().UTC()

	tagID := strings.TrimSpace(req.TagID)
	if tagID == "" {
		return types.AccessCheckResponse{}, ErrInvalidTagID
	}

	granted, reason, employeeID := s.decide(ctx, tagID, req.Secret)

	resp := types.AccessCheckResponse{
		Granted:    granted,
		Reason:     reason,
		TagID:      tagID,
		EmployeeID: employeeID,
		ServerTime: now.Format(time.RFC3339Nano),
	}

	s.recordAndPublish(ctx, req, resp, now)

	if granted && employeeID != nil && s.tracker != nil {
		s.tracker.HandleAllowed(ctx, *employeeID, req.Reader)
	}

	return resp, nil
}

func (s *AccessService) decide(ctx context.Context, tagID, suppliedSecret string) (bool, string, *int64) {
	tag, err := s.tags.GetTag(ctx, tagID)
	if errors.Is(err, store.ErrTagNotFound) {
		return false, types.ReasonTagNotRegistered, nil
	}
	if err != nil {
		// Fail closed, but record what actually happened: a store error
		// is not the same as an unknown tag.
		s.logger.Printf("access: tag lookup failed for %s: %v", tagID, err)
		return false, types.ReasonLookupFailed, nil
	}

	if tag.Secret != nil {
		if suppliedSecret == "" {
			return false, types.ReasonSecretRequired, tag.EmployeeID
		}
		if subtle.ConstantTimeCompare([]byte(*tag.Secret), []byte(suppliedSecret)) != 1 {
			return false, types.ReasonInvalidSecret, tag.EmployeeID
		}
	}

	if tag.EmployeeID != nil {
		if _, err := s.employees.GetEmployee(ctx, *tag.EmployeeID); err != nil {
			if errors.Is(err, store.ErrEmployeeNotFound) {
				return false, types.ReasonEmployeeNotFound, tag.EmployeeID
			}
			s.logger.Printf("access: employee lookup failed for %d: %v", *tag.EmployeeID, err)
			return false, types.ReasonLookupFailed, tag.EmployeeID
		}
	}

	return true, types.ReasonAllowed, tag.EmployeeID
}

// recordAndPublish writes the audit event and pushes the enriched
// access-log broadcast. Failures here are logged, never returned; a
// decision already made must reach the caller unchanged.
func (s *AccessService) recordAndPublish(ctx context.Context, req types.AccessCheckRequest, resp types.AccessCheckResponse, decidedAt time.Time) {
	eventID, err := s.events.RecordEvent(ctx, store.AccessEventRecord{
		TagID:      resp.TagID,
		Reader:     strings.TrimSpace(req.Reader),
		Granted:    resp.Granted,
		Reason:     resp.Reason,
		EmployeeID: resp.EmployeeID,
		DecidedAt:  decidedAt,
	})
	if err != nil {
		s.logger.Printf("access: recording event for tag %s failed: %v", resp.TagID, err)
	}

	ev := types.AccessLogEvent{
		EventID:      eventID,
		TagID:        resp.TagID,
		Reader:       strings.TrimSpace(req.Reader),
		Timestamp:    decidedAt.Format(time.RFC3339),
		Granted:      resp.Granted,
		Reason:       resp.Reason,
		EmployeeID:   resp.EmployeeID,
		EmployeeName: "unknown",
	}
	if info, err := s.employees.InfoByTag(ctx, resp.TagID); err == nil {
		ev.EmployeeName = info.FirstName + " " + info.LastName
		ev.JobTitle = info.JobTitle
		ev.Department = info.Department
	}

	s.fanout.Broadcast(rtfanout.NamespaceAccessLogs, "new-log", ev)
}
