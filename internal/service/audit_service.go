package service

import (
	"context"
	"log/slog"
	"time"

	"go-auth-service/internal/model"
)

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error)
}

// AuditService records auth outcomes. A failed write is logged and never
// fails the operation being audited.
type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, subject string, opErr error) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.now().UTC(),
		Actor:      actor,
		Status:     model.AuditStatusSuccess,
		Subject:    subject,
	}
	if opErr != nil {
		entry.Status = model.AuditStatusFailure
		entry.Error = opErr.Error()
	}

	// The request may already be cancelled once the response is decided.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := s.store.Log(writeCtx, entry); err != nil {
		slog.Warn("failed to write audit entry", "action", action, "error", err)
	}
}

// maxAuditPage keeps (page-1)*limit well inside a positive OFFSET.
const maxAuditPage = 100_000

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Page > maxAuditPage {
		query.Page = maxAuditPage
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	items, total, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Meta{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}
	return items, model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}, nil
}
