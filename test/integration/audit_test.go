//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-auth-service/internal/model"
	"go-auth-service/internal/repository"
)

func TestAuditRepositoryFilters(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAuditRepository(db.Pool)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	entries := []model.AuditEntry{
		{Action: model.AuditActionSignup, OccurredAt: base, Status: model.AuditStatusSuccess, Subject: "a@example.com"},
		{Action: model.AuditActionLogin, OccurredAt: base.Add(time.Minute), Actor: model.AuditActor{IP: "10.0.0.2"}, Status: model.AuditStatusFailure, Subject: "a@example.com", Error: "email not verified"},
		{Action: model.AuditActionLogin, OccurredAt: base.Add(2 * time.Minute), Actor: model.AuditActor{UserID: "u-1"}, Status: model.AuditStatusSuccess, Subject: "a@example.com"},
	}
	for _, e := range entries {
		require.NoError(t, repo.Log(ctx, e))
	}

	items, total, err := repo.Query(ctx, model.AuditQuery{Action: "LOGIN", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "u-1", items[0].Actor.UserID)

	items, total, err = repo.Query(ctx, model.AuditQuery{Status: model.AuditStatusFailure, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "email not verified", items[0].Error)

	items, total, err = repo.Query(ctx, model.AuditQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, model.AuditActionSignup, items[0].Action)
}
