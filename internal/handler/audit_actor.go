package handler

import (
	"net/http"

	"go-auth-service/internal/middleware"
	"go-auth-service/internal/model"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		actor.UserID = claims.UserID
	}
	return actor
}
