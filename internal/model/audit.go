package model

import "time"

const (
	AuditActionSignup      = "signup"
	AuditActionLogin       = "login"
	AuditActionVerifyEmail = "verify_email"
	AuditActionRefresh     = "refresh"

	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

type AuditActor struct {
	UserID string `json:"user_id,omitempty"`
	IP     string `json:"ip,omitempty"`
}

// AuditEntry records the outcome of one auth operation. Subject is the
// email the request named, never a credential.
type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt time.Time  `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Subject    string     `json:"subject,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action  string
	ActorID string
	Status  string
	Page    int
	Limit   int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
