package models

import "time"

// AuditLog représente un log d'audit pour tracer les actions
type AuditLog struct {
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
}

// Actions auditées
const (
	ActionBookCreate  = "book.create"
	ActionOrderPlace  = "order.place"
	ActionOrderStatus = "order.status"
	ActionUserSignup  = "user.signup"
	ActionUserLogin   = "user.login"
)
