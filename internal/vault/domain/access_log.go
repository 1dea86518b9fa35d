package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccessLogEntry records one credential operation for compliance and security
// monitoring: who accessed what, when, whether it succeeded, and why.
//
// Entries are immutable and append-only; nothing in the codebase updates or
// deletes them except the retention cleanup command. A failed audit write
// fails the enclosing operation (fail-closed), because an unaudited credential
// access is a compliance violation.
type AccessLogEntry struct {
	ID           uuid.UUID
	CredentialID *uuid.UUID // Nil for operations without a matched credential (e.g., rotation)
	UserID       string
	Operation    Operation
	Principal    string // Accessing service or operator (e.g., "extraction-worker")
	Reason       string // Human-readable reason for the access
	Success      bool
	Error        string // Error text when Success is false
	CreatedAt    time.Time
}
