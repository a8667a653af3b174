package pricing

import (
	"encoding/json"
	"time"
)

// AuditEntry records one change to a customer contract. Entries are
// append-only; the engine writes them through a collaborator and never reads
// them while pricing.
type AuditEntry struct {
	ID         int64
	ContractID int64
	ChangedBy  string
	Action     string
	OldValues  json.RawMessage
	NewValues  json.RawMessage
	CreatedAt  time.Time
}
