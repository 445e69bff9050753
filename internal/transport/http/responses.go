package http

import (
	"time"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/audit"
)

// auditEntryResponse is the wire shape for one audit entry.
type auditEntryResponse struct {
	ID            string             `json:"id"`
	TenantID      string             `json:"tenant_id"`
	ActorUserID   *string            `json:"actor_user_id,omitempty"`
	Action        string             `json:"action"`
	EntityName    string             `json:"entity_name"`
	EntityID      string             `json:"entity_id"`
	FieldChanges  audit.FieldChanges `json:"field_changes,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

func toAuditResponses(entries []*audit.Entry) []auditEntryResponse {
	responses := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp := auditEntryResponse{
			ID:            entry.ID.String(),
			TenantID:      entry.TenantID.String(),
			Action:        entry.Action,
			EntityName:    entry.EntityName,
			EntityID:      entry.EntityID.String(),
			FieldChanges:  entry.FieldChanges,
			CorrelationID: entry.CorrelationID,
			CreatedAt:     entry.CreatedAt,
		}
		if entry.ActorUserID != nil {
			actor := entry.ActorUserID.String()
			resp.ActorUserID = &actor
		}
		responses = append(responses, resp)
	}
	return responses
}
