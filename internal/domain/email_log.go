package domain

import "time"

// Email events recorded in the dispatch audit trail.
const (
	EmailEventLoginCode        = "auth_citizen_by_code"
	EmailEventThirdPartyCode   = "auth_citizen_third_party"
	EmailEventClusterJoinCode  = "account_cluster_verification"
)

// EmailLog records one outbound code dispatch. The code value itself is
// never logged; EntityID points at the record the mail was sent for.
type EmailLog struct {
	EmailLogID string    `json:"id" dynamodbav:"email_log_id"`
	Receiver   string    `json:"receiver" dynamodbav:"receiver"`
	Event      string    `json:"event" dynamodbav:"event"`
	CitizenID  string    `json:"citizen_id,omitempty" dynamodbav:"citizen_id"`
	EntityType string    `json:"entity_type,omitempty" dynamodbav:"entity_type"`
	EntityID   string    `json:"entity_id,omitempty" dynamodbav:"entity_id"`
	Status     string    `json:"status" dynamodbav:"status"` // "sent" | "failed"
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}
