package domain

import "time"

// LinkRequestStatus is the lifecycle state of an account-link attempt.
type LinkRequestStatus string

const (
	LinkStatusPending   LinkRequestStatus = "pending"
	LinkStatusVerified  LinkRequestStatus = "verified"
	LinkStatusExpired   LinkRequestStatus = "expired"
	LinkStatusCancelled LinkRequestStatus = "cancelled"
)

// LinkRequest is the working record of an in-progress account link.
// PK: initiator_citizen_id — a citizen has at most one row, so a new
// initiate naturally supersedes the previous pending request.
type LinkRequest struct {
	InitiatorCitizenID string            `json:"initiator_citizen_id" dynamodbav:"initiator_citizen_id"`
	RequestID          string            `json:"id" dynamodbav:"request_id"`
	TargetCitizenID    string            `json:"target_citizen_id" dynamodbav:"target_citizen_id"`
	TargetEmail        string            `json:"target_email" dynamodbav:"target_email"`
	Status             LinkRequestStatus `json:"status" dynamodbav:"status"`
	CreatedAt          time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt          time.Time         `json:"updated" dynamodbav:"updated_at"`
}

// PairKey is the verification-code subject for this request. It embeds
// both sides so a code issued for one pairing can never redeem another.
func (r *LinkRequest) PairKey() string {
	return r.InitiatorCitizenID + ":" + r.TargetCitizenID
}
