package domain

// CodePurpose partitions verification codes by the flow that issued them.
// The purpose determines the shape of the subject key and who may redeem.
type CodePurpose string

const (
	// PurposeLogin codes are keyed by the citizen's email and redeemable by anyone holding the value.
	PurposeLogin CodePurpose = "login"
	// PurposeAccountLink codes are keyed by an initiator:target pair and redeemable only by the initiator.
	PurposeAccountLink CodePurpose = "account_link"
)

// VerificationCode is a short-lived single-use 6-digit secret.
// PK: subject_key, SK: purpose — so at most one row (the active code) exists
// per (purpose, subject); issuing a new code overwrites the previous row.
// The value itself is stored as a bcrypt hash, never in clear.
// ExpiresAt is a Unix timestamp doubling as the DynamoDB TTL attribute.
type VerificationCode struct {
	SubjectKey     string      `json:"subject_key" dynamodbav:"subject_key"`
	Purpose        CodePurpose `json:"purpose" dynamodbav:"purpose"`
	CodeID         string      `json:"code_id" dynamodbav:"code_id"`
	CodeHash       string      `json:"-" dynamodbav:"code_hash"`
	Consumed       bool        `json:"consumed" dynamodbav:"consumed"`
	OwnerCitizenID string      `json:"owner_citizen_id,omitempty" dynamodbav:"owner_citizen_id"`
	AppName        string      `json:"app_name,omitempty" dynamodbav:"app_name"`
	CreatedAt      int64       `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt      int64       `json:"expires_at" dynamodbav:"expires_at"`
}
