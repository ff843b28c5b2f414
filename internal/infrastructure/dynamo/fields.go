package dynamo

// DynamoDB attribute names used in update expressions.
const (
	fieldStatus    = "status"
	fieldUpdatedAt = "updated_at"
)
