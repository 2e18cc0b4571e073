package dynamo

// DynamoDB attribute names used in key, condition and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldIdentity  = "identity"
	fieldCodeID    = "code_id"
	fieldAttempts  = "attempts"
	fieldExpiresAt = "expires_at" // TTL attribute, epoch seconds
)
