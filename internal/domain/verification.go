package domain

// VerificationChallenge stores a hashed one-time code awaiting confirmation.
// PK: user_id, SK: channel ("email" | "phone"). The composite key makes
// issuing a new code for the same channel a plain upsert, so two live codes
// for one channel cannot exist. ExpiresAt doubles as the DynamoDB TTL.
type VerificationChallenge struct {
	UserID    string `json:"user_id" dynamodbav:"user_id"`
	Channel   string `json:"channel" dynamodbav:"channel"`
	CodeHash  string `json:"-" dynamodbav:"code_hash"`
	CreatedAt int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
}

// OTPSession tracks verify attempts for one pre-auth session, keyed by user.
// The counter lives server-side only; a client-supplied count is never
// trusted. Reset whenever a new pre-auth token is issued.
type OTPSession struct {
	UserID    string `dynamodbav:"user_id"`
	Attempts  int    `dynamodbav:"attempts"`
	ExpiresAt int64  `dynamodbav:"expires_at"` // Unix seconds, also the TTL
}
