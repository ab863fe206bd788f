package domain

const VerificationSignup = "signup"

// Verification is a pending one-time sign-in link.
// PK: email, SK: type. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Verification struct {
	Email        string `json:"email" dynamodbav:"email"`
	Type         string `json:"type" dynamodbav:"type"`
	Code         string `json:"-" dynamodbav:"code"`
	Role         string `json:"role" dynamodbav:"role"`
	PasswordHash string `json:"-" dynamodbav:"password_hash"`
	ExpiresAt    int64  `json:"expires_at" dynamodbav:"expires_at"`
}
