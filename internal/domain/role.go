package domain

import "strings"

const (
	RoleScholar = "scholar"
	RoleCSO     = "cso"
)

// NormalizeIdentity lower-cases and trims an email so set membership and recipient
// checks compare like with like.
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
