package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims is the authenticated identity supplied by the external identity
// provider. Every ledger operation trusts only the UserID carried here.
type UserClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
