package client

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string
}

// AccountID reads the user id from an access token without verifying it.
// The server checks the signature; the client only needs the id to derive
// the account salt.
func AccountID(token string) (string, error) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}
	if claims.UserID == "" {
		return "", errors.New("access token has no user id")
	}
	return claims.UserID, nil
}
