package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

type jwtClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTDecoder extracts identity claims from a JWT without verifying its
// signature, mirroring how a browser client reads its own token. Signature
// checks belong to the services that accept the token.
type JWTDecoder struct{}

// Decode parses token and returns its identity claims.
func (JWTDecoder) Decode(token string) (Claims, error) {
	var claims jwtClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, &TokenDecodeError{Err: err}
	}
	if claims.Email == "" {
		return Claims{}, &TokenDecodeError{Err: fmt.Errorf("missing email claim")}
	}
	return Claims{Email: claims.Email, Username: claims.Username}, nil
}
