package transport

import (
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// OwnerFromToken reads the subject of a bearer token without verifying it.
// The client never holds the signing key; the server does the verification.
func OwnerFromToken(token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.New("bad subject")
	}
	return id, nil
}

// SealingSalt is the argon2id salt for an owner. Every device of the owner
// derives the same key from the same passphrase.
func SealingSalt(token string) []byte {
	if id, err := OwnerFromToken(token); err == nil {
		return []byte("clipsync/" + id.String())
	}
	return []byte("clipsync/local")
}
