package auth

import (
	"crypto/subtle"
	"fmt"

	serrors "go.pilab.hu/stats/errors"
	"golang.org/x/crypto/bcrypt"
)

// CredentialChecker validates the administrative username/password pair
// presented to the token endpoint. Only a bcrypt hash of the configured
// password is kept after construction.
type CredentialChecker struct {
	username     []byte
	passwordHash []byte
}

// NewCredentialChecker hashes password with the given bcrypt cost.
// Default cost is bcrypt.DefaultCost if cost <= 0.
func NewCredentialChecker(username, password string, cost int) (*CredentialChecker, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return &CredentialChecker{username: []byte(username), passwordHash: hash}, nil
}

// Check returns an InvalidCredentials error unless both values match.
func (c *CredentialChecker) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare(c.username, []byte(username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return serrors.NewInvalidCredentials("invalid credentials")
	}
	return nil
}
