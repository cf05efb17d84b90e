package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = errors.New("invalid username or password")
	errInvalidToken       = errors.New("invalid or expired token")
)

// credentialStore abstracts credential lookup so the fixed demo set can be
// swapped for a real backend without touching the service logic.
type credentialStore interface {
	lookup(username string) (passwordHash []byte, ok bool)
}

// demoCredentials holds the fixed demo users, hashed once at process start.
type demoCredentials struct {
	hashes map[string][]byte
}

func newDemoCredentials() (*demoCredentials, error) {
	pairs := map[string]string{
		"admin": "admin123",
		"user":  "user123",
		"demo":  "demo123",
	}
	c := &demoCredentials{hashes: make(map[string][]byte, len(pairs))}
	for username, password := range pairs {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		c.hashes[username] = hash
	}
	return c, nil
}

func (c *demoCredentials) lookup(username string) ([]byte, bool) {
	hash, ok := c.hashes[username]
	return hash, ok
}

// dummyHash is compared against when the username is unknown so that a
// failed lookup costs the same as a failed password check.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcrypt.DefaultCost)

// authenticate checks the credential pair and issues a signed token.
// Unknown users and wrong passwords fail with the same error.
func (app *application) authenticate(username, password string) (string, error) {
	hash, ok := app.credentials.lookup(username)
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", errInvalidCredentials
	}
	return app.issueToken(username)
}

func (app *application) issueToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(app.config.jwt.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(app.config.jwt.secret))
}

// verifyToken validates the signature and expiry of a bearer token and
// returns its subject. There is no refresh or revocation; expired tokens
// require a fresh login.
func (app *application) verifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(app.config.jwt.secret), nil
	})
	if err != nil {
		return "", errInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errInvalidToken
	}
	return claims.Subject, nil
}
