// Package auth owns customer and admin accounts, session tokens, and the
// validators the HTTP layer uses to resolve a bearer token to an Identity.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrUnauthorized   = errors.New("auth: unauthorized")
	ErrForbidden      = errors.New("auth: forbidden")
	ErrInvalidAccount = errors.New("auth: invalid account")
	ErrEmailTaken     = errors.New("auth: email already registered")
	ErrInvalidRole    = errors.New("auth: invalid role")
	ErrUserNotFound   = errors.New("auth: user not found")
)

// Role gates which routes an identity may reach.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

// Identity is the authenticated principal behind a request.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Validator resolves a bearer token to an Identity.
type Validator interface {
	Validate(token string) (Identity, error)
}

// ServiceIdentity is the built-in principal used by StaticToken.
var ServiceIdentity = Identity{
	UserID: "service.admin",
	Email:  "",
	Name:   "service",
	Role:   RoleAdmin,
}

// StaticToken authenticates one shared automation token as ServiceIdentity.
// An empty configured token never authenticates.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) (Identity, error) {
	if s.Token == "" {
		return Identity{}, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return Identity{}, ErrUnauthorized
	}
	return ServiceIdentity, nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) (Identity, error)

func (f FuncValidator) Validate(token string) (Identity, error) {
	return f(token)
}

// Chain tries each validator in order and returns the first success.
type Chain []Validator

func (c Chain) Validate(token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrUnauthorized
	}
	for _, v := range c {
		if v == nil {
			continue
		}
		if id, err := v.Validate(token); err == nil {
			return id, nil
		}
	}
	return Identity{}, ErrUnauthorized
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
