package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/danmuck/vetbook/internal/store"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	usersCollection = "users"
	emailIndex      = "users.email"

	minPasswordLen = 8
	maxPasswordLen = 72
)

// User is the persisted account record.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// Registration is the input to Register.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// Session is a freshly issued login session.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

// Accounts manages users and verifies their session tokens.
type Accounts struct {
	store  *store.Store
	tokens *TokenIssuer
	cost   int
	now    func() time.Time

	// compared against on unknown emails so login timing does not leak existence
	dummyHash []byte
}

type AccountsOption func(*Accounts)

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithHashCost(cost int) AccountsOption {
	return func(a *Accounts) { a.cost = cost }
}

func WithClock(now func() time.Time) AccountsOption {
	return func(a *Accounts) { a.now = now }
}

func NewAccounts(st *store.Store, tokens *TokenIssuer, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		store:  st,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("vetbook-dummy-password"), a.cost)
	return a
}

// NormalizeEmail lower-cases and validates an email address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidAccount)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: invalid email %q", ErrInvalidAccount, raw)
	}
	return email, nil
}

// Register creates a customer account.
func (a *Accounts) Register(reg Registration) (User, error) {
	return a.create(reg, RoleCustomer)
}

// EnsureAdmin creates an admin account for email unless one already exists.
// An existing account with that email is promoted.
func (a *Accounts) EnsureAdmin(email, password, name string) (User, bool, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return User{}, false, err
	}
	existing, err := a.userByEmail(normalized)
	switch {
	case err == nil:
		if existing.Role == RoleAdmin {
			return existing, false, nil
		}
		promoted, err := a.SetRole(existing.ID, RoleAdmin)
		return promoted, false, err
	case !errors.Is(err, ErrUserNotFound):
		return User{}, false, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	u, err := a.create(Registration{Email: normalized, Password: password, Name: name}, RoleAdmin)
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func (a *Accounts) create(reg Registration, role Role) (User, error) {
	email, err := NormalizeEmail(reg.Email)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidAccount)
	}
	if len(name) > 80 {
		return User{}, fmt.Errorf("%w: name too long", ErrInvalidAccount)
	}
	if len(reg.Password) < minPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidAccount, minPasswordLen)
	}
	if len(reg.Password) > maxPasswordLen {
		return User{}, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidAccount, maxPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), a.cost)
	if err != nil {
		return User{}, fmt.Errorf("auth: hash password: %w", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Phone:        strings.TrimSpace(reg.Phone),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    a.now().UTC(),
	}
	err = a.store.Update(func(tx *store.Tx) error {
		if err := store.PutIndex(tx, emailIndex, u.Email, u.ID); err != nil {
			if errors.Is(err, store.ErrIndexTaken) {
				return ErrEmailTaken
			}
			return err
		}
		return store.Put(tx, usersCollection, u.ID, u)
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Login checks credentials and issues a session token.
func (a *Accounts) Login(email, password string) (Session, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return Session{}, ErrUnauthorized
	}
	u, err := a.userByEmail(normalized)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return Session{}, ErrUnauthorized
	}
	id := u.Identity()
	token, expires, err := a.tokens.Issue(id)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, Identity: id}, nil
}

// Validate verifies a session token and resolves the current account state.
func (a *Accounts) Validate(token string) (Identity, error) {
	claimed, err := a.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	u, err := a.User(claimed.UserID)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	return u.Identity(), nil
}

// User loads an account by id.
func (a *Accounts) User(id string) (User, error) {
	var u User
	err := a.store.View(func(tx *store.Tx) error {
		return store.Get(tx, usersCollection, id, &u)
	})
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (a *Accounts) userByEmail(email string) (User, error) {
	var u User
	err := a.store.View(func(tx *store.Tx) error {
		id, err := store.LookupIndex(tx, emailIndex, email)
		if err != nil {
			return err
		}
		return store.Get(tx, usersCollection, id, &u)
	})
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// SetRole changes the role of an account.
func (a *Accounts) SetRole(userID string, role Role) (User, error) {
	if _, err := ParseRole(string(role)); err != nil {
		return User{}, err
	}
	var u User
	err := a.store.Update(func(tx *store.Tx) error {
		if err := store.Get(tx, usersCollection, userID, &u); err != nil {
			return err
		}
		u.Role = role
		return store.Put(tx, usersCollection, u.ID, u)
	})
	if errors.Is(err, store.ErrNotFound) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// ListUsers returns all accounts ordered by email.
func (a *Accounts) ListUsers() ([]User, error) {
	var users []User
	err := a.store.View(func(tx *store.Tx) error {
		var err error
		users, err = store.List[User](tx, usersCollection)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}
