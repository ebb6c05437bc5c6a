/*
service.go - Accounts: registration, login and profile management

PURPOSE:
  Owns the User records the rental engine only checks for existence.
  Passwords are bcrypt hashes; login returns an HS256 token carrying the
  user's role, which the HTTP layer uses for admin checks.

RULES:
  - Emails are unique after normalization (trim + lowercase)
  - Self-registration always creates a User; Admins are seeded
  - Changing the password requires the current one
  - Profile and password changes lock the user row, so concurrent edits
    of one account apply one after the other

SEE ALSO:
  - token.go: Token issue/verify
  - api/middleware.go: Authenticate, RequireAdmin
*/
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warp/book-rental/rental"
)

var validate = validator.New()

// Service manages accounts.
type Service struct {
	users  rental.TxStore
	tokens *Tokens
	now    func() time.Time
}

// NewService creates an account service.
func NewService(users rental.TxStore, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens, now: time.Now}
}

// Tokens returns the token issuer (for middleware).
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Registration is the input to Register.
type Registration struct {
	FullName string
	Email    string
	Password string
}

// LoginResult is a signed-in user.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      rental.User
}

// ProfileUpdate changes the fields that are set.
type ProfileUpdate struct {
	FullName *string
	Email    *string
}

// Register creates a User account.
func (s *Service) Register(ctx context.Context, in Registration) (*rental.User, error) {
	return s.CreateAccount(ctx, in, rental.RoleUser)
}

// CreateAccount creates an account with an explicit role (seeding admins).
func (s *Service) CreateAccount(ctx context.Context, in Registration, role rental.Role) (*rental.User, error) {
	if !role.Valid() {
		return nil, &rental.ValidationError{Field: "role", Message: "must be User or Admin"}
	}
	name, err := validName(in.FullName)
	if err != nil {
		return nil, err
	}
	email, err := validEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := rental.User{
		ID:           uuid.New(),
		FullName:     name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if rental.IsNotFound(err) {
		return nil, rental.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	token, expires, err := s.tokens.Issue(*u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expires, User: *u}, nil
}

// GetProfile returns the user's account.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*rental.User, error) {
	return s.users.GetUser(ctx, userID)
}

// UpdateProfile changes name and/or email.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*rental.User, error) {
	var name, email string
	var err error
	if update.FullName != nil {
		if name, err = validName(*update.FullName); err != nil {
			return nil, err
		}
	}
	if update.Email != nil {
		if email, err = validEmail(*update.Email); err != nil {
			return nil, err
		}
	}

	var u *rental.User
	err = s.users.WithTx(ctx, func(st rental.Store) error {
		var err error
		if u, err = st.LockUser(ctx, userID); err != nil {
			return err
		}
		if update.FullName != nil {
			u.FullName = name
		}
		if update.Email != nil {
			u.Email = email
		}
		return st.UpdateUser(ctx, *u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	return s.users.WithTx(ctx, func(st rental.Store) error {
		u, err := st.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := VerifyPassword(u.PasswordHash, current); err != nil {
			return err
		}
		if u.PasswordHash, err = HashPassword(next); err != nil {
			return err
		}
		return st.UpdateUser(ctx, *u)
	})
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &rental.ValidationError{Field: "fullName", Message: "is required"}
	}
	return name, nil
}

func validEmail(email string) (string, error) {
	email = rental.NormalizeEmail(email)
	if email == "" {
		return "", &rental.ValidationError{Field: "email", Message: "is required"}
	}
	if err := validate.Var(email, "email"); err != nil {
		return "", &rental.ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return email, nil
}
