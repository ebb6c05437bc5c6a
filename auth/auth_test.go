package auth_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/book-rental/auth"
	"github.com/warp/book-rental/rental"
	"github.com/warp/book-rental/rental/store"
)

func newService(t *testing.T) *auth.Service {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	return auth.NewService(store.NewMemory(), tokens)
}

func TestPassword_TooManyBytes(t *testing.T) {
	// GIVEN: 72 characters that encode to 144 bytes
	password := strings.Repeat("é", 72)

	// WHEN: Hashed
	_, err := auth.HashPassword(password)

	// THEN: It is rejected as input, not as a bcrypt failure
	var validation *rental.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "password", validation.Field)

	_, err = auth.HashPassword(strings.Repeat("a", auth.MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestPassword_HashAndVerify(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, auth.VerifyPassword(hash, "correct horse"))
	assert.ErrorIs(t, auth.VerifyPassword(hash, "wrong horse"), rental.ErrUnauthorized)
	assert.ErrorIs(t, auth.VerifyPassword("", "anything"), rental.ErrUnauthorized)

	_, err = auth.HashPassword("short")
	var validation *rental.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "password", validation.Field)
}

func TestTokens_RoundTrip(t *testing.T) {
	// GIVEN: An admin user
	tokens, err := auth.NewTokens("s3cret", time.Hour)
	require.NoError(t, err)
	admin := rental.User{ID: uuid.New(), Role: rental.RoleAdmin}

	// WHEN: A token is issued and parsed back from a header
	token, expires, err := tokens.Issue(admin)
	require.NoError(t, err)
	p, err := tokens.ParseBearer("Bearer " + token)

	// THEN: The principal matches
	require.NoError(t, err)
	assert.Equal(t, admin.ID, p.UserID)
	assert.True(t, p.IsAdmin())
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)
}

func TestTokens_Rejects(t *testing.T) {
	tokens, err := auth.NewTokens("s3cret", time.Hour)
	require.NoError(t, err)
	user := rental.User{ID: uuid.New(), Role: rental.RoleUser}

	t.Run("other secret", func(t *testing.T) {
		other, err := auth.NewTokens("different", time.Hour)
		require.NoError(t, err)
		token, _, err := other.Issue(user)
		require.NoError(t, err)

		_, err = tokens.Parse(token)
		assert.ErrorIs(t, err, rental.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		claims := auth.Claims{
			Role: rental.RoleUser,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "book-rental",
				Subject:   user.ID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
		require.NoError(t, err)

		_, err = tokens.Parse(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": user.ID.String()}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = tokens.Parse(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := tokens.ParseBearer("Bearer ")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	_, err = auth.NewTokens(" ", time.Hour)
	assert.ErrorIs(t, err, auth.ErrEmptySecret)
}

func TestService_RegisterAndLogin(t *testing.T) {
	// GIVEN: A registered user
	svc := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, auth.Registration{FullName: " Ada Lovelace ", Email: "Ada@Example.com", Password: "analytical"})
	require.NoError(t, err)
	assert.Equal(t, rental.RoleUser, u.Role)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada Lovelace", u.FullName)

	// WHEN: They log in with a differently cased email
	res, err := svc.Login(ctx, "ADA@example.com", "analytical")

	// THEN: A token for them is returned
	require.NoError(t, err)
	p, err := svc.Tokens().Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.False(t, p.IsAdmin())

	_, err = svc.Login(ctx, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, rental.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "analytical")
	assert.ErrorIs(t, err, rental.ErrUnauthorized)
}

func TestService_Register_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, auth.Registration{FullName: "A", Email: "a@example.com", Password: "longenough"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    auth.Registration
		field string
	}{
		{"missing name", auth.Registration{Email: "b@example.com", Password: "longenough"}, "fullName"},
		{"bad email", auth.Registration{FullName: "B", Email: "not-an-email", Password: "longenough"}, "email"},
		{"email without domain", auth.Registration{FullName: "B", Email: "b@", Password: "longenough"}, "email"},
		{"display name form", auth.Registration{FullName: "B", Email: "B <b@example.com>", Password: "longenough"}, "email"},
		{"short password", auth.Registration{FullName: "B", Email: "b@example.com", Password: "short"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			var validation *rental.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}

	_, err = svc.Register(ctx, auth.Registration{FullName: "C", Email: "A@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, rental.ErrConflict)
}

func TestService_Profile(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	first, err := svc.Register(ctx, auth.Registration{FullName: "First", Email: "first@example.com", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, auth.Registration{FullName: "Second", Email: "second@example.com", Password: "password2"})
	require.NoError(t, err)

	name := "First Renamed"
	updated, err := svc.UpdateProfile(ctx, first.ID, auth.ProfileUpdate{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.FullName)
	assert.Equal(t, "first@example.com", updated.Email)

	taken := "second@example.com"
	_, err = svc.UpdateProfile(ctx, first.ID, auth.ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, rental.ErrConflict)

	got, err := svc.GetProfile(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.FullName)
}

func TestService_ChangePassword(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, auth.Registration{FullName: "U", Email: "u@example.com", Password: "old-password"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u.ID, "not-the-password", "new-password")
	assert.ErrorIs(t, err, rental.ErrUnauthorized)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "old-password", "new-password"))
	_, err = svc.Login(ctx, "u@example.com", "new-password")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, "u@example.com", "old-password")
	assert.ErrorIs(t, err, rental.ErrUnauthorized)
}

// pausingStore holds the first LockUser inside a transaction until resumed.
type pausingStore struct {
	*store.Memory
	armed  atomic.Bool
	locked chan struct{}
	resume chan struct{}
}

func (p *pausingStore) WithTx(ctx context.Context, fn func(rental.Store) error) error {
	return p.Memory.WithTx(ctx, func(s rental.Store) error {
		return fn(&pausingTx{Store: s, parent: p})
	})
}

type pausingTx struct {
	rental.Store
	parent *pausingStore
}

func (tx *pausingTx) LockUser(ctx context.Context, id uuid.UUID) (*rental.User, error) {
	u, err := tx.Store.LockUser(ctx, id)
	if tx.parent.armed.CompareAndSwap(true, false) {
		close(tx.parent.locked)
		<-tx.parent.resume
	}
	return u, err
}

func TestService_ConcurrentProfileAndPasswordChange(t *testing.T) {
	// GIVEN: An account
	users := &pausingStore{Memory: store.NewMemory(), locked: make(chan struct{}), resume: make(chan struct{})}
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)
	svc := auth.NewService(users, tokens)
	ctx := context.Background()
	u, err := svc.Register(ctx, auth.Registration{FullName: "Vera", Email: "vera@example.com", Password: "old-password"})
	require.NoError(t, err)

	// WHEN: A profile update has read the row and a password change starts meanwhile
	users.armed.Store(true)
	var wg sync.WaitGroup
	var profileErr, passwordErr error
	name := "Vera Renamed"
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, profileErr = svc.UpdateProfile(ctx, u.ID, auth.ProfileUpdate{FullName: &name})
	}()
	<-users.locked

	wg.Add(1)
	go func() {
		defer wg.Done()
		passwordErr = svc.ChangePassword(ctx, u.ID, "old-password", "new-password")
	}()
	time.Sleep(50 * time.Millisecond)
	close(users.resume)
	wg.Wait()

	// THEN: Both changes survive
	require.NoError(t, profileErr)
	require.NoError(t, passwordErr)
	_, err = svc.Login(ctx, "vera@example.com", "new-password")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, "vera@example.com", "old-password")
	assert.ErrorIs(t, err, rental.ErrUnauthorized)
	got, err := svc.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.FullName)
}
