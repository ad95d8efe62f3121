package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryUserRepo struct {
	users  map[int64]User
	nextID int64
	roles  map[int64]int64
	extras map[int64][]int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		users:  make(map[int64]User),
		nextID: 1,
		roles:  make(map[int64]int64),
		extras: make(map[int64][]int64),
	}
}

func (r *memoryUserRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryUserRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryUserRepo) CreateUser(ctx context.Context, u User) (User, error) {
	u.ID = r.nextID
	r.nextID++
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryUserRepo) SetRole(ctx context.Context, userID, roleID int64) error {
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.RoleID = roleID
	r.users[userID] = u
	return nil
}

func (r *memoryUserRepo) GrantExtra(ctx context.Context, userID, permissionID int64) error {
	r.extras[userID] = append(r.extras[userID], permissionID)
	return nil
}

func (r *memoryUserRepo) RevokeExtra(ctx context.Context, userID, permissionID int64) error {
	kept := r.extras[userID][:0]
	for _, id := range r.extras[userID] {
		if id != permissionID {
			kept = append(kept, id)
		}
	}
	r.extras[userID] = kept
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	u, err := svc.CreateUser(context.Background(), "  Admin@Helios.Local ", "Admin", "secret123", 1)
	require.NoError(t, err)
	require.Equal(t, "admin@helios.local", u.Email)
	require.True(t, u.IsActive)
	require.NotEqual(t, "secret123", u.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret123")))
}

func TestCreateUserRequiresEmail(t *testing.T) {
	svc := NewService(newMemoryUserRepo())

	_, err := svc.CreateUser(context.Background(), "   ", "Nobody", "pw", 1)
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)
	created, err := svc.CreateUser(context.Background(), "op@helios.local", "Operator", "operator123", 2)
	require.NoError(t, err)

	u, err := svc.Authenticate(context.Background(), "OP@helios.local", "operator123")
	require.NoError(t, err)
	require.Equal(t, created.ID, u.ID)

	_, err = svc.Authenticate(context.Background(), "op@helios.local", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "ghost@helios.local", "operator123")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRejectsInactive(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)
	u, err := svc.CreateUser(context.Background(), "off@helios.local", "Off", "pw123456", 1)
	require.NoError(t, err)
	u.IsActive = false
	repo.users[u.ID] = u

	_, err = svc.Authenticate(context.Background(), "off@helios.local", "pw123456")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
