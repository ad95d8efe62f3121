package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/helios-erp/helios/internal/permissions"
)

func newTestSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client, time.Hour), mr
}

func TestSessionRoundTrip(t *testing.T) {
	store, _ := newTestSessionStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)

	require.NoError(t, store.Destroy(ctx, token))
	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSessionUnknownToken(t *testing.T) {
	store, _ := newTestSessionStore(t)

	_, err := store.Resolve(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSessionExpiry(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 7)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = store.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestSessionSlidingExpiration(t *testing.T) {
	store, mr := newTestSessionStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 7)
	require.NoError(t, err)

	// Resolving halfway through the TTL resets it to the full hour.
	mr.FastForward(40 * time.Minute)
	_, err = store.Resolve(ctx, token)
	require.NoError(t, err)

	mr.FastForward(40 * time.Minute)
	userID, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(7), userID)
}

func TestAuthenticateMiddleware(t *testing.T) {
	store, _ := newTestSessionStore(t)
	token, err := store.Create(context.Background(), 99)
	require.NoError(t, err)

	var gotID int64
	var gotOK bool
	handler := Authenticate(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = permissions.UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, gotOK)
	require.Equal(t, int64(99), gotID)

	// Missing and bogus tokens pass through anonymous.
	gotOK = false
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, gotOK)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, gotOK)
}
