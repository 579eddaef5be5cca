package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/finora/finora/internal/test_utils"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/oauth2"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	code := m.Run()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Errorf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

func setupAuthRepository(t *testing.T) (context.Context, *AuthRepositoryImpl, int) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		require.NoError(t, pgContainer.Restore(ctx))
	})
	userId, err := test_utils.CreateTestUser(ctx, db, "google_user", "UTC")
	require.NoError(t, err)
	return ctx, NewAuthRepository(db), userId
}

func TestAuthRepositoryImpl_Flow(t *testing.T) {
	ctx, repo, userId := setupAuthRepository(t)

	t.Run("pending login has no token", func(t *testing.T) {
		require.NoError(t, repo.StartAuth(ctx, userId, "nonce-1"))

		token, err := repo.GetToken(ctx, userId)

		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("token stored by nonce", func(t *testing.T) {
		expiry := time.Date(2030, time.January, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, repo.StoreToken(ctx, "nonce-1", &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry}))

		token, err := repo.GetToken(ctx, userId)

		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, "a", token.AccessToken)
		assert.Equal(t, "r", token.RefreshToken)
		assert.True(t, expiry.Equal(token.Expiry))
	})

	t.Run("new login replaces previous authorization", func(t *testing.T) {
		require.NoError(t, repo.StartAuth(ctx, userId, "nonce-2"))

		token, err := repo.GetToken(ctx, userId)
		require.NoError(t, err)
		assert.Nil(t, token)
		assert.ErrorIs(t, repo.StoreToken(ctx, "nonce-1", &oauth2.Token{AccessToken: "stale"}), ErrUnknownNonce)
	})

	t.Run("logout removes authorization", func(t *testing.T) {
		require.NoError(t, repo.DeleteAuth(ctx, userId))

		token, err := repo.GetToken(ctx, userId)
		require.NoError(t, err)
		assert.Nil(t, token)
	})
}
