package user

import (
	"context"
	"os"
	"testing"

	"github.com/finora/finora/internal/test_utils"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
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

func setupTestRepository(t *testing.T) (context.Context, *UserRepoImpl) {
	ctx := context.Background()
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		require.NoError(t, pgContainer.Restore(ctx))
	})
	return ctx, NewUserRepo(db)
}

func TestUserRepoImpl_CreateAndGet(t *testing.T) {
	// given
	ctx, repo := setupTestRepository(t)
	u := User{Uid: "uid-1", Username: "anna", DisplayName: "Anna", Settings: Settings{Timezone: "Europe/Warsaw", Currency: "PLN"}}

	// when
	id, err := repo.CreateUser(ctx, u)

	// then
	require.NoError(t, err)
	byId, err := repo.GetUser(ctx, id)
	require.NoError(t, err)
	byUid, err := repo.GetUserByUid(ctx, "uid-1")
	require.NoError(t, err)
	u.Id = id
	assert.Equal(t, u, byId)
	assert.Equal(t, u, byUid)
}

func TestUserRepoImpl_NotFound(t *testing.T) {
	ctx, repo := setupTestRepository(t)

	_, err := repo.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetUserByUid(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.UpdateUser(ctx, 9999, User{})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepoImpl_UpdateAndList(t *testing.T) {
	// given
	ctx, repo := setupTestRepository(t)
	firstId, err := repo.CreateUser(ctx, User{Uid: "a", Username: "a", DisplayName: "A"})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, User{Uid: "b", Username: "b", DisplayName: "B"})
	require.NoError(t, err)

	// when
	updated, err := repo.UpdateUser(ctx, firstId, User{DisplayName: "A2", Settings: Settings{Timezone: "UTC", Currency: "EUR"}})

	// then
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.DisplayName)
	assert.Equal(t, "EUR", updated.Settings.Currency)
	users, err := repo.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	available, err := repo.IsUsernameAvailable(ctx, "a")
	require.NoError(t, err)
	assert.False(t, available)
}
