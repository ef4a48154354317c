//go:build integration_test || all_tests

package users_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/2beens/fitsense/internal/db"
	"github.com/2beens/fitsense/internal/users"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepoSetup(t *testing.T) (*users.Repo, func()) {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	t.Logf("using postgres host: %s", host)

	dbPool, err := db.NewDBPool(timeoutCtx, db.NewDBPoolParams{
		DBHost:         host,
		DBPort:         "5432",
		DBName:         "fitsense_db",
		TracingEnabled: false,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(timeoutCtx, dbPool))

	return users.NewRepo(dbPool), func() {
		dbPool.Close()
	}
}

func TestRepo_AddGet(t *testing.T) {
	ctx := context.Background()
	repo, shutdown := testRepoSetup(t)
	defer shutdown()

	email := gofakeit.Email()
	before := time.Now().Add(-time.Minute)
	added, err := repo.Add(ctx, &users.User{
		Email:        "  " + email + " ",
		Name:         gofakeit.Name(),
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.NotZero(t, added.ID)
	assert.True(t, before.Before(added.CreatedAt))

	byID, err := repo.Get(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, added.Name, byID.Name)
	assert.Equal(t, "hash", byID.PasswordHash)

	byEmail, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, added.ID, byEmail.ID)

	_, err = repo.Add(ctx, &users.User{Email: email, Name: "dup", PasswordHash: "hash"})
	assert.ErrorIs(t, err, users.ErrEmailTaken)

	_, err = repo.Get(ctx, -1)
	assert.ErrorIs(t, err, users.ErrUserNotFound)
	_, err = repo.GetByEmail(ctx, "nobody-"+gofakeit.UUID()+"@fitsense.io")
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}
