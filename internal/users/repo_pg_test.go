package users

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "email", "full_name", "is_glp1", "tags", "created_at", "updated_at"}

func TestPGRepoGetByIDDecodesTags(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("user-1", "ana@example.com", nil, true, []byte(`["glp1","runner"]`), now, now))

	user, err := repo.GetByID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Empty(t, user.FullName)
	assert.True(t, user.Metadata.IsGLP1)
	assert.Equal(t, []string{"glp1", "runner"}, user.Metadata.Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepoUpdateMetadataUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO users (.+) ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs("guest:g1", false, []byte(`[]`)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("guest:g1", "", nil, false, []byte(`[]`), now, now))

	user, err := repo.UpdateMetadata(context.Background(), "guest:g1", Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "guest:g1", user.ID)
	assert.Empty(t, user.Metadata.Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}
