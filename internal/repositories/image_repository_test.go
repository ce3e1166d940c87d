package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ferp/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var imageRowColumns = []string{"id", "title", "description", "url", "public_id", "created_at"}

func setupImageTestRepository(t *testing.T) (*imageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return NewImageRepository(db, zap.NewNop()), mock, func() { db.Close() }
}

func TestImageRepository_Create(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	image := &models.Image{
		ID:        "id-1",
		Title:     "cat",
		URL:       "http://localhost:8080/api/media/image/cat.png",
		PublicID:  "cat.png",
		CreatedAt: now,
	}

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError bool
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO images`).
					WithArgs("id-1", "cat", "", "http://localhost:8080/api/media/image/cat.png", "cat.png", now).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "duplicate public id",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO images`).
					WillReturnError(errors.New("Error 1062: Duplicate entry"))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupImageTestRepository(t)
			defer cleanup()

			tt.setupMock(mock)

			err := repo.Create(context.Background(), image)
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestImageRepository_GetAll(t *testing.T) {
	now := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		repo, mock, cleanup := setupImageTestRepository(t)
		defer cleanup()

		rows := sqlmock.NewRows(imageRowColumns).
			AddRow("id-1", "cat", "", "http://x/api/media/image/cat.png", "cat.png", now)
		mock.ExpectQuery(`SELECT .+ FROM images ORDER BY created_at DESC`).WillReturnRows(rows)

		images, err := repo.GetAll(context.Background())
		require.NoError(t, err)
		require.Len(t, images, 1)
		assert.Equal(t, "cat.png", images[0].PublicID)
		assert.Equal(t, "http://x/api/media/image/cat.png", images[0].URL)
	})

	t.Run("empty", func(t *testing.T) {
		repo, mock, cleanup := setupImageTestRepository(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT .+ FROM images`).WillReturnRows(sqlmock.NewRows(imageRowColumns))

		images, err := repo.GetAll(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, images)
		assert.Empty(t, images)
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock, cleanup := setupImageTestRepository(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT .+ FROM images`).WillReturnError(errors.New("boom"))

		_, err := repo.GetAll(context.Background())
		assert.Error(t, err)
	})
}

func TestImageRepository_GetByPublicID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock, cleanup := setupImageTestRepository(t)
		defer cleanup()

		rows := sqlmock.NewRows(imageRowColumns).
			AddRow("id-1", "cat", "", "u", "cat.png", time.Now())
		mock.ExpectQuery(`SELECT .+ FROM images WHERE public_id = \?`).WithArgs("cat.png").WillReturnRows(rows)

		image, err := repo.GetByPublicID(context.Background(), "cat.png")
		require.NoError(t, err)
		assert.Equal(t, "cat", image.Title)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, cleanup := setupImageTestRepository(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT .+ FROM images`).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByPublicID(context.Background(), "nope.png")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
