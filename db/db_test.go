package db

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, *Storage) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbx := sqlx.NewDb(mockDB, "sqlmock")
	return dbx, mock, NewStorage(dbx)
}
