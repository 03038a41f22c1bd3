package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestStore_OpenLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(queryOpenLoad)).
		WithArgs("kafka:raw-events", started).
		WillReturnRows(sqlmock.NewRows([]string{"load_id"}).AddRow(int64(7)))

	loadID, err := NewManifestStore(db).OpenLoad(context.Background(), "kafka:raw-events", started)
	require.NoError(t, err)
	assert.Equal(t, int64(7), loadID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestStore_CloseLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	done := time.Date(2026, 8, 20, 9, 5, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(queryCloseLoad)).
		WithArgs(int64(7), int64(100), int64(3), done).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewManifestStore(db).CloseLoad(context.Background(), 7, 100, 3, done)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestStore_CloseLoad_Unknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	done := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(queryCloseLoad)).
		WithArgs(int64(99), int64(0), int64(0), done).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewManifestStore(db).CloseLoad(context.Background(), 99, 0, 0, done)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such load")
}
