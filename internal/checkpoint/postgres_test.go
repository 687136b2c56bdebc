package checkpoint

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewPostgresStore(db, "")
	require.NoError(t, err)
	return store, mock
}

func TestPostgresStoreRejectsUnsafeTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgresStore(db, "checkpoints; DROP TABLE feeds")
	assert.Error(t, err)
}

func TestPostgresStoreLoadMissingThread(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT state FROM conversation_checkpoints WHERE thread_id = $1`)).
		WithArgs("thread-1").
		WillReturnRows(sqlmock.NewRows([]string{"state"}))

	state, err := store.Load(context.Background(), "thread-1")
	require.NoError(t, err)
	assert.Nil(t, state)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLoadDecodesState(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT state FROM conversation_checkpoints WHERE thread_id = $1`)).
		WithArgs("thread-1").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(
			[]byte(`{"thread_id":"thread-1","messages":[{"role":"user","content":"hi","created_at":"2025-08-01T00:00:00Z"}],"turns":1}`),
		))

	state, err := store.Load(context.Background(), "thread-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Len(t, state.Messages, 1)
	assert.NotNil(t, state.Records)
	assert.Equal(t, 1, state.Turns)
}

func TestPostgresStoreLoadWrapsErrors(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT state FROM conversation_checkpoints`).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Load(context.Background(), "thread-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select checkpoint")
}

func TestPostgresStoreSaveUpserts(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	state := sampleState("thread-1")
	mock.ExpectExec(`INSERT INTO conversation_checkpoints .* ON CONFLICT \(thread_id\) DO UPDATE SET`).
		WithArgs("thread-1", sqlmock.AnyArg(), 1, state.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), state))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS conversation_checkpoints`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
