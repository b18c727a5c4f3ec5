package executor

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/sqlmapper-go/mapping"
	"github.com/satishbabariya/sqlmapper-go/query/cache"
	"github.com/satishbabariya/sqlmapper-go/types"
)

func TestCachingExecutor_CommitPublishesToSharedCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := types.NewRegistry()
	shared := cache.NewSyncCache("users")
	stmt := newStatement(t, registry, "users.byStatus", mapping.Select,
		"SELECT id FROM users WHERE status = #{status}",
		mapping.WithCache(shared))

	mock.ExpectQuery("SELECT id FROM users").
		WithArgs("open").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	first := NewCachingExecutor(NewSimpleExecutor(db, registry))
	got1, err := first.Query(context.Background(), stmt, map[string]any{"status": "open"}, mapping.DefaultBounds)
	require.NoError(t, err)
	require.NoError(t, first.Commit(context.Background()))

	second := NewCachingExecutor(NewSimpleExecutor(db, registry))
	got2, err := second.Query(context.Background(), stmt, map[string]any{"status": "open"}, mapping.DefaultBounds)
	require.NoError(t, err)

	assert.Equal(t, got1, got2)
	assert.Equal(t, 1, shared.Size())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingExecutor_UncommittedResultsStayLocal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := types.NewRegistry()
	shared := cache.NewSyncCache("users")
	stmt := newStatement(t, registry, "users.all", mapping.Select,
		"SELECT id FROM users",
		mapping.WithCache(shared))

	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	first := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = first.Query(context.Background(), stmt, nil, mapping.DefaultBounds)
	require.NoError(t, err)

	second := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = second.Query(context.Background(), stmt, nil, mapping.DefaultBounds)
	require.NoError(t, err)

	assert.Equal(t, 0, shared.Size())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingExecutor_UpdateFlushesOnCommit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := types.NewRegistry()
	shared := cache.NewSyncCache("users")
	sel := newStatement(t, registry, "users.all", mapping.Select,
		"SELECT id FROM users",
		mapping.WithCache(shared))
	upd := newStatement(t, registry, "users.touch", mapping.Update,
		"UPDATE users SET touched = 1",
		mapping.WithCache(shared))

	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	reader := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = reader.Query(context.Background(), sel, nil, mapping.DefaultBounds)
	require.NoError(t, err)
	require.NoError(t, reader.Commit(context.Background()))
	assert.Equal(t, 1, shared.Size())

	writer := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = writer.Update(context.Background(), upd, nil)
	require.NoError(t, err)
	require.NoError(t, writer.Commit(context.Background()))
	assert.Equal(t, 0, shared.Size())

	again := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = again.Query(context.Background(), sel, nil, mapping.DefaultBounds)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingExecutor_RollbackDiscardsStagedResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := types.NewRegistry()
	shared := cache.NewSyncCache("users")
	stmt := newStatement(t, registry, "users.all", mapping.Select,
		"SELECT id FROM users",
		mapping.WithCache(shared))

	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	exec := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = exec.Query(context.Background(), stmt, nil, mapping.DefaultBounds)
	require.NoError(t, err)
	require.NoError(t, exec.Rollback(context.Background()))

	assert.Equal(t, 0, shared.Size())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingExecutor_CleanCloseSettlesOverlay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := types.NewRegistry()
	shared := cache.NewSyncCache("users")
	stmt := newStatement(t, registry, "users.all", mapping.Select,
		"SELECT id FROM users",
		mapping.WithCache(shared))

	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	exec := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = exec.Query(context.Background(), stmt, nil, mapping.DefaultBounds)
	require.NoError(t, err)
	require.NoError(t, exec.Close(false))

	assert.Equal(t, 1, shared.Size())
	assert.True(t, exec.Closed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingExecutor_RejectsOutParamsOnCachedStatements(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := types.NewRegistry()
	shared := cache.NewSyncCache("reports")
	stmt := newStatement(t, registry, "reports.generate", mapping.Select,
		"SELECT generate(#{code, mode=OUT, goType=string})",
		mapping.WithCache(shared))

	exec := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = exec.Query(context.Background(), stmt, nil, mapping.DefaultBounds)
	require.Error(t, err)

	var perr *cache.ProtocolError
	assert.ErrorAs(t, err, &perr)
}

func TestCachingExecutor_SkipsCacheWhenDisabled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	registry := types.NewRegistry()
	shared := cache.NewSyncCache("users")
	stmt := newStatement(t, registry, "users.fresh", mapping.Select,
		"SELECT id FROM users",
		mapping.WithCache(shared),
		mapping.WithUseCache(false))

	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT id FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	exec := NewCachingExecutor(NewSimpleExecutor(db, registry))
	_, err = exec.Query(context.Background(), stmt, nil, mapping.DefaultBounds)
	require.NoError(t, err)
	require.NoError(t, exec.Commit(context.Background()))

	_, err = exec.Query(context.Background(), stmt, nil, mapping.DefaultBounds)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
