package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"datakit/core/database"
	"datakit/core/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type account struct {
	ID      string
	Name    string
	Balance int64
}

var accountDesc = entity.MustDescriptor[account]("accounts",
	entity.String("ID",
		func(a *account) string { return a.ID },
		func(a *account, v string) { a.ID = v },
	).Length(36).Identity(),
	entity.String("Name",
		func(a *account) string { return a.Name },
		func(a *account, v string) { a.Name = v },
	).Length(32),
	entity.Long("Balance",
		func(a *account) int64 { return a.Balance },
		func(a *account, v int64) { a.Balance = v },
	),
)

func setupRepo(t *testing.T, style database.UpsertStyle, dialect string) (*Repository[account], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	conn := database.NewWithDB(db, style, dialect, zap.NewNop())
	return New(conn, accountDesc, zap.NewNop()), mock
}

const (
	duplicateKeySQL = "INSERT INTO accounts (id, name, balance) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name), balance = VALUES(balance)"
	replaceSQL      = "INSERT OR REPLACE INTO accounts (id, name, balance) VALUES (?, ?, ?)"
	fallbackUpdate  = "UPDATE accounts SET name = ?, balance = ? WHERE id = ?"
	fallbackInsert  = "INSERT INTO accounts (id, name, balance) VALUES (?, ?, ?)"
)

func TestSave(t *testing.T) {
	alice := &account{ID: "u-1", Name: "Alice", Balance: 100}

	t.Run("MySQL Duplicate Key", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectExec(regexp.QuoteMeta(duplicateKeySQL)).
			WithArgs("u-1", "Alice", int64(100)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), alice))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SQLite Replace", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertReplace, "sqlite")

		mock.ExpectExec(regexp.QuoteMeta(replaceSQL)).
			WithArgs("u-1", "Alice", int64(100)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), alice))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Fallback Update Hit", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertFallback, "generic")

		mock.ExpectExec(regexp.QuoteMeta(fallbackUpdate)).
			WithArgs("Alice", int64(100), "u-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), alice))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Fallback Inserts When Absent", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertFallback, "generic")

		mock.ExpectExec(regexp.QuoteMeta(fallbackUpdate)).
			WithArgs("Alice", int64(100), "u-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(fallbackInsert)).
			WithArgs("u-1", "Alice", int64(100)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), alice))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Fallback Retries Update On Duplicate Key", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertFallback, "generic")

		mock.ExpectExec(regexp.QuoteMeta(fallbackUpdate)).
			WithArgs("Alice", int64(100), "u-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		// A racing writer inserted the row between our UPDATE and INSERT.
		mock.ExpectExec(regexp.QuoteMeta(fallbackInsert)).
			WithArgs("u-1", "Alice", int64(100)).
			WillReturnError(errors.New("UNIQUE constraint failed: accounts.id"))
		mock.ExpectExec(regexp.QuoteMeta(fallbackUpdate)).
			WithArgs("Alice", int64(100), "u-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), alice))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Statement Error Surfaces", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectExec(regexp.QuoteMeta(duplicateKeySQL)).
			WillReturnError(errors.New("table gone"))

		assert.Error(t, repo.Save(context.Background(), alice))
	})
}

// An entity may map nothing beyond its identity. Every upsert strategy
// still has to produce well-formed SQL for it.
type session struct {
	ID string
}

var sessionDesc = entity.MustDescriptor[session]("sessions",
	entity.String("ID",
		func(s *session) string { return s.ID },
		func(s *session, v string) { s.ID = v },
	).Length(36).Identity(),
)

func setupSessionRepo(t *testing.T, style database.UpsertStyle, dialect string) (*Repository[session], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	conn := database.NewWithDB(db, style, dialect, zap.NewNop())
	return New(conn, sessionDesc, zap.NewNop()), mock
}

func TestSaveIdentityOnlyEntity(t *testing.T) {
	sess := &session{ID: "s-1"}

	t.Run("MySQL Duplicate Key Touches The Key", func(t *testing.T) {
		repo, mock := setupSessionRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions (id) VALUES (?) ON DUPLICATE KEY UPDATE id = id")).
			WithArgs("s-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), sess))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SQLite Replace", func(t *testing.T) {
		repo, mock := setupSessionRepo(t, database.UpsertReplace, "sqlite")

		mock.ExpectExec(regexp.QuoteMeta("INSERT OR REPLACE INTO sessions (id) VALUES (?)")).
			WithArgs("s-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), sess))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Fallback Inserts Directly", func(t *testing.T) {
		repo, mock := setupSessionRepo(t, database.UpsertFallback, "generic")

		// No non-identity columns, so no UPDATE leg runs.
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions (id) VALUES (?)")).
			WithArgs("s-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), sess))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Fallback Treats Existing Row As Success", func(t *testing.T) {
		repo, mock := setupSessionRepo(t, database.UpsertFallback, "generic")

		// Presence is the whole desired state; a duplicate key means the
		// row is already there.
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions (id) VALUES (?)")).
			WithArgs("s-1").
			WillReturnError(errors.New("UNIQUE constraint failed: sessions.id"))

		require.NoError(t, repo.Save(context.Background(), sess))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// Saving twice with the same identity issues the same single-statement
// upsert both times; no existence check ever runs, so there is nothing
// to race and no second row to create.
func TestSaveIdempotent(t *testing.T) {
	repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

	mock.ExpectExec(regexp.QuoteMeta(duplicateKeySQL)).
		WithArgs("u-1", "Alice", int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(duplicateKeySQL)).
		WithArgs("u-1", "Alice", int64(150)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.Save(context.Background(), &account{ID: "u-1", Name: "Alice", Balance: 100}))
	require.NoError(t, repo.Save(context.Background(), &account{ID: "u-1", Name: "Alice", Balance: 150}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAll(t *testing.T) {
	batch := []*account{
		{ID: "u-1", Name: "Alice", Balance: 100},
		{ID: "u-2", Name: "Bob", Balance: 50},
	}

	t.Run("Commits Whole Batch", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(duplicateKeySQL)).
			WithArgs("u-1", "Alice", int64(100)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(duplicateKeySQL)).
			WithArgs("u-2", "Bob", int64(50)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.SaveAll(context.Background(), batch))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls Back On Any Failure", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(duplicateKeySQL)).
			WithArgs("u-1", "Alice", int64(100)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(duplicateKeySQL)).
			WithArgs("u-2", "Bob", int64(50)).
			WillReturnError(errors.New("value too long for name"))
		mock.ExpectRollback()

		assert.Error(t, repo.SaveAll(context.Background(), batch))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty Batch Is A No-Op", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")
		require.NoError(t, repo.SaveAll(context.Background(), nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteAll(t *testing.T) {
	batch := []*account{
		{ID: "u-1", Name: "Alice"},
		{ID: "u-2", Name: "Bob"},
	}

	t.Run("One Prepared Statement Per Batch", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectBegin()
		prep := mock.ExpectPrepare(regexp.QuoteMeta("DELETE FROM accounts WHERE id = ?"))
		prep.ExpectExec().WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs("u-2").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.DeleteAll(context.Background(), batch))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls Back On Failure", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectBegin()
		prep := mock.ExpectPrepare(regexp.QuoteMeta("DELETE FROM accounts WHERE id = ?"))
		prep.ExpectExec().WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
		prep.ExpectExec().WithArgs("u-2").WillReturnError(errors.New("deadlock"))
		mock.ExpectRollback()

		assert.Error(t, repo.DeleteAll(context.Background(), batch))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindByID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		rows := sqlmock.NewRows([]string{"id", "name", "balance"}).
			AddRow("u-1", "Alice", int64(150))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM accounts WHERE id = ? LIMIT 1")).
			WithArgs("u-1").
			WillReturnRows(rows)

		got, err := repo.FindByID(context.Background(), "u-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, &account{ID: "u-1", Name: "Alice", Balance: 150}, got)
	})

	t.Run("Missing Is Nil Not Error", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM accounts WHERE id = ? LIMIT 1")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "balance"}))

		got, err := repo.FindByID(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestFindAll(t *testing.T) {
	repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

	rows := sqlmock.NewRows([]string{"id", "name", "balance"}).
		AddRow("u-1", "Alice", int64(100)).
		AddRow("u-2", "Bob", int64(50))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM accounts")).WillReturnRows(rows)

	got, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Bob", got[1].Name)
}

func TestExistsByID(t *testing.T) {
	t.Run("Empty Table Is False With No Error", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM accounts WHERE id = ? LIMIT 1")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		exists, err := repo.ExistsByID(context.Background(), "missing")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Present", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM accounts WHERE id = ? LIMIT 1")).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))

		exists, err := repo.ExistsByID(context.Background(), "u-1")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestCount(t *testing.T) {
	repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(5)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestDeleteByID(t *testing.T) {
	repo, mock := setupRepo(t, database.UpsertDuplicateKey, "mysql")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM accounts WHERE id = ?")).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestTablePrefix(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	conn := database.NewWithDB(db, database.UpsertDuplicateKey, "mysql", zap.NewNop())
	repo := New(conn, accountDesc, zap.NewNop(), WithTablePrefix[account]("srv1_"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM srv1_accounts")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(0)))

	_, err = repo.Count(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable(t *testing.T) {
	t.Run("Adds Missing Column", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertReplace, "sqlite")

		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS accounts (id VARCHAR(36) PRIMARY KEY, name VARCHAR(32), balance BIGINT)")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		// balance column not yet present
		rows := sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "VARCHAR(36)", 1, nil, 1).
			AddRow(1, "name", "VARCHAR(32)", 0, nil, 0)
		mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info('accounts')")).WillReturnRows(rows)

		mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE accounts ADD COLUMN balance BIGINT")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		changes, err := repo.EnsureTable(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Added column: balance (BIGINT)"}, changes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Up To Date", func(t *testing.T) {
		repo, mock := setupRepo(t, database.UpsertReplace, "sqlite")

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS accounts").
			WillReturnResult(sqlmock.NewResult(0, 0))

		rows := sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "VARCHAR(36)", 1, nil, 1).
			AddRow(1, "name", "VARCHAR(32)", 0, nil, 0).
			AddRow(2, "balance", "BIGINT", 0, nil, 0)
		mock.ExpectQuery(regexp.QuoteMeta("PRAGMA table_info('accounts')")).WillReturnRows(rows)

		changes, err := repo.EnsureTable(context.Background())
		require.NoError(t, err)
		assert.Empty(t, changes)
	})
}
