package profile

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"datakit/core/cluster"
	"datakit/core/database"
	"datakit/feature/profile/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	conn := database.NewWithDB(db, database.UpsertDuplicateKey, "mysql", zap.NewNop())
	return NewService(conn, nil, "", zap.NewNop()), mock
}

func profileRows(id uuid.UUID, name string, balance int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "rank", "balance", "settings", "last_seen"}).
		AddRow(id.String(), name, "VIP", balance, `{"language":"en","sounds_enabled":true}`, time.Now())
}

func TestDescriptorColumns(t *testing.T) {
	assert.Equal(t, "player_profiles", Descriptor.Table())
	assert.Equal(t, "id", Descriptor.IDColumn())
	assert.Equal(t,
		[]string{"id", "name", "rank", "balance", "settings", "last_seen"},
		Descriptor.Columns())
}

func TestServiceGet(t *testing.T) {
	t.Run("Reads Through And Caches", func(t *testing.T) {
		svc, mock := setupService(t)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM player_profiles WHERE id = ? LIMIT 1")).
			WithArgs(id.String()).
			WillReturnRows(profileRows(id, "Alice", 100))

		p, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Alice", p.Name)
		assert.Equal(t, models.RankVIP, p.Rank)
		assert.True(t, p.Settings.SoundsEnabled)

		// Second read is served from cache; no further expectation set.
		again, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Same(t, p, again)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Is Nil And Uncached", func(t *testing.T) {
		svc, mock := setupService(t)
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM player_profiles WHERE id = ? LIMIT 1")).
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		p, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.Zero(t, svc.cachedCount())
	})
}

func TestServiceSave(t *testing.T) {
	svc, mock := setupService(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO player_profiles (id, name, rank, balance, settings, last_seen) VALUES (?, ?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE name = VALUES(name), rank = VALUES(rank), balance = VALUES(balance), settings = VALUES(settings), last_seen = VALUES(last_seen)")).
		WithArgs(id.String(), "Alice", "ADMIN", int64(150), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := &models.PlayerProfile{
		ID:      id,
		Name:    "Alice",
		Rank:    models.RankAdmin,
		Balance: 150,
	}
	require.NoError(t, svc.Save(context.Background(), p))

	// Save refreshes the cache, so the follow-up read hits no SQL.
	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeerMutationInvalidatesCache(t *testing.T) {
	svc, mock := setupService(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM player_profiles WHERE id = ? LIMIT 1")).
		WithArgs(id.String()).
		WillReturnRows(profileRows(id, "Alice", 100))

	_, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, svc.cachedCount())

	payload, _ := json.Marshal(map[string]string{"op": "save", "id": id.String()})
	require.NoError(t, svc.onPeerMutation(cluster.Event{
		ProcessID: "peer",
		Table:     "player_profiles",
		Payload:   payload,
	}))
	assert.Zero(t, svc.cachedCount())

	// Next read goes back to the database and sees the peer's write.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM player_profiles WHERE id = ? LIMIT 1")).
		WithArgs(id.String()).
		WillReturnRows(profileRows(id, "Alice", 250))

	p, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(250), p.Balance)
}

func TestPeerMutationUnknownPayloadDropsCache(t *testing.T) {
	svc, mock := setupService(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM player_profiles WHERE id = ? LIMIT 1")).
		WithArgs(id.String()).
		WillReturnRows(profileRows(id, "Alice", 100))

	_, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, svc.cachedCount())

	require.NoError(t, svc.onPeerMutation(cluster.Event{
		ProcessID: "peer",
		Table:     "player_profiles",
		Payload:   json.RawMessage(`{"something":"else"}`),
	}))
	assert.Zero(t, svc.cachedCount())
}

func TestParseRank(t *testing.T) {
	assert.Equal(t, models.RankAdmin, models.ParseRank("ADMIN"))
	assert.Equal(t, models.Rank(""), models.ParseRank("admin"))
	assert.Equal(t, models.Rank(""), models.ParseRank("OVERLORD"))
}
