package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/migrate"
)

func openInbox(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:notifications_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrateModels(conn))
	return conn
}

func seedInbox(t *testing.T, conn *gorm.DB, userID uuid.UUID, n int) {
	t.Helper()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		row := models.Notification{
			UserID:    userID,
			Type:      enums.NotificationTypeLowStock,
			Title:     "Low stock",
			Message:   "running low",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, conn.Create(&row).Error)
	}
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	conn := openInbox(t)
	repo := NewRepository(conn)
	user := uuid.New()
	seedInbox(t, conn, user, 3)
	seedInbox(t, conn, uuid.New(), 2)

	ctx := context.Background()
	first, next, err := repo.List(ctx, listNotificationsParams{UserID: user, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, next)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt))

	rest, next, err := repo.List(ctx, listNotificationsParams{UserID: user, Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, next)
	assert.True(t, rest[0].CreatedAt.Before(first[1].CreatedAt))
}

func TestRepositoryMarkReadScopedToUser(t *testing.T) {
	conn := openInbox(t)
	repo := NewRepository(conn)
	owner := uuid.New()
	seedInbox(t, conn, owner, 2)

	var target models.Notification
	require.NoError(t, conn.Where("user_id = ?", owner).First(&target).Error)

	ctx := context.Background()
	now := time.Now().UTC()
	res, err := repo.MarkRead(ctx, uuid.New(), target.ID, now)
	require.NoError(t, err)
	assert.False(t, res.Found)

	res, err = repo.MarkRead(ctx, owner, target.ID, now)
	require.NoError(t, err)
	assert.True(t, res.Updated)

	res, err = repo.MarkRead(ctx, owner, target.ID, now)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.False(t, res.Updated)

	unread, _, err := repo.List(ctx, listNotificationsParams{UserID: owner, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	count, err := repo.MarkAllRead(ctx, owner, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDispatcherPersistsTypedNotification(t *testing.T) {
	conn := openInbox(t)
	dispatcher, err := NewDispatcher(NewRepository(conn), enums.NotificationTypeLowStock)
	require.NoError(t, err)

	user := uuid.New()
	err = dispatcher.Send(context.Background(), user, "Low stock: TR-09", "Only 4 left", map[string]any{"available": 4})
	require.NoError(t, err)

	var stored models.Notification
	require.NoError(t, conn.Where("user_id = ?", user).First(&stored).Error)
	assert.Equal(t, enums.NotificationTypeLowStock, stored.Type)
	assert.JSONEq(t, `{"available":4}`, string(stored.Metadata))
	assert.Nil(t, stored.ReadAt)
}

func TestDispatcherValidation(t *testing.T) {
	_, err := NewDispatcher(&fakeRepository{}, enums.NotificationType("carrier_pigeon"))
	require.Error(t, err)

	repo := &fakeRepository{}
	dispatcher, err := NewDispatcher(repo, enums.NotificationTypeLedgerDrift)
	require.NoError(t, err)
	require.Error(t, dispatcher.Send(context.Background(), uuid.Nil, "t", "m", nil))
	require.Error(t, dispatcher.Send(context.Background(), uuid.New(), "", "m", nil))
	require.NoError(t, dispatcher.Send(context.Background(), uuid.New(), "Drift", "2 records", nil))
	require.Len(t, repo.created, 1)
	assert.Nil(t, repo.created[0].Metadata)
}

func TestRepositoryDeleteReadBefore(t *testing.T) {
	conn := openInbox(t)
	repo := NewRepository(conn)
	user := uuid.New()
	seedInbox(t, conn, user, 3)

	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var first models.Notification
	require.NoError(t, conn.Where("user_id = ?", user).Order("created_at ASC").First(&first).Error)
	_, err := repo.MarkRead(ctx, user, first.ID, old)
	require.NoError(t, err)

	deleted, err := repo.DeleteReadBefore(ctx, nil, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.Notification{}).Where("user_id = ?", user).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}
