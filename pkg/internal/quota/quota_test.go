package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/filevault/pkg/internal/model"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Team{}, &model.TeamMember{}))

	return NewLedger(db)
}

func seedTeam(t *testing.T, l *Ledger, id string, used, limit int64) {
	t.Helper()

	require.NoError(t, l.db.Create(&model.Team{
		ID:           id,
		Name:         "team " + id,
		CurrentUsage: used,
		StorageQuota: limit,
	}).Error)
}

func TestReserveWithinQuota(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seedTeam(t, l, "t1", 0, 100)

	require.NoError(t, l.Reserve(ctx, "t1", 60))

	used, limit, err := l.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(60), used)
	assert.Equal(t, int64(100), limit)
}

func TestReserveExactFit(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seedTeam(t, l, "t1", 40, 100)

	require.NoError(t, l.Reserve(ctx, "t1", 60))

	used, _, err := l.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), used)
}

func TestReserveExceedsQuota(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seedTeam(t, l, "t1", 90, 100)

	err := l.Reserve(ctx, "t1", 11)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// 失败的预留不产生变更
	used, _, usageErr := l.Usage(ctx, "t1")
	require.NoError(t, usageErr)
	assert.Equal(t, int64(90), used)
}

func TestReserveUnknownTeam(t *testing.T) {
	l := newTestLedger(t)

	err := l.Reserve(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestReleaseClampsAtZero(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seedTeam(t, l, "t1", 30, 100)

	require.NoError(t, l.Release(ctx, "t1", 50))

	used, _, err := l.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seedTeam(t, l, "t1", 0, 100)

	require.NoError(t, l.Reserve(ctx, "t1", 70))
	require.NoError(t, l.Release(ctx, "t1", 70))

	used, _, err := l.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seedTeam(t, l, "t1", 0, 100)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)

	// 20 个并发预留各 10 字节，配额只够 10 个
	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := l.Reserve(ctx, "t1", 10); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 10, granted)

	used, _, err := l.Usage(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), used)
}

func TestIsActiveMember(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	seedTeam(t, l, "t1", 0, 100)
	require.NoError(t, l.db.Create(&model.TeamMember{
		TeamID: "t1", UserID: "alice@example.com", Status: model.MemberStatusActive,
	}).Error)
	require.NoError(t, l.db.Create(&model.TeamMember{
		TeamID: "t1", UserID: "bob@example.com", Status: model.MemberStatusPending,
	}).Error)

	ok, err := l.IsActiveMember(ctx, "t1", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.IsActiveMember(ctx, "t1", "bob@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.IsActiveMember(ctx, "t1", "carol@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
