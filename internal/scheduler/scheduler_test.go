package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/config"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
	"github.com/railzwaylabs/billingcore/pkg/db/dbtest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T, days int, client *redis.Client) (*Scheduler, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, &paymentdomain.ProcessedWebhookEvent{})
	s := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clock.Fixed(now),
		Config: config.Config{Webhook: config.WebhookConfig{RetentionDays: days, RetentionInterval: time.Hour}},
		Redis:  client,
	})
	return s, db
}

func seedEvents(t *testing.T, db *gorm.DB, ages ...time.Duration) {
	t.Helper()
	node := dbtest.Node(t)
	for i, age := range ages {
		require.NoError(t, db.Create(&paymentdomain.ProcessedWebhookEvent{
			ID:        node.Generate(),
			OrgID:     node.Generate(),
			Provider:  "stripe",
			EventID:   "evt_" + string(rune('a'+i)),
			EventType: "checkout.session.completed",
			CreatedAt: now.Add(-age),
		}).Error)
	}
}

func TestPurgeProcessedWebhooks(t *testing.T) {
	s, db := newScheduler(t, 30, nil)
	seedEvents(t, db, time.Hour, 29*24*time.Hour, 31*24*time.Hour, 90*24*time.Hour)

	deleted, err := s.PurgeProcessedWebhooks(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var left int64
	require.NoError(t, db.Model(&paymentdomain.ProcessedWebhookEvent{}).Count(&left).Error)
	assert.EqualValues(t, 2, left)
}

func TestPurgeDisabled(t *testing.T) {
	s, db := newScheduler(t, 0, nil)
	seedEvents(t, db, 365*24*time.Hour)

	deleted, err := s.PurgeProcessedWebhooks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestPurgeSkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, db := newScheduler(t, 30, client)
	seedEvents(t, db, 60*24*time.Hour)

	require.NoError(t, mr.Set(purgeLockKey, "other-replica"))
	deleted, err := s.PurgeProcessedWebhooks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)

	mr.Del(purgeLockKey)
	deleted, err = s.PurgeProcessedWebhooks(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	assert.False(t, mr.Exists(purgeLockKey))
}

func TestLifecycleStartStop(t *testing.T) {
	s, _ := newScheduler(t, 30, nil)
	lc := fxtest.NewLifecycle(t)
	register(lc, s)
	lc.RequireStart().RequireStop()
	assert.Nil(t, s.stop)
}
