package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
	"go.uber.org/zap"
)

const purgeLockKey = "billingcore:scheduler:purge_processed_webhooks"

// PurgeProcessedWebhooks deletes processed event ids older than the
// retention window. A redelivery arriving after its id was purged is
// dispatched again and relies on the handlers being idempotent.
func (s *Scheduler) PurgeProcessedWebhooks(ctx context.Context) (int64, error) {
	retentionDays := s.cfg.Webhook.RetentionDays
	if retentionDays <= 0 {
		s.log.Debug("webhook retention disabled", zap.Int("days", retentionDays))
		return 0, nil
	}

	release, ok := s.acquire(ctx, purgeLockKey)
	if !ok {
		s.log.Debug("purge already running elsewhere")
		return 0, nil
	}
	defer release()

	cutoff := s.clock.Now(ctx).AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&paymentdomain.ProcessedWebhookEvent{})
	if result.Error != nil {
		return 0, result.Error
	}

	s.log.Info("purged processed webhooks",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", result.RowsAffected))
	return result.RowsAffected, nil
}

// acquire takes a cluster-wide lock for one run. Without redis, or when
// redis is unreachable, every replica runs the job; the delete is safe to
// repeat.
func (s *Scheduler) acquire(ctx context.Context, key string) (func(), bool) {
	if s.redis == nil {
		return func() {}, true
	}

	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, key, token, 5*time.Minute).Result()
	if err != nil {
		s.log.Warn("scheduler lock unavailable", zap.String("key", key), zap.Error(err))
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.redis.Del(releaseCtx, key).Err(); err != nil {
			s.log.Warn("failed to release scheduler lock", zap.String("key", key), zap.Error(err))
		}
	}, true
}
