package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/railzwaylabs/billingcore/internal/config"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultLockTTL = 30 * time.Second

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard serializes deliveries for the same customer across processes.
// Without a redis client every Acquire succeeds.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewGuard(client *redis.Client, cfg config.Config, log *zap.Logger) *Guard {
	ttl := cfg.Webhook.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Guard{client: client, ttl: ttl, log: log.Named("payment.webhook.guard")}
}

// Acquire takes the in-flight slot for (org, customer). It fails open on
// redis errors and returns ErrEventInProgress when another delivery holds
// the slot.
func (g *Guard) Acquire(ctx context.Context, orgID, customerExternalID string) (func(), error) {
	if g == nil || g.client == nil {
		return func() {}, nil
	}

	key := "billingcore:webhook:inflight:" + orgID + ":" + customerExternalID
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		g.log.Warn("in-flight guard unavailable", zap.String("key", key), zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, paymentdomain.ErrEventInProgress
	}

	return func() {
		// The request context may already be cancelled here.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err(); err != nil {
			g.log.Warn("failed to release in-flight guard", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
