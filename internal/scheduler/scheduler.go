package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultInterval = time.Hour

// Scheduler runs the periodic housekeeping jobs of a serve process.
type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	cfg   config.Config
	redis *redis.Client

	stop chan struct{}
	wg   sync.WaitGroup
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Redis  *redis.Client `optional:"true"`
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:    p.DB,
		log:   p.Log.Named("scheduler"),
		clock: p.Clock,
		cfg:   p.Config,
		redis: p.Redis,
	}
}

// Start launches the job loop. Stop blocks until the loop has returned.
func (s *Scheduler) Start() {
	interval := s.cfg.Webhook.RetentionInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(interval)
}

func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
}

func (s *Scheduler) loop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := s.PurgeProcessedWebhooks(ctx); err != nil {
				s.log.Error("purge processed webhooks failed", zap.Error(err))
			}
			cancel()
		}
	}
}
