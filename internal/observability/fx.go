package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/railzwaylabs/billingcore/internal/config"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		func(cfg config.Config) (*zap.Logger, zap.AtomicLevel, error) {
			return NewLogger(cfg)
		},
		NewRegistry,
		NewMetrics,
		func(reg *prometheus.Registry) prometheus.Gatherer { return reg },
		NewTracerProvider,
	),
	fx.Invoke(watchLogLevel),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func watchLogLevel(level zap.AtomicLevel, log *zap.Logger) {
	config.Watch(func(cfg config.Config) {
		next := parseLevel(cfg.LogLevel)
		if next == level.Level() {
			return
		}
		level.SetLevel(next)
		log.Info("log level changed", zap.String("level", next.String()))
	})
}
