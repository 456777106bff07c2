package app

import (
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
	"github.com/yungbote/tastelab-backend/internal/realtime"
)

type Realtime struct {
	Registry    *realtime.Registry
	Broadcaster *realtime.Broadcaster
	// Gateway is set once the services it authenticates against exist.
	Gateway *realtime.Gateway
}

func wireRealtime(log *logger.Logger, metrics *observability.Metrics) Realtime {
	log.Info("Wiring realtime...")
	registry := realtime.NewRegistry(log, metrics)
	return Realtime{
		Registry:    registry,
		Broadcaster: realtime.NewBroadcaster(registry),
	}
}
