package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/tastelab-backend/internal/platform/envutil"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	rtConnections *Gauge
	rtRooms       *Gauge
	rtEvents      *CounterVec
	rtDropped     *CounterVec
	rtDenied      *CounterVec
	rtAuthFailed  *Counter

	versionWrites     *HistogramVec
	versionConflicts  *CounterVec
	versionTransients *CounterVec

	userCache *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func scrapeInterval() time.Duration {
	return envutil.Duration("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

// Init returns the process-wide metrics, or nil when disabled.
// Every method on a nil *Metrics is a no-op.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// New builds an unregistered metrics set.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("tl_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"tl_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("tl_api_inflight_requests", "In-flight API requests."),

		rtConnections: NewGauge("tl_realtime_connections", "Open realtime connections."),
		rtRooms:       NewGauge("tl_realtime_rooms", "Live collaboration rooms."),
		rtEvents:      NewCounterVec("tl_realtime_events_total", "Realtime events by name and direction.", []string{"event", "direction"}),
		rtDropped:     NewCounterVec("tl_realtime_dropped_total", "Outbound realtime messages dropped on a full session buffer.", []string{"event"}),
		rtDenied:      NewCounterVec("tl_realtime_denied_total", "Inbound realtime events refused by access checks.", []string{"event", "reason"}),
		rtAuthFailed:  NewCounter("tl_realtime_auth_failed_total", "Realtime connection attempts refused before upgrade."),

		versionWrites: NewHistogramVec(
			"tl_version_write_duration_seconds",
			"Version store write latency in seconds by operation and outcome.",
			[]string{"operation", "outcome"},
			nil,
		),
		versionConflicts:  NewCounterVec("tl_version_write_conflicts_total", "Version counter compare-and-set conflicts.", []string{"operation"}),
		versionTransients: NewCounterVec("tl_version_write_transient_total", "Version store writes failing with transient errors.", []string{"operation"}),

		userCache: NewCounterVec("tl_user_cache_lookups_total", "User profile cache lookups by result.", []string{"result"}),

		pgStats:   NewGaugeVec("tl_db_pool", "Database connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("tl_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("tl_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.rtConnections, m.rtRooms, m.rtEvents, m.rtDropped, m.rtDenied, m.rtAuthFailed,
		m.versionWrites, m.versionConflicts, m.versionTransients,
		m.userCache,
		m.pgStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) RealtimeConnectionOpened() {
	if m == nil {
		return
	}
	m.rtConnections.Inc()
}

func (m *Metrics) RealtimeConnectionClosed() {
	if m == nil {
		return
	}
	m.rtConnections.Dec()
}

func (m *Metrics) SetRealtimeRooms(n int) {
	if m == nil {
		return
	}
	m.rtRooms.Set(float64(n))
}

// IncRealtimeEvent counts an event; direction is "in" or "out".
func (m *Metrics) IncRealtimeEvent(event, direction string) {
	if m == nil {
		return
	}
	m.rtEvents.Inc(event, direction)
}

func (m *Metrics) IncRealtimeDropped(event string) {
	if m == nil {
		return
	}
	m.rtDropped.Inc(event)
}

func (m *Metrics) IncRealtimeDenied(event, reason string) {
	if m == nil {
		return
	}
	m.rtDenied.Inc(event, reason)
}

func (m *Metrics) IncRealtimeAuthFailed() {
	if m == nil {
		return
	}
	m.rtAuthFailed.Inc()
}

// ObserveVersionWrite records one version store write; outcome is "ok" or an error code.
func (m *Metrics) ObserveVersionWrite(op, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.versionWrites.Observe(dur.Seconds(), op, outcome)
}

func (m *Metrics) IncVersionConflict(op string) {
	if m == nil {
		return
	}
	m.versionConflicts.Inc(op)
}

func (m *Metrics) IncVersionTransient(op string) {
	if m == nil {
		return
	}
	m.versionTransients.Inc(op)
}

// IncUserCache counts a profile cache lookup; result is "hit", "miss" or "error".
func (m *Metrics) IncUserCache(result string) {
	if m == nil {
		return
	}
	m.userCache.Inc(result)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings rdb on every scrape interval until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
