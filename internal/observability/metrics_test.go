package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.IncRealtimeEvent("joinRoom", "in")
	m.ObserveVersionWrite("recipe.save_version", "ok", time.Millisecond)
	m.IncRealtimeAuthFailed()
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestWritePrometheusExposition(t *testing.T) {
	m := New()
	m.ObserveAPI("GET", "/api/recipes", "200", 30*time.Millisecond)
	m.RealtimeConnectionOpened()
	m.RealtimeConnectionOpened()
	m.RealtimeConnectionClosed()
	m.SetRealtimeRooms(3)
	m.IncRealtimeEvent("ingredientChange", "in")
	m.IncRealtimeDropped("cursorUpdate")
	m.ObserveVersionWrite("recipe.save_version", "ok", 2*time.Millisecond)
	m.IncVersionConflict("recipe.save_version")
	m.IncRealtimeAuthFailed()
	m.IncRealtimeAuthFailed()

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`# TYPE tl_api_requests_total counter`,
		`tl_api_requests_total{method="GET",route="/api/recipes",status="200"} 1`,
		`tl_api_request_duration_seconds_bucket{method="GET",route="/api/recipes",status="200",le="0.05"} 1`,
		`tl_realtime_connections 1`,
		`tl_realtime_rooms 3`,
		`tl_realtime_events_total{event="ingredientChange",direction="in"} 1`,
		`tl_realtime_dropped_total{event="cursorUpdate"} 1`,
		`tl_version_write_duration_seconds_count{operation="recipe.save_version",outcome="ok"} 1`,
		`tl_version_write_conflicts_total{operation="recipe.save_version"} 1`,
		`# TYPE tl_realtime_auth_failed_total counter`,
		`tl_realtime_auth_failed_total 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
}

func TestLabelString(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString: got=%s", got)
	}
	if got := withLe("", "1"); got != `{le="1"}` {
		t.Fatalf("withLe empty: got=%s", got)
	}
}

func TestCounterNilSafe(t *testing.T) {
	var c *Counter
	c.Inc()
	if got := c.Value(); got != 0 {
		t.Fatalf("nil counter value: want=0 got=%v", got)
	}
	c = NewCounter("tl_test_total", "test")
	c.Inc()
	if got := c.Value(); got != 1 {
		t.Fatalf("counter value: want=1 got=%v", got)
	}
}
