package observability

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" x-api-key = abc , bad, =empty, trace=on ")
	if len(got) != 2 || got["x-api-key"] != "abc" || got["trace"] != "on" {
		t.Fatalf("ParseHeaders: unexpected %v", got)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("ParseHeaders empty: want nil")
	}
}

func TestClampRatio(t *testing.T) {
	for _, tc := range []struct{ in, want float64 }{{-1, 0}, {0.25, 0.25}, {3, 1}} {
		if got := clampRatio(tc.in); got != tc.want {
			t.Fatalf("clampRatio(%v): want=%v got=%v", tc.in, tc.want, got)
		}
	}
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.span")
	defer span.End()
	if ctx == nil {
		t.Fatalf("expected context")
	}
}
