package ratelimit

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestLimiter(rps int, codes []int, auto bool) (*Limiter, *FakeClock) {
	clock := NewFakeClock(epoch)
	l := New(clock, nil)
	l.Configure(rps, codes, auto)
	return l, clock
}

func TestConfigure_Delay(t *testing.T) {
	tests := []struct {
		rps   int
		delay time.Duration
	}{
		{0, 0},
		{-3, 0},
		{1, time.Second},
		{3, 333 * time.Millisecond},
		{10, 100 * time.Millisecond},
		{2000, 0},
	}

	for _, tt := range tests {
		l, _ := newTestLimiter(tt.rps, nil, false)
		if l.Delay() != tt.delay {
			t.Errorf("rps %d: expected delay %v, got %v", tt.rps, tt.delay, l.Delay())
		}
	}
}

func TestWait_Unlimited(t *testing.T) {
	l, clock := newTestLimiter(0, nil, false)
	for range 10 {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("Expected no sleeps, got %v", clock.Sleeps())
	}
	if !l.Snapshot().LastRequest.IsZero() {
		t.Error("Expected unlimited waits not to record a send")
	}
}

func TestWait_EnforcesSpacing(t *testing.T) {
	l, clock := newTestLimiter(10, nil, false)
	ctx := context.Background()

	start := clock.Now()
	for range 5 {
		if err := l.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	// first send is immediate, then four gaps of 100ms
	if got := clock.Now().Sub(start); got != 400*time.Millisecond {
		t.Errorf("Expected 400ms elapsed, got %v", got)
	}
	if !slices.Equal(clock.Sleeps(), []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond}) {
		t.Errorf("Unexpected sleeps %v", clock.Sleeps())
	}
}

func TestWait_SubtractsElapsed(t *testing.T) {
	l, clock := newTestLimiter(10, nil, false)
	ctx := context.Background()

	_ = l.Wait(ctx)
	clock.Advance(30 * time.Millisecond)
	_ = l.Wait(ctx)
	clock.Advance(250 * time.Millisecond)
	_ = l.Wait(ctx)

	if !slices.Equal(clock.Sleeps(), []time.Duration{70 * time.Millisecond}) {
		t.Errorf("Expected a single 70ms sleep, got %v", clock.Sleeps())
	}
	if got := l.Snapshot().LastRequest; !got.Equal(epoch.Add(350 * time.Millisecond)) {
		t.Errorf("Expected last send at +350ms, got %v", got.Sub(epoch))
	}
}

func TestWait_Cancelled(t *testing.T) {
	l, _ := newTestLimiter(1, nil, false)
	_ = l.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestReportResponse_BackoffDoubles(t *testing.T) {
	l, _ := newTestLimiter(10, []int{429, 503}, true)

	for i := range DetectionWindow - 1 {
		l.ReportResponse(429)
		if l.Delay() != 100*time.Millisecond {
			t.Fatalf("After %d throttles expected unchanged delay, got %v", i+1, l.Delay())
		}
	}
	l.ReportResponse(503)

	if l.Delay() != 200*time.Millisecond {
		t.Errorf("Expected delay 200ms, got %v", l.Delay())
	}
	if l.RPS() != 5 {
		t.Errorf("Expected derived rps 5, got %d", l.RPS())
	}
	if l.Snapshot().ThrottleCount != 0 {
		t.Errorf("Expected throttle count reset, got %d", l.Snapshot().ThrottleCount)
	}
}

func TestReportResponse_BackoffFromUnlimited(t *testing.T) {
	l, _ := newTestLimiter(0, []int{429}, true)
	for range DetectionWindow {
		l.ReportResponse(429)
	}
	if l.Delay() != MinDelay {
		t.Errorf("Expected %v, got %v", MinDelay, l.Delay())
	}
	if l.RPS() != 10 {
		t.Errorf("Expected rps 10, got %d", l.RPS())
	}
	for range DetectionWindow {
		l.ReportResponse(429)
	}
	if l.Delay() != 200*time.Millisecond {
		t.Errorf("Expected 200ms after second backoff, got %v", l.Delay())
	}
}

func TestReportResponse_MaxDelay(t *testing.T) {
	l, _ := newTestLimiter(2, []int{429}, true)
	l.SetMaxDelay(700 * time.Millisecond)
	for range DetectionWindow {
		l.ReportResponse(429)
	}
	if l.Delay() != 700*time.Millisecond {
		t.Errorf("Expected capped delay 700ms, got %v", l.Delay())
	}
	if l.RPS() != 1 {
		t.Errorf("Expected rps floor of 1, got %d", l.RPS())
	}
}

func TestReportResponse_SuccessResetsThrottleCount(t *testing.T) {
	l, _ := newTestLimiter(10, []int{429}, true)

	for range DetectionWindow - 1 {
		l.ReportResponse(429)
	}
	for range ResetAfter {
		l.ReportResponse(200)
	}
	if got := l.Snapshot().ThrottleCount; got != 0 {
		t.Fatalf("Expected throttle count 0 after %d successes, got %d", ResetAfter, got)
	}

	l.ReportResponse(429)
	if l.Delay() != 100*time.Millisecond {
		t.Errorf("Expected no backoff after one fresh throttle, got %v", l.Delay())
	}
}

func TestReportResponse_InterleavedSuccessKeepsCount(t *testing.T) {
	l, _ := newTestLimiter(10, []int{429}, true)
	for range DetectionWindow - 1 {
		l.ReportResponse(429)
		l.ReportResponse(200)
	}
	l.ReportResponse(429)
	if l.Delay() != 200*time.Millisecond {
		t.Errorf("Expected backoff when successes stay below %d, got %v", ResetAfter, l.Delay())
	}
}

func TestReportResponse_Disabled(t *testing.T) {
	tests := []struct {
		name  string
		codes []int
		auto  bool
	}{
		{"auto off", []int{429}, false},
		{"no codes", nil, true},
	}
	for _, tt := range tests {
		l, _ := newTestLimiter(10, tt.codes, tt.auto)
		for range 20 {
			l.ReportResponse(429)
		}
		if l.Delay() != 100*time.Millisecond {
			t.Errorf("%s: expected unchanged delay, got %v", tt.name, l.Delay())
		}
	}
}

func TestBackoff_AffectsNextWait(t *testing.T) {
	l, clock := newTestLimiter(10, []int{429}, true)
	ctx := context.Background()
	_ = l.Wait(ctx)
	for range DetectionWindow {
		l.ReportResponse(429)
	}
	_ = l.Wait(ctx)
	if !slices.Equal(clock.Sleeps(), []time.Duration{200 * time.Millisecond}) {
		t.Errorf("Expected 200ms sleep after backoff, got %v", clock.Sleeps())
	}
}

func TestUpdateRate(t *testing.T) {
	l, _ := newTestLimiter(10, []int{429}, true)
	l.ReportResponse(429)
	l.UpdateRate(4)
	if l.Delay() != 250*time.Millisecond || l.RPS() != 4 {
		t.Errorf("Expected 250ms / 4 rps, got %v / %d", l.Delay(), l.RPS())
	}
	if l.Snapshot().ThrottleCount != 1 {
		t.Error("Expected UpdateRate to keep counters")
	}
}

func TestUpdateRate_RetunesPacing(t *testing.T) {
	l, clock := newTestLimiter(10, nil, false)
	ctx := context.Background()

	_ = l.Wait(ctx)
	clock.Advance(50 * time.Millisecond)
	l.UpdateRate(4)
	_ = l.Wait(ctx)

	// 250ms after the previous send, of which 50ms already passed
	if !slices.Equal(clock.Sleeps(), []time.Duration{200 * time.Millisecond}) {
		t.Errorf("Expected a 200ms sleep, got %v", clock.Sleeps())
	}
	if got := l.Snapshot().LastRequest; !got.Equal(epoch.Add(250 * time.Millisecond)) {
		t.Errorf("Expected last send at +250ms, got %v", got.Sub(epoch))
	}
}

func TestWait_CancelledDoesNotConsume(t *testing.T) {
	l, clock := newTestLimiter(1, nil, false)
	_ = l.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = l.Wait(ctx)

	clock.Advance(time.Second)
	_ = l.Wait(context.Background())
	if len(clock.Sleeps()) != 0 {
		t.Errorf("Expected no sleep once the delay passed, got %v", clock.Sleeps())
	}
}

func TestConfigure_FromUnlimitedPacesImmediately(t *testing.T) {
	l, clock := newTestLimiter(0, nil, false)
	_ = l.Wait(context.Background())
	l.Configure(10, nil, false)

	_ = l.Wait(context.Background())
	_ = l.Wait(context.Background())
	if !slices.Equal(clock.Sleeps(), []time.Duration{100 * time.Millisecond}) {
		t.Errorf("Expected only the second paced send to sleep, got %v", clock.Sleeps())
	}
}

func TestRealClock_Sleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (RealClock{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancelled sleep, got %v", err)
	}
	if err := (RealClock{}).Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Unexpected error %v", err)
	}
}
