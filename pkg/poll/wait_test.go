package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trungdtbk/pss1830/internal/testutil"
)

func TestWaitOptions_Iterations(t *testing.T) {
	tests := []struct {
		timeout, interval time.Duration
		want              int
	}{
		{18000 * time.Second, 10 * time.Second, 1800},
		{30 * time.Second, 10 * time.Second, 3},
		{5 * time.Second, 10 * time.Second, 1},
		{0, 10 * time.Second, 1},
		{10 * time.Second, 0, 1},
	}
	for _, tt := range tests {
		o := WaitOptions{Timeout: tt.timeout, Interval: tt.interval}
		if got := o.Iterations(); got != tt.want {
			t.Errorf("Iterations(%s, %s) = %d, want %d", tt.timeout, tt.interval, got, tt.want)
		}
	}
}

func TestUntil(t *testing.T) {
	sleeper := &testutil.SleepRecorder{}
	calls := 0
	done, n, err := Until(context.Background(),
		WaitOptions{Timeout: 50 * time.Second, Interval: 10 * time.Second, Sleep: sleeper.Sleep},
		func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
	if err != nil || !done || n != 3 {
		t.Errorf("Until() = %v, %d, %v", done, n, err)
	}
	if len(sleeper.Calls()) != 2 {
		t.Errorf("slept %d times, want 2", len(sleeper.Calls()))
	}
}

func TestUntil_TimesOutWithoutTrailingSleep(t *testing.T) {
	sleeper := &testutil.SleepRecorder{}
	done, n, err := Until(context.Background(),
		WaitOptions{Timeout: 30 * time.Second, Interval: 10 * time.Second, Sleep: sleeper.Sleep},
		func(context.Context) (bool, error) { return false, nil })
	if err != nil || done || n != 3 {
		t.Errorf("Until() = %v, %d, %v", done, n, err)
	}
	if len(sleeper.Calls()) != 2 {
		t.Errorf("slept %d times, want 2", len(sleeper.Calls()))
	}
}

func TestUntil_CheckError(t *testing.T) {
	boom := errors.New("boom")
	_, n, err := Until(context.Background(), WaitOptions{Timeout: time.Minute, Interval: time.Second,
		Sleep: (&testutil.SleepRecorder{}).Sleep},
		func(context.Context) (bool, error) { return false, boom })
	if !errors.Is(err, boom) || n != 1 {
		t.Errorf("Until() = %d, %v", n, err)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() = %v", err)
	}
}
