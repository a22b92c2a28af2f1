package await

import (
	"errors"
	"testing"
	"time"
)

func TestFirstReturnsValue(t *testing.T) {
	res := First(time.Second, func() (int, error) {
		return 42, nil
	})
	if res.TimedOut {
		t.Fatal("fast call reported as timed out")
	}
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 42 {
		t.Errorf("value = %d, want 42", res.Value)
	}
}

func TestFirstReturnsError(t *testing.T) {
	boom := errors.New("boom")
	res := First(time.Second, func() (string, error) {
		return "", boom
	})
	if res.TimedOut {
		t.Fatal("failed call reported as timed out")
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("err = %v, want %v", res.Err, boom)
	}
}

func TestFirstTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	res := First(50*time.Millisecond, func() (int, error) {
		<-release
		return 1, nil
	})
	elapsed := time.Since(start)

	if !res.TimedOut {
		t.Fatal("blocked call did not time out")
	}
	if res.Value != 0 || res.Err != nil {
		t.Errorf("timed-out result should be zero, got %+v", res)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("timeout took %s, want about 50ms", elapsed)
	}
}

func TestFirstLoserKeepsRunning(t *testing.T) {
	finished := make(chan struct{})
	res := First(20*time.Millisecond, func() (int, error) {
		time.Sleep(80 * time.Millisecond)
		close(finished)
		return 7, nil
	})
	if !res.TimedOut {
		t.Fatal("expected timeout")
	}

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Error("loser was not left running to completion")
	}
}
